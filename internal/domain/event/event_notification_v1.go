package event

import (
	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

var _ Eventer = (*NotificationV1Event)(nil)

// NotificationV1Event is delivered to every connection of a single user.
type NotificationV1Event struct {
	wireCache
	ID      string
	Payload *model.NotificationPayload
}

func NewNotificationV1Event(p *model.NotificationPayload) *NotificationV1Event {
	return &NotificationV1Event{ID: uuid.NewString(), Payload: p}
}

func (e *NotificationV1Event) GetID() string              { return e.ID }
func (e *NotificationV1Event) GetKind() EventKind         { return Notification }
func (e *NotificationV1Event) GetPriority() EventPriority { return PriorityHigh }
func (e *NotificationV1Event) GetOccurredAt() int64       { return e.Payload.Timestamp }
func (e *NotificationV1Event) GetPayload() any            { return e.Payload }
func (e *NotificationV1Event) GetUserID() string          { return e.Payload.UserID }
