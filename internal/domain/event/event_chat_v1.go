package event

import (
	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

var _ Eventer = (*ChatV1Event)(nil)

// ChatV1Event carries one live chat broadcast to a group channel.
//
// The group identifier addresses the channel; the wire payload repeats it so clients
// subscribed to several groups can demultiplex.
type ChatV1Event struct {
	wireCache
	ID      string
	Payload *model.ChatEventPayload
}

func NewChatV1Event(p *model.ChatEventPayload) *ChatV1Event {
	return &ChatV1Event{ID: uuid.NewString(), Payload: p}
}

func (e *ChatV1Event) GetID() string              { return e.ID }
func (e *ChatV1Event) GetKind() EventKind         { return ChatMessage }
func (e *ChatV1Event) GetOccurredAt() int64       { return e.Payload.Timestamp }
func (e *ChatV1Event) GetPayload() any            { return e.Payload }
func (e *ChatV1Event) GetGroupID() string         { return e.Payload.GroupID }

// GetPriority ranks synthesized join/leave chatter below user messages so it is shed first
// when a connection buffer saturates.
func (e *ChatV1Event) GetPriority() EventPriority {
	if e.Payload.Kind == model.KindSystem {
		return PriorityNormal
	}
	return PriorityHigh
}
