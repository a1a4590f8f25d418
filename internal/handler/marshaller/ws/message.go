package wsmarshaller

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePublish     = "publish"
	FrameJoin        = "join"
	FrameLeave       = "leave"
	FrameNotify      = "notify"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ClientFrame is one client-to-server websocket message, discriminated by Type.
type ClientFrame struct {
	Type             string `json:"type" validate:"required,oneof=subscribe unsubscribe publish join leave notify"`
	GroupID          string `json:"groupId" validate:"required_unless=Type notify"`
	SenderID         string `json:"senderId"`
	Message          string `json:"message" validate:"required_if=Type publish"`
	MessageType      string `json:"messageType"`
	Username         string `json:"username" validate:"required_if=Type join,required_if=Type leave"`
	UserID           string `json:"userId" validate:"required_if=Type notify"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	NotificationType string `json:"notificationType"`
}

// ParseClientFrame decodes a client frame and checks its type. Field rules are checked by
// Validate, so callers can treat a bad live frame differently from an undecodable one.
func ParseClientFrame(data []byte) (*ClientFrame, error) {
	var f ClientFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: malformed frame: %v", model.ErrInvalidArgument, err)
	}
	if err := validate.Var(f.Type, "required,oneof=subscribe unsubscribe publish join leave notify"); err != nil {
		return nil, fmt.Errorf("%w: unknown frame type %q", model.ErrInvalidArgument, f.Type)
	}
	return &f, nil
}

// Validate checks the fields required by the frame type.
// Content rules of live events are left to the gateway.
func (f *ClientFrame) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	return nil
}

// IsLive reports whether the frame publishes to the event log rather than managing subscriptions.
func (f *ClientFrame) IsLive() bool {
	switch f.Type {
	case FramePublish, FrameJoin, FrameLeave, FrameNotify:
		return true
	}
	return false
}

// ChatPayload converts a publish frame; the sender defaults to the connection identity.
func (f *ClientFrame) ChatPayload(connUserID string) (model.ChatEventPayload, error) {
	kind, err := model.ParseMessageKind(f.MessageType)
	if err != nil {
		return model.ChatEventPayload{}, err
	}
	sender := f.SenderID
	if sender == "" {
		sender = connUserID
	}
	return model.ChatEventPayload{
		GroupID:  f.GroupID,
		SenderID: sender,
		Message:  f.Message,
		Kind:     kind,
	}, nil
}

func (f *ClientFrame) NotificationPayload() model.NotificationPayload {
	return model.NotificationPayload{
		UserID:  f.UserID,
		Title:   f.Title,
		Content: f.Content,
		Kind:    f.NotificationType,
	}
}
