package pubsub

import (
	"fmt"
	"strconv"

	"github.com/gulon/chat-delivery-service/infra/eventlog"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

// Flat record field names shared by every producer and the consumer.
const (
	FieldGroupID          = "groupId"
	FieldSenderID         = "senderId"
	FieldMessage          = "message"
	FieldMessageType      = "messageType"
	FieldTimestamp        = "timestamp"
	FieldUserID           = "userId"
	FieldTitle            = "title"
	FieldContent          = "content"
	FieldNotificationType = "notificationType"
)

func ChatRecord(p *model.ChatEventPayload) eventlog.Record {
	return eventlog.Record{
		FieldGroupID:     p.GroupID,
		FieldSenderID:    p.SenderID,
		FieldMessage:     p.Message,
		FieldMessageType: p.Kind.String(),
		FieldTimestamp:   strconv.FormatInt(p.Timestamp, 10),
	}
}

func NotificationRecord(p *model.NotificationPayload) eventlog.Record {
	return eventlog.Record{
		FieldUserID:           p.UserID,
		FieldTitle:            p.Title,
		FieldContent:          p.Content,
		FieldNotificationType: p.Kind,
		FieldTimestamp:        strconv.FormatInt(p.Timestamp, 10),
	}
}

// DecodeChatRecord rebuilds and validates a chat payload. Unknown kinds and malformed
// timestamps are rejected rather than defaulted.
func DecodeChatRecord(rec eventlog.Record) (*model.ChatEventPayload, error) {
	kind, err := model.ParseMessageKind(rec[FieldMessageType])
	if err != nil {
		return nil, err
	}
	ts, err := parseTimestamp(rec[FieldTimestamp])
	if err != nil {
		return nil, err
	}

	p := &model.ChatEventPayload{
		GroupID:   rec[FieldGroupID],
		SenderID:  rec[FieldSenderID],
		Message:   rec[FieldMessage],
		Kind:      kind,
		Timestamp: ts,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func DecodeNotificationRecord(rec eventlog.Record) (*model.NotificationPayload, error) {
	ts, err := parseTimestamp(rec[FieldTimestamp])
	if err != nil {
		return nil, err
	}

	p := &model.NotificationPayload{
		UserID:    rec[FieldUserID],
		Title:     rec[FieldTitle],
		Content:   rec[FieldContent],
		Kind:      rec[FieldNotificationType],
		Timestamp: ts,
	}
	if p.Kind == "" {
		p.Kind = model.DefaultNotificationKind
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseTimestamp(s string) (int64, error) {
	if s == "" {
		return 0, fmt.Errorf("%w: timestamp is required", model.ErrInvalidArgument)
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q: %v", model.ErrInvalidArgument, s, err)
	}
	return ts, nil
}
