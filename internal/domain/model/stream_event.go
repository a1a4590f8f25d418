package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultNotificationKind is applied when a notification carries no kind tag.
const DefaultNotificationKind = "INFO"

// [CHAT_EVENT_PAYLOAD]
// Typed live chat event. Replaces ad hoc key/value lookups at the transport boundary.
type ChatEventPayload struct {
	GroupID   string      `json:"groupId"`
	SenderID  string      `json:"senderId"`
	Message   string      `json:"message"`
	Kind      MessageKind `json:"messageType"`
	Timestamp int64       `json:"timestamp"`
}

// Validate checks required fields only. Membership is never consulted for live events.
func (p *ChatEventPayload) Validate() error {
	switch {
	case strings.TrimSpace(p.GroupID) == "":
		return fmt.Errorf("%w: groupId is required", ErrInvalidArgument)
	case strings.TrimSpace(p.SenderID) == "":
		return fmt.Errorf("%w: senderId is required", ErrInvalidArgument)
	case strings.TrimSpace(p.Message) == "":
		return fmt.Errorf("%w: message is required", ErrInvalidArgument)
	case utf8.RuneCountInString(p.Message) > MaxContentLength:
		return fmt.Errorf("%w: message exceeds %d characters", ErrInvalidArgument, MaxContentLength)
	case !p.Kind.Valid():
		return fmt.Errorf("%w: messageType is invalid", ErrInvalidArgument)
	}
	return nil
}

// [NOTIFICATION_PAYLOAD]
// Typed notification addressed to a single user channel.
type NotificationPayload struct {
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	Kind      string `json:"notificationType"`
	Timestamp int64  `json:"timestamp"`
}

func (p *NotificationPayload) Validate() error {
	switch {
	case strings.TrimSpace(p.UserID) == "":
		return fmt.Errorf("%w: userId is required", ErrInvalidArgument)
	case strings.TrimSpace(p.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalidArgument)
	case strings.TrimSpace(p.Content) == "":
		return fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	return nil
}

// Normalize fills defaults: kind tag and emission timestamp.
func (p *NotificationPayload) Normalize(now time.Time) {
	if strings.TrimSpace(p.Kind) == "" {
		p.Kind = DefaultNotificationKind
	}
	if p.Timestamp == 0 {
		p.Timestamp = now.UnixMilli()
	}
}

// Normalize fills defaults: kind and emission timestamp.
func (p *ChatEventPayload) Normalize(now time.Time) {
	if p.Kind == 0 {
		p.Kind = KindText
	}
	if p.Timestamp == 0 {
		p.Timestamp = now.UnixMilli()
	}
}

// JoinText and LeaveText are the human-readable bodies of synthesized membership events.
func JoinText(username string) string  { return username + "님이 채팅에 참여했습니다." }
func LeaveText(username string) string { return username + "님이 채팅을 떠났습니다." }
