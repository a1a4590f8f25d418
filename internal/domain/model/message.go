package model

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

type MessageKind int16

const (
	// [ZERO_VALUE_GUARD] WE START FROM 1 TO DISTINGUISH FROM UNINITIALIZED DATA
	KindText         MessageKind = iota + 1 // TEXT
	KindImage                               // IMAGE
	KindFile                                // FILE
	KindSystem                              // SYSTEM
	KindNotification                        // NOTIFICATION
)

const (
	// DeletedPlaceholder replaces the content of a soft-deleted message.
	DeletedPlaceholder = "삭제된 메시지입니다."

	// MaxContentLength bounds message text, counted in runes.
	MaxContentLength = 1000

	// SystemSender is the sender identifier used for synthesized join/leave events.
	SystemSender = "SYSTEM"
)

var kindNames = map[MessageKind]string{
	KindText:         "TEXT",
	KindImage:        "IMAGE",
	KindFile:         "FILE",
	KindSystem:       "SYSTEM",
	KindNotification: "NOTIFICATION",
}

func (k MessageKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("MessageKind(%d)", int16(k))
}

func (k MessageKind) Valid() bool {
	_, ok := kindNames[k]
	return ok
}

// ParseMessageKind is case-insensitive. An empty tag defaults to TEXT.
func ParseMessageKind(s string) (MessageKind, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return KindText, nil
	}
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown message kind %q", ErrInvalidArgument, s)
}

func (k MessageKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: message kind %d", ErrInvalidArgument, int16(k))
	}
	return []byte(k.String()), nil
}

func (k *MessageKind) UnmarshalText(b []byte) error {
	parsed, err := ParseMessageKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// [CHAT_MESSAGE] PERSISTED CHAT UTTERANCE OWNED BY THE MESSAGE STORE
type ChatMessage struct {
	ID        int64
	PublicID  uuid.UUID
	GroupID   string
	SenderID  string
	Content   string
	Kind      MessageKind
	SentAt    time.Time
	EditedAt  *time.Time
	Deleted   bool
	DeletedAt *time.Time
}

func (m *ChatMessage) IsEdited() bool { return m.EditedAt != nil }

// ValidateContent checks the text bounds shared by create and edit.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: content is required", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidArgument, MaxContentLength)
	}
	return nil
}
