// Package eventlog is the append-only, per-topic record sequence that decouples chat producers
// from the consumer. Tails always start from a position and yield strictly later records.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

type Topic string

const (
	TopicChat         Topic = "chat"
	TopicNotification Topic = "notification"
)

// Topics lists the statically known topics.
var Topics = []Topic{TopicChat, TopicNotification}

func (t Topic) Valid() bool {
	return t == TopicChat || t == TopicNotification
}

// Record is a flat key/value stream event. Appended records are never modified.
type Record map[string]string

func (r Record) Clone() Record { return maps.Clone(r) }

type Entry struct {
	Position Position
	Record   Record
}

// Cursor is a live read handle over one topic.
type Cursor interface {
	// Next blocks until a record after the cursor position is available.
	Next(ctx context.Context) (Entry, error)
	Close() error
}

type Log interface {
	Append(ctx context.Context, topic Topic, rec Record) (Position, error)
	// Tail registers a cursor before returning; with Latest it sees only records appended afterwards.
	Tail(ctx context.Context, topic Topic, from Position) (Cursor, error)
	Close() error
}

var (
	ErrClosed       = errors.New("eventlog: closed")
	ErrUnknownTopic = fmt.Errorf("%w: eventlog: unknown topic", model.ErrInvalidArgument)
)

func checkTopic(t Topic) error {
	if !t.Valid() {
		return fmt.Errorf("%w %q", ErrUnknownTopic, string(t))
	}
	return nil
}
