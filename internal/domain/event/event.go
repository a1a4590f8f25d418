package event

import "sync/atomic"

type EventKind int16

const (
	Connected        EventKind = iota + 1 // [SYSTEM]
	Disconnected                          // [SYSTEM]
	Subscribed                            // [SYSTEM]
	Unsubscribed                          // [SYSTEM]
	Rejected                              // [SYSTEM]
	ChatMessage                           // [BUSINESS]
	Notification                          // [BUSINESS]
)

var kindNames = map[EventKind]string{
	Connected:    "connected",
	Disconnected: "disconnected",
	Subscribed:   "subscribed",
	Unsubscribed: "unsubscribed",
	Rejected:     "error",
	ChatMessage:  "chat_message",
	Notification: "notification",
}

// String returns the wire name of the kind.
func (k EventKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

type EventPriority int32

const (
	PriorityLow    EventPriority = 10
	PriorityNormal EventPriority = 20
	PriorityHigh   EventPriority = 30
)

// Eventer defines the contract for all data packets flowing through the Hub.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetPriority() EventPriority
	GetOccurredAt() int64
	GetPayload() any
	GetCached() any
	SetCached(any)
}

// wireCache holds the transport encoding of an event. One event instance is shared by every
// subscriber of a channel and written from several connection goroutines, so access is atomic.
type wireCache struct {
	v atomic.Value
}

func (c *wireCache) GetCached() any { return c.v.Load() }

// SetCached stores []byte only; atomic.Value rejects mixed types.
func (c *wireCache) SetCached(v any) {
	if b, ok := v.([]byte); ok {
		c.v.Store(b)
	}
}
