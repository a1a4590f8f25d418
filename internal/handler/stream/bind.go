package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
)

// Decoder rebuilds a typed payload from a flat record and validates it.
type Decoder[T any] func(rec eventlog.Record) (*T, error)

// DomainHandler defines the functional signature for routing logic.
// It returns the number of sessions the event was addressed to.
type DomainHandler[T any] func(ctx context.Context, payload *T) (int, error)

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to domain logic, handling decoding, panic recovery and drop policy.
// Every record is acknowledged: a record that cannot be decoded or routed is dropped, never retried.
func Bind[T any](h *EventHandler, topic eventlog.Topic, decode Decoder[T], fn DomainHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID,
					"topic", topic)
				h.observer.ObserveDropped(string(topic), "panic")
				err = nil // ACK: the loop must survive a bad record.
			}
		}()

		// [DECODING]
		rec := make(eventlog.Record)
		if err := json.Unmarshal(msg.Payload, &rec); err != nil {
			return h.drop(msg, topic, "malformed", fmt.Errorf("record is not a flat object: %w", err))
		}
		payload, err := decode(rec)
		if err != nil {
			return h.drop(msg, topic, "invalid", err) // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		targets, err := fn(msg.Context(), payload)
		if err != nil {
			return h.drop(msg, topic, "route_failed", err)
		}

		h.observer.ObserveConsumed(string(topic))
		h.logger.Debug("RECORD_ROUTED",
			"msg_id", msg.UUID,
			"topic", topic,
			"position", msg.Metadata.Get(MetadataPosition),
			"targets", targets)
		return nil
	}
}

func (h *EventHandler) drop(msg *message.Message, topic eventlog.Topic, reason string, err error) error {
	h.logger.Warn("RECORD_DROPPED",
		"err", err,
		"reason", reason,
		"msg_id", msg.UUID,
		"topic", topic,
		"position", msg.Metadata.Get(MetadataPosition),
		"trace_id", msg.Metadata.Get(MetadataTraceID))
	h.observer.ObserveDropped(string(topic), reason)
	return nil
}
