// Package pubsub adapts the event log to watermill publishers and subscribers so the consumer
// pipeline runs on a watermill router regardless of the configured backend.
package pubsub

import (
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

const (
	// MetadataPosition carries the log position assigned to a message.
	MetadataPosition = "position"
	// MetadataTraceID is shared with the consumer middleware.
	MetadataTraceID = "trace_id"

	fieldUUID    = "_uuid"
	fieldTraceID = "_trace_id"
)

// toRecord flattens a message into a log record. The payload must be a JSON object of strings.
func toRecord(msg *message.Message) (eventlog.Record, error) {
	rec := make(eventlog.Record)
	if err := json.Unmarshal(msg.Payload, &rec); err != nil {
		return nil, fmt.Errorf("%w: payload is not a flat string object: %v", model.ErrInvalidArgument, err)
	}
	rec[fieldUUID] = msg.UUID
	if tid := msg.Metadata.Get(MetadataTraceID); tid != "" {
		rec[fieldTraceID] = tid
	}
	return rec, nil
}

func toMessage(e eventlog.Entry) (*message.Message, error) {
	rec := e.Record.Clone()

	id := rec[fieldUUID]
	if id == "" {
		id = watermill.NewUUID()
	}
	traceID := rec[fieldTraceID]
	delete(rec, fieldUUID)
	delete(rec, fieldTraceID)

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(id, payload)
	msg.Metadata.Set(MetadataPosition, e.Position.String())
	if traceID != "" {
		msg.Metadata.Set(MetadataTraceID, traceID)
	}
	return msg, nil
}
