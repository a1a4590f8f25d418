package lpmarshaller

import (
	"encoding/json"

	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/handler/marshaller"
)

// Response defines the top-level JSON array to support event batching.
type Response struct {
	Events []json.RawMessage `json:"events"`
}

// MarshallEvents converts a slice of domain events into a single JSON batch of frames.
func MarshallEvents(events []event.Eventer) ([]byte, error) {
	res := Response{
		Events: make([]json.RawMessage, 0, len(events)),
	}

	for _, ev := range events {
		frame, err := marshaller.MarshallDeliveryEvent(ev)
		if err != nil {
			return nil, err
		}
		res.Events = append(res.Events, frame)
	}

	return json.Marshal(res)
}
