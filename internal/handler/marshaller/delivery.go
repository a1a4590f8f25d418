package marshaller

import (
	"encoding/json"

	"github.com/gulon/chat-delivery-service/internal/domain/event"
)

// Frame is the server-to-client envelope shared by the websocket and long-poll transports.
type Frame struct {
	Event   string `json:"event"` // e.g., "chat_message", "connected"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallDeliveryEvent transforms a domain event into its JSON frame.
// The encoding is cached on the event, so a group broadcast is encoded once no matter
// how many sessions receive it.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	if cached, ok := ev.GetCached().([]byte); ok {
		return cached, nil
	}

	data, err := json.Marshal(&Frame{
		Event:   ev.GetKind().String(),
		ID:      ev.GetID(),
		SentAt:  ev.GetOccurredAt(),
		Payload: ev.GetPayload(),
	})
	if err != nil {
		return nil, err
	}

	// STORE: Save for the remaining subscribers of the same event.
	ev.SetCached(data)
	return data, nil
}
