package wsmarshaller

import (
	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/handler/marshaller"
)

// MarshallDeliveryEvent prepares data for WebSocket transmission.
func MarshallDeliveryEvent(ev event.Eventer) ([]byte, error) {
	return marshaller.MarshallDeliveryEvent(ev)
}
