package stream

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
	adapterpubsub "github.com/gulon/chat-delivery-service/internal/adapter/pubsub"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
)

const (
	HandlerChat         = "ON_CHAT_EVENT"
	HandlerNotification = "ON_NOTIFICATION_EVENT"
)

// Observer receives per-record consumer outcomes.
type Observer interface {
	ObserveConsumed(topic string)
	ObserveDropped(topic, reason string)
}

type noopObserver struct{}

func (noopObserver) ObserveConsumed(string)        {}
func (noopObserver) ObserveDropped(string, string) {}

// EventHandler decodes log records and hands them to the broadcast router.
type EventHandler struct {
	router   registry.Router
	logger   *slog.Logger
	observer Observer
}

func NewEventHandler(router registry.Router, logger *slog.Logger, observer Observer) *EventHandler {
	if observer == nil {
		observer = noopObserver{}
	}
	return &EventHandler{
		router:   router,
		logger:   logger.With("component", "consumer"),
		observer: observer,
	}
}

// [REGISTRATION_PIPELINE]
// One handler per topic, all sharing the subscriber. Handlers never publish.
func (h *EventHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, handlerTimeout time.Duration) {
	configs := []struct {
		name    string
		topic   eventlog.Topic
		handler message.NoPublishHandlerFunc
	}{
		{HandlerChat, eventlog.TopicChat, Bind(h, eventlog.TopicChat, adapterpubsub.DecodeChatRecord, h.OnChatEvent)},
		{HandlerNotification, eventlog.TopicNotification, Bind(h, eventlog.TopicNotification, adapterpubsub.DecodeNotificationRecord, h.OnNotificationEvent)},
	}

	for _, c := range configs {
		mw := []message.HandlerMiddleware{
			TraceIDMiddleware,
			LoggingMiddleware(h.logger),
		}
		if handlerTimeout > 0 {
			mw = append(mw, middleware.Timeout(handlerTimeout))
		}
		router.AddConsumerHandler(c.name, string(c.topic), sub, c.handler).AddMiddleware(mw...)
	}

	h.logger.Info("CONSUMER_PIPELINE_READY", "handlers", len(configs))
}
