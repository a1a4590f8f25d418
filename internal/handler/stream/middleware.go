package stream

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/infra/pubsub"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	MetadataTraceID  = pubsub.MetadataTraceID
	MetadataPosition = pubsub.MetadataPosition
)

type traceIDKey struct{}

// TraceIDFromContext returns the trace id attached by TraceIDMiddleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey{}).(string)
	return id
}

// [TRACE_ID_MIDDLEWARE]
// Ensures TraceID persistence through the call chain and opens a consumer span.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	tracer := otel.Tracer("github.com/gulon/chat-delivery-service/consumer")

	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get(MetadataTraceID)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(MetadataTraceID, traceID)
		}

		ctx, span := tracer.Start(msg.Context(), "eventlog.consume "+message.SubscribeTopicFromCtx(msg.Context()),
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.message.id", msg.UUID),
				attribute.String("eventlog.position", msg.Metadata.Get(MetadataPosition)),
			))
		defer span.End()

		msg.SetContext(context.WithValue(ctx, traceIDKey{}, traceID))
		return h(msg)
	}
}

// [LOGGING_MIDDLEWARE]
// Structured logging with latency and TraceID.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("MESSAGE_HANDLED",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get(MetadataTraceID),
				"handler", message.HandlerNameFromCtx(msg.Context()),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}
