package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
	infrapubsub "github.com/gulon/chat-delivery-service/infra/pubsub"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

//go:generate mockgen -destination=../../../mocks/mock_dispatcher.go -package=mocks . EventDispatcher

// EventDispatcher defines the high-level contract for outgoing stream events.
// This allows the gateway to stay agnostic of the log backend.
type EventDispatcher interface {
	// AppendChat returns the log position, or an empty string when the backend assigns none.
	AppendChat(ctx context.Context, p *model.ChatEventPayload) (string, error)
	AppendNotification(ctx context.Context, p *model.NotificationPayload) (string, error)
}

type eventDispatcher struct {
	publisher message.Publisher
	tracer    trace.Tracer
}

// NewEventDispatcher returns the interface instead of the pointer to the struct.
func NewEventDispatcher(pub message.Publisher) EventDispatcher {
	return &eventDispatcher{
		publisher: pub,
		tracer:    otel.Tracer("github.com/gulon/chat-delivery-service/dispatcher"),
	}
}

func (d *eventDispatcher) AppendChat(ctx context.Context, p *model.ChatEventPayload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("event dispatcher: cannot append nil chat event")
	}
	return d.append(ctx, eventlog.TopicChat, ChatRecord(p), attribute.String("chat.group_id", p.GroupID))
}

func (d *eventDispatcher) AppendNotification(ctx context.Context, p *model.NotificationPayload) (string, error) {
	if p == nil {
		return "", fmt.Errorf("event dispatcher: cannot append nil notification")
	}
	return d.append(ctx, eventlog.TopicNotification, NotificationRecord(p), attribute.String("chat.user_id", p.UserID))
}

func (d *eventDispatcher) append(ctx context.Context, topic eventlog.Topic, rec eventlog.Record, attrs ...attribute.KeyValue) (string, error) {
	ctx, span := d.tracer.Start(ctx, "eventlog.append "+string(topic), trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(attrs...)

	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("event dispatcher: marshal failure: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	if sc := span.SpanContext(); sc.HasTraceID() {
		msg.Metadata.Set(infrapubsub.MetadataTraceID, sc.TraceID().String())
	} else {
		msg.Metadata.Set(infrapubsub.MetadataTraceID, msg.UUID)
	}

	if err := d.publisher.Publish(string(topic), msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append failed")
		return "", fmt.Errorf("event dispatcher: failed to append to topic %s: %w", topic, err)
	}

	pos := msg.Metadata.Get(infrapubsub.MetadataPosition)
	span.SetAttributes(attribute.String("eventlog.position", pos))
	return pos, nil
}
