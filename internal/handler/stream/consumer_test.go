package stream

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
	"github.com/gulon/chat-delivery-service/infra/pubsub"
	adapterpubsub "github.com/gulon/chat-delivery-service/internal/adapter/pubsub"
	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	"github.com/stretchr/testify/require"
)

type countingObserver struct {
	mu       sync.Mutex
	consumed map[string]int
	dropped  map[string]int
}

func newCountingObserver() *countingObserver {
	return &countingObserver{consumed: map[string]int{}, dropped: map[string]int{}}
}

func (o *countingObserver) ObserveConsumed(topic string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.consumed[topic]++
}

func (o *countingObserver) ObserveDropped(topic, reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped[topic+"/"+reason]++
}

func (o *countingObserver) droppedCount(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dropped[key]
}

type pipeline struct {
	log        *eventlog.MemoryLog
	publisher  message.Publisher
	dispatcher adapterpubsub.EventDispatcher
	hub        *registry.Hub
	observer   *countingObserver
	consumer   *Consumer
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	log := eventlog.NewMemoryLog()
	pub := pubsub.NewLogPublisher(log, nil)
	hub := registry.NewHub()
	obs := newCountingObserver()

	consumer, err := NewConsumer(
		config.ConsumerConfig{CloseTimeout: time.Second, HandlerTimeout: time.Second},
		NewEventHandler(hub, logger, obs),
		pubsub.NewLogSubscriber(log, nil),
		watermill.NopLogger{},
		logger,
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = consumer.Stop()
		hub.Shutdown()
		_ = log.Close()
	})

	return &pipeline{
		log:        log,
		publisher:  pub,
		dispatcher: adapterpubsub.NewEventDispatcher(pub),
		hub:        hub,
		observer:   obs,
		consumer:   consumer,
	}
}

func (p *pipeline) connect(t *testing.T, userID string, groups ...string) registry.Connector {
	t.Helper()
	conn := registry.NewConnector(context.Background(), userID, 16, registry.ConnectMetadata{Transport: "test"})
	p.hub.Attach(registry.UserChannel(userID), conn)
	for _, g := range groups {
		p.hub.Attach(registry.GroupChannel(g), conn)
	}
	return conn
}

func expectEvent(t *testing.T, conn registry.Connector) event.Eventer {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no event delivered", "user %s", conn.GetUserID())
		return nil
	}
}

func expectNothing(t *testing.T, conn registry.Connector) {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		require.FailNow(t, "unexpected event", "user %s got %s", conn.GetUserID(), ev.GetKind())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestConsumer_LiveFanOut(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t)
	ctx := context.Background()

	// Given a record appended before start-up, which must never be replayed
	_, err := p.dispatcher.AppendChat(ctx, &model.ChatEventPayload{GroupID: "g1", SenderID: "u0", Message: "stale", Kind: model.KindText, Timestamp: 1})
	req.NoError(err)

	req.NoError(p.consumer.Start(ctx))
	req.Equal(StateRunning, p.consumer.State())
	req.True(p.consumer.Ready())

	// And two sessions on g1, one on g2
	c1 := p.connect(t, "u1", "g1")
	c2 := p.connect(t, "u2", "g1")
	c3 := p.connect(t, "u3", "g2")

	// When a live event is appended for g1
	_, err = p.dispatcher.AppendChat(ctx, &model.ChatEventPayload{GroupID: "g1", SenderID: "u1", Message: "hi", Kind: model.KindText, Timestamp: 1700000000000})
	req.NoError(err)

	// Then both g1 sessions receive it and g2 does not
	for _, c := range []registry.Connector{c1, c2} {
		ev := expectEvent(t, c)
		req.Equal(event.ChatMessage, ev.GetKind())
		payload := ev.GetPayload().(*model.ChatEventPayload)
		req.Equal("hi", payload.Message)
		req.Equal("u1", payload.SenderID)
	}
	expectNothing(t, c3)
}

func TestConsumer_NotificationToUser(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t)
	ctx := context.Background()
	req.NoError(p.consumer.Start(ctx))

	target := p.connect(t, "u2")
	other := p.connect(t, "u3")

	_, err := p.dispatcher.AppendNotification(ctx, &model.NotificationPayload{UserID: "u2", Title: "t", Content: "c", Kind: "INFO", Timestamp: 5})
	req.NoError(err)

	ev := expectEvent(t, target)
	req.Equal(event.Notification, ev.GetKind())
	req.Equal("t", ev.GetPayload().(*model.NotificationPayload).Title)
	expectNothing(t, other)
}

func TestConsumer_PoisonRecordsAreDropped(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t)
	ctx := context.Background()
	req.NoError(p.consumer.Start(ctx))

	c1 := p.connect(t, "u1", "g1")

	// Given a record with an unknown kind and one missing its sender
	bad := []string{
		`{"groupId":"g1","senderId":"u1","message":"x","messageType":"GIF","timestamp":"1"}`,
		`{"groupId":"g1","message":"x","messageType":"TEXT","timestamp":"1"}`,
	}
	for _, payload := range bad {
		req.NoError(p.publisher.Publish(string(eventlog.TopicChat), message.NewMessage(watermill.NewUUID(), []byte(payload))))
	}

	// When a valid record follows
	_, err := p.dispatcher.AppendChat(ctx, &model.ChatEventPayload{GroupID: "g1", SenderID: "u1", Message: "ok", Kind: model.KindText, Timestamp: 1})
	req.NoError(err)

	// Then only the valid one is delivered and the loop keeps running
	ev := expectEvent(t, c1)
	req.Equal("ok", ev.GetPayload().(*model.ChatEventPayload).Message)
	expectNothing(t, c1)
	req.Equal(2, p.observer.droppedCount("chat/invalid"))
	req.Equal(StateRunning, p.consumer.State())
}

func TestConsumer_Lifecycle(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t)
	ctx := context.Background()

	req.ErrorIs(p.consumer.Stop(), ErrIllegalState)

	req.NoError(p.consumer.Start(ctx))
	req.ErrorIs(p.consumer.Start(ctx), ErrIllegalState)

	req.NoError(p.consumer.Stop())
	req.Equal(StateStopped, p.consumer.State())
	req.False(p.consumer.Ready())

	// A stopped consumer is terminal
	req.ErrorIs(p.consumer.Start(ctx), ErrConsumerClosed)
	req.ErrorIs(p.consumer.Stop(), ErrConsumerClosed)
}

func TestConsumer_StoppedConsumerDeliversNothing(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t)
	ctx := context.Background()

	req.NoError(p.consumer.Start(ctx))
	c1 := p.connect(t, "u1", "g1")
	req.NoError(p.consumer.Stop())

	_, err := p.dispatcher.AppendChat(ctx, &model.ChatEventPayload{GroupID: "g1", SenderID: "u1", Message: "late", Kind: model.KindText, Timestamp: 1})
	req.NoError(err)
	expectNothing(t, c1)
}

func TestBind_RecoversPanics(t *testing.T) {
	req := require.New(t)
	obs := newCountingObserver()
	h := NewEventHandler(registry.NewHub(), slog.New(slog.NewTextHandler(io.Discard, nil)), obs)

	fn := Bind(h, eventlog.TopicChat, adapterpubsub.DecodeChatRecord, func(context.Context, *model.ChatEventPayload) (int, error) {
		panic("boom")
	})

	msg := message.NewMessage("m-1", []byte(`{"groupId":"g1","senderId":"u1","message":"x","timestamp":"1"}`))
	req.NoError(fn(msg))
	req.Equal(1, obs.droppedCount("chat/panic"))

	req.NoError(fn(message.NewMessage("m-2", []byte(`[1,2]`))))
	req.Equal(1, obs.droppedCount("chat/malformed"))
}

func TestTraceIDMiddleware(t *testing.T) {
	req := require.New(t)

	var seen string
	h := TraceIDMiddleware(func(msg *message.Message) ([]*message.Message, error) {
		seen = TraceIDFromContext(msg.Context())
		return nil, nil
	})

	msg := message.NewMessage("m-1", nil)
	msg.Metadata.Set(MetadataTraceID, "trace-1")
	_, err := h(msg)
	req.NoError(err)
	req.Equal("trace-1", seen)

	fresh := message.NewMessage("m-2", nil)
	_, err = h(fresh)
	req.NoError(err)
	req.NotEmpty(fresh.Metadata.Get(MetadataTraceID))
	req.Equal(fresh.Metadata.Get(MetadataTraceID), seen)
}
