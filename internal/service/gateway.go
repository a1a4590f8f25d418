package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/gulon/chat-delivery-service/internal/adapter/pubsub"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

// Ingester is the entry point for new chat traffic.
//
// SendMessage persists and reports rejections. The publish operations only append to the
// event log and never report failures: live callers have no response channel to carry one.
type Ingester interface {
	SendMessage(ctx context.Context, in CreateMessage) (*model.ChatMessage, error)
	PublishLiveEvent(ctx context.Context, p model.ChatEventPayload)
	PublishNotification(ctx context.Context, p model.NotificationPayload)
	Join(ctx context.Context, groupID, username string)
	Leave(ctx context.Context, groupID, username string)
}

var _ Ingester = (*Gateway)(nil)

type Gateway struct {
	messages        MessageStore
	dispatcher      pubsub.EventDispatcher
	broadcastOnSend bool
	logger          *slog.Logger
	now             func() time.Time
}

// NewGateway builds the ingestion gateway. With broadcastOnSend a persisted message is also
// raised as a live event.
func NewGateway(messages MessageStore, dispatcher pubsub.EventDispatcher, broadcastOnSend bool, logger *slog.Logger) *Gateway {
	return &Gateway{
		messages:        messages,
		dispatcher:      dispatcher,
		broadcastOnSend: broadcastOnSend,
		logger:          logger.With("component", "gateway"),
		now:             time.Now,
	}
}

// SendMessage persists a message. It does not touch the event log unless broadcastOnSend is set.
func (g *Gateway) SendMessage(ctx context.Context, in CreateMessage) (*model.ChatMessage, error) {
	m, err := g.messages.Create(ctx, in)
	if err != nil {
		return nil, err
	}

	if g.broadcastOnSend {
		g.PublishLiveEvent(ctx, model.ChatEventPayload{
			GroupID:   m.GroupID,
			SenderID:  m.SenderID,
			Message:   m.Content,
			Kind:      m.Kind,
			Timestamp: m.SentAt.UnixMilli(),
		})
	}
	return m, nil
}

// PublishLiveEvent appends a chat event. Membership is not consulted.
func (g *Gateway) PublishLiveEvent(ctx context.Context, p model.ChatEventPayload) {
	p.Normalize(g.now())
	if err := p.Validate(); err != nil {
		g.logger.Warn("LIVE_EVENT_REJECTED", "err", err, "group_id", p.GroupID, "sender_id", p.SenderID)
		return
	}

	pos, err := g.dispatcher.AppendChat(ctx, &p)
	if err != nil {
		g.logger.Error("LIVE_EVENT_APPEND_FAILED", "err", err, "group_id", p.GroupID)
		return
	}
	g.logger.Debug("LIVE_EVENT_APPENDED", "group_id", p.GroupID, "position", pos)
}

func (g *Gateway) PublishNotification(ctx context.Context, p model.NotificationPayload) {
	p.Normalize(g.now())
	if err := p.Validate(); err != nil {
		g.logger.Warn("NOTIFICATION_REJECTED", "err", err, "user_id", p.UserID)
		return
	}

	pos, err := g.dispatcher.AppendNotification(ctx, &p)
	if err != nil {
		g.logger.Error("NOTIFICATION_APPEND_FAILED", "err", err, "user_id", p.UserID)
		return
	}
	g.logger.Debug("NOTIFICATION_APPENDED", "user_id", p.UserID, "position", pos)
}

func (g *Gateway) Join(ctx context.Context, groupID, username string) {
	g.publishSystem(ctx, groupID, username, model.JoinText)
}

func (g *Gateway) Leave(ctx context.Context, groupID, username string) {
	g.publishSystem(ctx, groupID, username, model.LeaveText)
}

func (g *Gateway) publishSystem(ctx context.Context, groupID, username string, text func(string) string) {
	if username == "" {
		g.logger.Warn("SYSTEM_EVENT_REJECTED", "group_id", groupID, "reason", "empty username")
		return
	}
	g.PublishLiveEvent(ctx, model.ChatEventPayload{
		GroupID:  groupID,
		SenderID: model.SystemSender,
		Message:  text(username),
		Kind:     model.KindSystem,
	})
}
