package stream

import (
	"context"

	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

// [ON_CHAT_EVENT]
// Fans a live chat event out to every session subscribed to the group.
func (h *EventHandler) OnChatEvent(_ context.Context, p *model.ChatEventPayload) (int, error) {
	return h.router.DeliverToGroup(p.GroupID, event.NewChatV1Event(p)), nil
}

// [ON_NOTIFICATION_EVENT]
// Delivers a notification to every session of the addressed user.
func (h *EventHandler) OnNotificationEvent(_ context.Context, p *model.NotificationPayload) (int, error) {
	return h.router.DeliverToUser(p.UserID, event.NewNotificationV1Event(p)), nil
}
