package service

import (
	"log/slog"

	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/internal/adapter/pubsub"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		func(h registry.Hubber) Presence { return h },

		fx.Annotate(
			NewMessageService,
			fx.As(new(MessageStore)),
		),
		fx.Annotate(
			func(messages MessageStore, d pubsub.EventDispatcher, cfg *config.Config, logger *slog.Logger) *Gateway {
				return NewGateway(messages, d, cfg.Chat.BroadcastOnSend, logger)
			},
			fx.As(new(Ingester)),
		),
		fx.Annotate(
			func(hub registry.Hubber, guard MembershipGuard, cfg *config.Config, logger *slog.Logger) *DeliveryService {
				return NewDeliveryService(hub, guard, cfg.Hub.ConnBufferSize, cfg.Chat.SubscribeRequiresMembership, logger)
			},
			fx.As(new(Deliverer)),
		),
	),

	// [DECORATION_LAYER] Intercept MembershipGuard to add cross-cutting concerns
	fx.Decorate(func(orig MembershipGuard, logger *slog.Logger) MembershipGuard {
		return NewGuardMiddleware(orig, logger)
	}),
)
