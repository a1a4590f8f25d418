package stream

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/infra/pubsub"
	"go.uber.org/fx"
)

var Module = fx.Module("stream-handler",
	fx.Provide(
		NewEventHandler,
		func(cfg *config.Config, h *EventHandler, f *pubsub.Factory, wlogger watermill.LoggerAdapter, logger *slog.Logger) (*Consumer, error) {
			sub, err := f.BuildSubscriber()
			if err != nil {
				return nil, err
			}
			return NewConsumer(cfg.Consumer, h, sub, wlogger, logger)
		},
	),
	fx.Invoke(func(lc fx.Lifecycle, c *Consumer) {
		lc.Append(fx.Hook{
			OnStart: c.Start,
			OnStop: func(context.Context) error {
				return c.Stop()
			},
		})
	}),
)
