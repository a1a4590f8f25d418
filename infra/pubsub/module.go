package pubsub

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
)

var Module = fx.Module("pubsub",
	fx.Provide(
		NewFactory,
		func(f *Factory) (message.Publisher, error) { return f.BuildPublisher() },
	),
	fx.Invoke(func(lc fx.Lifecycle, f *Factory, pub message.Publisher) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				return f.Ping(ctx)
			},
			// [SHUTDOWN_ORDER] Registered before the consumer, so it closes after the consumer stops.
			OnStop: func(ctx context.Context) error {
				_ = pub.Close()
				return f.Close()
			},
		})
	}),
)
