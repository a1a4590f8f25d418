package cmd

import (
	"github.com/gulon/chat-delivery-service/config"
	clientdi "github.com/gulon/chat-delivery-service/infra/client/di"
	"github.com/gulon/chat-delivery-service/infra/pubsub"
	grpcsrv "github.com/gulon/chat-delivery-service/infra/server/grpc"
	httpsrv "github.com/gulon/chat-delivery-service/infra/server/http"
	"github.com/gulon/chat-delivery-service/internal/adapter/membership"
	adapterpubsub "github.com/gulon/chat-delivery-service/internal/adapter/pubsub"
	"github.com/gulon/chat-delivery-service/internal/adapter/store"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	httphandler "github.com/gulon/chat-delivery-service/internal/handler/http"
	"github.com/gulon/chat-delivery-service/internal/handler/stream"
	"github.com/gulon/chat-delivery-service/internal/observability"
	"github.com/gulon/chat-delivery-service/internal/service"
	"go.uber.org/fx"
)

// NewApp assembles the service. Module order fixes the lifecycle: hooks start in this order
// and stop in reverse, so listeners close before the consumer, the hub and the backend clients.
func NewApp(cfg *config.Config) *fx.App {
	return fx.New(
		fx.Provide(
			func() *config.Config { return cfg },
			ProvideLogger,
			ProvideWatermillLogger,

			func(c *clientdi.Clients) pubsub.RedisProvider { return c },
			func(c *clientdi.Clients) store.PoolProvider { return c },
			adapterpubsub.NewEventDispatcher,

			func(c *stream.Consumer) grpcsrv.ReadinessProbe { return c },
			func(c *stream.Consumer) httphandler.ReadinessProbe { return c },
		),
		fx.WithLogger(ProvideFxLogger),

		telemetryModule,
		clientdi.Module,
		pubsub.Module,
		store.Module,
		membership.Module,
		registry.Module,
		observability.Module,
		service.Module,
		stream.Module,
		httphandler.Module,
		httpsrv.Module,
		grpcsrv.Module,
	)
}
