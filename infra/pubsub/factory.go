package pubsub

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/infra/eventlog"
	"github.com/redis/go-redis/v9"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverAMQP   = "amqp"
)

// Factory builds the publisher and subscribers of the configured event log backend.
type Factory struct {
	driver  string
	log     eventlog.Log
	amqpCfg amqp.Config
	logger  watermill.LoggerAdapter
}

// RedisProvider hands out the shared Redis client; it is only called for the redis driver.
type RedisProvider interface {
	Redis() redis.UniversalClient
}

func NewFactory(cfg *config.Config, clients RedisProvider, logger *slog.Logger, wlogger watermill.LoggerAdapter) (*Factory, error) {
	f := &Factory{driver: cfg.EventLog.Driver, logger: wlogger}

	var backing eventlog.Log
	switch cfg.EventLog.Driver {
	case DriverMemory:
		backing = eventlog.NewMemoryLog(eventlog.WithMaxLen(int(cfg.EventLog.MaxLen)))
	case DriverRedis:
		backing = eventlog.NewRedisLog(clients.Redis(), cfg.EventLog.MaxLen, cfg.EventLog.BlockTimeout)
	case DriverAMQP:
		// [FANOUT_PER_INSTANCE] A non-durable queue per instance receives only what is published
		// after it is declared, matching tail-from-latest.
		suffix := fmt.Sprintf("%s.%s", cfg.Service.ID, watermill.NewShortUUID())
		f.amqpCfg = amqp.NewNonDurablePubSubConfig(cfg.EventLog.AMQPURL, amqp.GenerateQueueNameTopicNameWithSuffix(suffix))
		f.amqpCfg.Consume.NoRequeueOnNack = true
		logger.Info("EVENTLOG_READY", "driver", f.driver, "queue_suffix", suffix)
		return f, nil
	default:
		return nil, fmt.Errorf("pubsub: unknown eventlog driver %q", cfg.EventLog.Driver)
	}

	f.log = eventlog.NewBreakerLog(backing, cfg.EventLog.Breaker.MaxFailures, cfg.EventLog.Breaker.OpenTimeout, logger)
	logger.Info("EVENTLOG_READY", "driver", f.driver, "max_len", cfg.EventLog.MaxLen)
	return f, nil
}

// NewFactoryForLog wires an existing log, as tests and embedded setups do.
func NewFactoryForLog(log eventlog.Log, wlogger watermill.LoggerAdapter) *Factory {
	return &Factory{driver: DriverMemory, log: log, logger: wlogger}
}

func (f *Factory) Driver() string { return f.driver }

// Log returns the backing event log, or nil for the amqp driver.
func (f *Factory) Log() eventlog.Log { return f.log }

func (f *Factory) BuildPublisher() (message.Publisher, error) {
	if f.driver == DriverAMQP {
		return amqp.NewPublisher(f.amqpCfg, f.logger)
	}
	return NewLogPublisher(f.log, f.logger), nil
}

func (f *Factory) BuildSubscriber() (message.Subscriber, error) {
	if f.driver == DriverAMQP {
		return amqp.NewSubscriber(f.amqpCfg, f.logger)
	}
	return NewLogSubscriber(f.log, f.logger), nil
}

// Ping checks the backend is reachable; the memory log always is.
func (f *Factory) Ping(ctx context.Context) error {
	if f.driver != DriverRedis {
		return nil
	}
	cur, err := f.log.Tail(ctx, eventlog.TopicChat, eventlog.Latest)
	if err != nil {
		return err
	}
	return cur.Close()
}

func (f *Factory) Close() error {
	if f.log != nil {
		return f.log.Close()
	}
	return nil
}
