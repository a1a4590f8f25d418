package clientdi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gulon/chat-delivery-service/config"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// Clients owns connections to external backends. Each client is created on first use,
// so an in-memory deployment never dials Postgres or Redis.
type Clients struct {
	cfg    *config.Config
	logger *slog.Logger

	pgOnce sync.Once
	pg     *pgxpool.Pool
	pgErr  error

	redisOnce sync.Once
	redis     redis.UniversalClient
}

func NewClients(cfg *config.Config, logger *slog.Logger) *Clients {
	return &Clients{cfg: cfg, logger: logger.With("component", "clients")}
}

// Postgres returns the shared pool, connecting and pinging on the first call.
func (c *Clients) Postgres(ctx context.Context) (*pgxpool.Pool, error) {
	c.pgOnce.Do(func() {
		if c.cfg.Database.URL == "" {
			c.pgErr = errors.New("clients: database.url is not set")
			return
		}
		pcfg, err := pgxpool.ParseConfig(c.cfg.Database.URL)
		if err != nil {
			c.pgErr = fmt.Errorf("clients: parse database url: %w", err)
			return
		}
		if c.cfg.Database.MaxConns > 0 {
			pcfg.MaxConns = c.cfg.Database.MaxConns
		}
		pcfg.MinConns = c.cfg.Database.MinConns

		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			c.pgErr = fmt.Errorf("clients: open postgres: %w", err)
			return
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			c.pgErr = fmt.Errorf("clients: ping postgres: %w", err)
			return
		}
		c.pg = pool
		c.logger.Info("POSTGRES_CONNECTED", "max_conns", pcfg.MaxConns)
	})
	return c.pg, c.pgErr
}

// Redis returns the shared client. Connections are established lazily by go-redis.
func (c *Clients) Redis() redis.UniversalClient {
	c.redisOnce.Do(func() {
		c.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{c.cfg.Redis.Addr},
			Password:     c.cfg.Redis.Password,
			DB:           c.cfg.Redis.DB,
			PoolSize:     c.cfg.Redis.PoolSize,
			MinIdleConns: c.cfg.Redis.MinIdleConns,
		})
		c.logger.Info("REDIS_CLIENT_CREATED", "addr", c.cfg.Redis.Addr)
	})
	return c.redis
}

func (c *Clients) Close() error {
	var errs []error
	if c.pg != nil {
		c.pg.Close()
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}
	return errors.Join(errs...)
}

var Module = fx.Module(
	"clients",

	fx.Provide(NewClients),

	// [LIFECYCLE] Registered first so pools are closed after every consumer of them has stopped.
	fx.Invoke(func(lc fx.Lifecycle, clients *Clients) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return clients.Close()
			},
		})
	}),
)
