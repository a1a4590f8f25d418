package store

import (
	"context"
	"log/slog"

	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

// PoolProvider hands out the shared Postgres pool on first use.
type PoolProvider interface {
	Postgres(ctx context.Context) (*pgxpool.Pool, error)
}

// NewRepository selects the message backend: Postgres when a database URL is configured,
// memory otherwise.
func NewRepository(lc fx.Lifecycle, cfg *config.Config, pools PoolProvider, logger *slog.Logger) (service.MessageRepository, error) {
	if !cfg.UsesPostgres() {
		logger.Warn("MESSAGE_STORE_IN_MEMORY", "reason", "database.url is empty")
		return NewMemoryRepository(), nil
	}

	pool, err := pools.Postgres(context.Background())
	if err != nil {
		return nil, err
	}
	repo, err := NewPostgresRepository(pool, cfg.Database.Schema)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !cfg.Database.Migrate {
				return nil
			}
			if err := Migrate(ctx, pool, cfg.Database.Schema); err != nil {
				return err
			}
			logger.Info("MESSAGE_SCHEMA_READY", "schema", cfg.Database.Schema)
			return nil
		},
		OnStop: func(ctx context.Context) error { return repo.Close() },
	})
	return repo, nil
}

var Module = fx.Module("store",
	fx.Provide(NewRepository),
)
