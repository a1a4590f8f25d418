package membership

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gulon/chat-delivery-service/config"
	"github.com/gulon/chat-delivery-service/internal/adapter/store"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
	"go.uber.org/fx"
)

// NewGuard selects the membership backend from config.
func NewGuard(cfg *config.Config, pools store.PoolProvider, logger *slog.Logger) (service.MembershipGuard, error) {
	switch cfg.Membership.Driver {
	case "postgres":
		pool, err := pools.Postgres(context.Background())
		if err != nil {
			return nil, err
		}
		pg, err := NewPostgresGuard(pool, cfg.Database.Schema)
		if err != nil {
			return nil, err
		}
		if cfg.Membership.CacheSize <= 0 {
			return pg, nil
		}
		logger.Info("MEMBERSHIP_CACHE_ENABLED", "size", cfg.Membership.CacheSize, "ttl", cfg.Membership.CacheTTL)
		return NewCachedGuard(pg, cfg.Membership.CacheSize, cfg.Membership.CacheTTL), nil
	default:
		guard, err := SeededGuard(cfg.Membership.Seed)
		if err != nil {
			return nil, err
		}
		logger.Warn("MEMBERSHIP_IN_MEMORY", "seeded_members", len(cfg.Membership.Seed))
		return guard, nil
	}
}

// SeededGuard builds a memory guard from configured members.
func SeededGuard(seed []config.MemberSeed) (*MemoryGuard, error) {
	g := NewMemoryGuard()
	for _, s := range seed {
		role, err := model.ParseRole(s.Role)
		if err != nil {
			return nil, fmt.Errorf("membership: seed %s/%s: %w", s.GroupID, s.UserID, err)
		}
		g.AddGroup(s.GroupID)
		g.AddUser(s.UserID, s.Username)
		if role != model.RoleNone {
			g.SetMember(s.GroupID, s.UserID, s.Username, role)
		}
	}
	return g, nil
}

var Module = fx.Module("membership",
	fx.Provide(NewGuard),
)
