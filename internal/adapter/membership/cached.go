package membership

import (
	"context"
	"time"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

var _ service.MembershipGuard = (*CachedGuard)(nil)

// CachedGuard keeps successful role lookups for a short TTL.
// Errors, including unknown group or user, are never cached.
type CachedGuard struct {
	next  service.MembershipGuard
	roles *expirable.LRU[string, model.Role]
}

func NewCachedGuard(next service.MembershipGuard, size int, ttl time.Duration) *CachedGuard {
	return &CachedGuard{
		next:  next,
		roles: expirable.NewLRU[string, model.Role](size, nil, ttl),
	}
}

func (c *CachedGuard) IsActiveMember(ctx context.Context, groupID, userID string) (bool, error) {
	role, err := c.RoleOf(ctx, groupID, userID)
	return role != model.RoleNone, err
}

func (c *CachedGuard) RoleOf(ctx context.Context, groupID, userID string) (model.Role, error) {
	key := groupID + "\x00" + userID
	if role, ok := c.roles.Get(key); ok {
		return role, nil
	}

	role, err := c.next.RoleOf(ctx, groupID, userID)
	if err != nil {
		return role, err
	}
	c.roles.Add(key, role)
	return role, nil
}

func (c *CachedGuard) ActiveMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	return c.next.ActiveMembers(ctx, groupID)
}

// Purge drops every cached role.
func (c *CachedGuard) Purge() { c.roles.Purge() }
