// Package membership implements the membership collaborator consulted by the message store.
package membership

import (
	"context"
	"sort"
	"sync"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
)

var _ service.MembershipGuard = (*MemoryGuard)(nil)

// MemoryGuard is a seeded in-process membership table.
type MemoryGuard struct {
	mu     sync.RWMutex
	users  map[string]string
	groups map[string]map[string]model.Role
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{
		users:  make(map[string]string),
		groups: make(map[string]map[string]model.Role),
	}
}

func (g *MemoryGuard) AddGroup(groupID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.groups[groupID]; !ok {
		g.groups[groupID] = make(map[string]model.Role)
	}
}

func (g *MemoryGuard) AddUser(userID, username string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.users[userID] = username
}

// SetMember registers the group and user if needed. RoleNone removes the membership.
func (g *MemoryGuard) SetMember(groupID, userID, username string, role model.Role) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.users[userID]; !ok || username != "" {
		g.users[userID] = username
	}
	members, ok := g.groups[groupID]
	if !ok {
		members = make(map[string]model.Role)
		g.groups[groupID] = members
	}
	if role == model.RoleNone {
		delete(members, userID)
		return
	}
	members[userID] = role
}

func (g *MemoryGuard) IsActiveMember(ctx context.Context, groupID, userID string) (bool, error) {
	role, err := g.RoleOf(ctx, groupID, userID)
	return role != model.RoleNone, err
}

func (g *MemoryGuard) RoleOf(ctx context.Context, groupID, userID string) (model.Role, error) {
	if err := ctx.Err(); err != nil {
		return model.RoleNone, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	members, ok := g.groups[groupID]
	if !ok {
		return model.RoleNone, model.ErrGroupNotFound
	}
	if _, ok := g.users[userID]; !ok {
		return model.RoleNone, model.ErrUserNotFound
	}
	return members[userID], nil
}

func (g *MemoryGuard) ActiveMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	members, ok := g.groups[groupID]
	if !ok {
		return nil, model.ErrGroupNotFound
	}
	out := make([]model.Member, 0, len(members))
	for userID, role := range members {
		out = append(out, model.Member{UserID: userID, Username: g.users[userID], Role: role})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
