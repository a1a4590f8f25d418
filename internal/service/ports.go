package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

//go:generate mockgen -destination=../../mocks/mock_guard.go -package=mocks . MembershipGuard

// MembershipGuard is the authoritative membership collaborator.
//
// Unknown groups and users are reported as ErrGroupNotFound and ErrUserNotFound.
// A known user without an active membership is (false, nil) and RoleNone.
type MembershipGuard interface {
	IsActiveMember(ctx context.Context, groupID, userID string) (bool, error)
	RoleOf(ctx context.Context, groupID, userID string) (model.Role, error)
	ActiveMembers(ctx context.Context, groupID string) ([]model.Member, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	// Insert stores a new message and assigns its sequential key.
	Insert(ctx context.Context, m *model.ChatMessage) error
	Get(ctx context.Context, publicID uuid.UUID) (*model.ChatMessage, error)
	// Update runs fn on the current row under a per-message lock and persists the result
	// only when fn returns nil.
	Update(ctx context.Context, publicID uuid.UUID, fn func(m *model.ChatMessage) error) (*model.ChatMessage, error)
	Find(ctx context.Context, q model.MessageQuery) ([]model.ChatMessage, int64, error)
	Close() error
}

// Presence reports whether a user has a live connection on this instance.
type Presence interface {
	IsOnline(userID string) bool
}
