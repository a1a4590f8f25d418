package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

// GuardMiddleware implements [DECORATOR_PATTERN] to add observability
// to membership lookups without touching business logic.
type GuardMiddleware struct {
	Next   MembershipGuard
	Logger *slog.Logger
}

func NewGuardMiddleware(next MembershipGuard, logger *slog.Logger) MembershipGuard {
	return &GuardMiddleware{
		Next:   next,
		Logger: logger.With("component", "membership"),
	}
}

func (m *GuardMiddleware) IsActiveMember(ctx context.Context, groupID, userID string) (bool, error) {
	start := time.Now()

	ok, err := m.Next.IsActiveMember(ctx, groupID, userID)
	m.observe("IS_ACTIVE_MEMBER", err, start, "group_id", groupID, "user_id", userID, "member", ok)
	return ok, err
}

func (m *GuardMiddleware) RoleOf(ctx context.Context, groupID, userID string) (model.Role, error) {
	start := time.Now()

	role, err := m.Next.RoleOf(ctx, groupID, userID)
	m.observe("ROLE_OF", err, start, "group_id", groupID, "user_id", userID, "role", role.String())
	return role, err
}

func (m *GuardMiddleware) ActiveMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	start := time.Now()

	members, err := m.Next.ActiveMembers(ctx, groupID)
	m.observe("ACTIVE_MEMBERS", err, start, "group_id", groupID, "count", len(members))
	return members, err
}

// observe logs lookup failures. Unknown groups and users are expected answers, not failures.
func (m *GuardMiddleware) observe(op string, err error, start time.Time, attrs ...any) {
	attrs = append(attrs, "op", op, "duration_ms", time.Since(start).Milliseconds())

	switch {
	case err == nil:
		m.Logger.Debug("MEMBERSHIP_LOOKUP_COMPLETED", attrs...)
	case model.ErrorKind(err) == "NotFound":
		m.Logger.Debug("MEMBERSHIP_LOOKUP_NOT_FOUND", append(attrs, "err", err)...)
	default:
		m.Logger.Error("MEMBERSHIP_LOOKUP_FAILED", append(attrs, "err", err)...)
	}
}
