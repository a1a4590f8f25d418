package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ service.MembershipGuard = (*PostgresGuard)(nil)

const statusActive = "ACTIVE"

// PostgresGuard reads the collaborator's group, user and membership tables.
// The pool is owned by the caller.
type PostgresGuard struct {
	pool    *pgxpool.Pool
	groups  string
	users   string
	members string
}

func NewPostgresGuard(pool *pgxpool.Pool, schema string) (*PostgresGuard, error) {
	if pool == nil {
		return nil, errors.New("membership: nil pool")
	}
	if schema == "" {
		schema = "public"
	}
	return &PostgresGuard{
		pool:    pool,
		groups:  pgx.Identifier{schema, "chat_groups"}.Sanitize(),
		users:   pgx.Identifier{schema, "chat_users"}.Sanitize(),
		members: pgx.Identifier{schema, "chat_group_members"}.Sanitize(),
	}, nil
}

func (g *PostgresGuard) IsActiveMember(ctx context.Context, groupID, userID string) (bool, error) {
	role, err := g.RoleOf(ctx, groupID, userID)
	return role != model.RoleNone, err
}

func (g *PostgresGuard) RoleOf(ctx context.Context, groupID, userID string) (model.Role, error) {
	var (
		groupExists bool
		userExists  bool
		role        *string
	)
	err := g.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+g.groups+` WHERE id = $1),
		        EXISTS (SELECT 1 FROM `+g.users+` WHERE id = $2),
		        (SELECT role FROM `+g.members+` WHERE group_id = $1 AND user_id = $2 AND status = $3)`,
		groupID, userID, statusActive,
	).Scan(&groupExists, &userExists, &role)
	if err != nil {
		return model.RoleNone, fmt.Errorf("membership: role of %s in %s: %w", userID, groupID, err)
	}

	switch {
	case !groupExists:
		return model.RoleNone, model.ErrGroupNotFound
	case !userExists:
		return model.RoleNone, model.ErrUserNotFound
	case role == nil:
		return model.RoleNone, nil
	}
	return storedRole(*role)
}

func (g *PostgresGuard) ActiveMembers(ctx context.Context, groupID string) ([]model.Member, error) {
	var exists bool
	if err := g.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+g.groups+` WHERE id = $1)`, groupID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("membership: group %s: %w", groupID, err)
	}
	if !exists {
		return nil, model.ErrGroupNotFound
	}

	rows, err := g.pool.Query(ctx,
		`SELECT m.user_id, u.username, m.role
		   FROM `+g.members+` m
		   JOIN `+g.users+` u ON u.id = m.user_id
		  WHERE m.group_id = $1 AND m.status = $2
		  ORDER BY m.user_id`,
		groupID, statusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("membership: members of %s: %w", groupID, err)
	}
	defer rows.Close()

	out := make([]model.Member, 0)
	for rows.Next() {
		var (
			m    model.Member
			role string
		)
		if err := rows.Scan(&m.UserID, &m.Username, &role); err != nil {
			return nil, fmt.Errorf("membership: scan member: %w", err)
		}
		if m.Role, err = storedRole(role); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// storedRole parses a role read from the membership table. An unknown value is a data fault,
// not a caller error, so the taxonomy kind is not kept.
func storedRole(raw string) (model.Role, error) {
	role, err := model.ParseRole(raw)
	if err != nil {
		return model.RoleNone, fmt.Errorf("membership: corrupt role %q in store: %v", raw, err)
	}
	return role, nil
}
