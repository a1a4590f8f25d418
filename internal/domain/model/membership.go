package model

import (
	"fmt"
	"strings"
)

// Role is the position a user holds in a group. RoleNone means not an active member.
type Role int8

const (
	RoleNone Role = iota
	RoleMember
	RoleAdmin
	RoleOwner
)

func (r Role) String() string {
	switch r {
	case RoleMember:
		return "MEMBER"
	case RoleAdmin:
		return "ADMIN"
	case RoleOwner:
		return "OWNER"
	default:
		return "NOT_A_MEMBER"
	}
}

// CanModerate reports whether the role may delete other members' messages.
func (r Role) CanModerate() bool {
	return r == RoleOwner || r == RoleAdmin
}

func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MEMBER":
		return RoleMember, nil
	case "ADMIN":
		return RoleAdmin, nil
	case "OWNER":
		return RoleOwner, nil
	case "", "NOT_A_MEMBER", "NONE":
		return RoleNone, nil
	}
	return RoleNone, fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, s)
}

// Member is an active participant of a group as reported by the membership collaborator.
type Member struct {
	UserID   string
	Username string
	Role     Role
}
