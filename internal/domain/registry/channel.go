package registry

import (
	"fmt"
	"strings"
)

// Scope distinguishes group-addressed channels from user-addressed ones.
type Scope uint8

const (
	ScopeGroup Scope = iota + 1
	ScopeUser
)

func (s Scope) String() string {
	switch s {
	case ScopeGroup:
		return "group"
	case ScopeUser:
		return "user"
	default:
		return "unknown"
	}
}

// ChannelKey is the addressing unit for broadcast.
type ChannelKey struct {
	Scope Scope
	ID    string
}

func GroupChannel(groupID string) ChannelKey { return ChannelKey{Scope: ScopeGroup, ID: groupID} }
func UserChannel(userID string) ChannelKey   { return ChannelKey{Scope: ScopeUser, ID: userID} }

func (k ChannelKey) String() string { return k.Scope.String() + ":" + k.ID }

// ParseChannelKey accepts the "group:<id>" / "user:<id>" form produced by String.
func ParseChannelKey(s string) (ChannelKey, error) {
	scope, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return ChannelKey{}, fmt.Errorf("registry: malformed channel key %q", s)
	}
	switch scope {
	case "group":
		return GroupChannel(id), nil
	case "user":
		return UserChannel(id), nil
	}
	return ChannelKey{}, fmt.Errorf("registry: unknown channel scope %q", scope)
}
