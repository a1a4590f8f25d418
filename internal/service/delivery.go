package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
)

// [DELIVERY_SERVICE] PRIMARY INTERFACE FOR LIVE TRANSPORT HANDLERS (Websocket/Long-poll)
type Deliverer interface {
	Connect(ctx context.Context, userID string, meta registry.ConnectMetadata) (registry.Connector, error)
	SubscribeGroup(ctx context.Context, conn registry.Connector, groupID string) error
	UnsubscribeGroup(conn registry.Connector, groupID string)
	Disconnect(conn registry.Connector)
}

var _ Deliverer = (*DeliveryService)(nil)

type DeliveryService struct {
	hub           registry.Hubber
	guard         MembershipGuard
	bufferSize    int
	requireMember bool
	logger        *slog.Logger
}

func NewDeliveryService(hub registry.Hubber, guard MembershipGuard, bufferSize int, requireMember bool, logger *slog.Logger) *DeliveryService {
	return &DeliveryService{
		hub:           hub,
		guard:         guard,
		bufferSize:    bufferSize,
		requireMember: requireMember,
		logger:        logger.With("component", "delivery"),
	}
}

// [CONNECT] HANDLES CONNECTION LIFECYCLE INITIATION
// The session is bound to ctx and immediately receives its user's notifications.
func (s *DeliveryService) Connect(ctx context.Context, userID string, meta registry.ConnectMetadata) (registry.Connector, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", model.ErrInvalidArgument)
	}

	conn := registry.NewConnector(ctx, userID, s.bufferSize, meta)
	s.hub.Attach(registry.UserChannel(userID), conn)

	s.logger.Debug("SESSION_CONNECTED", "conn_id", conn.GetID(), "user_id", userID, "transport", meta.Transport)
	return conn, nil
}

// SubscribeGroup attaches the session to a group channel. Only events routed after this
// call returns reach the session.
func (s *DeliveryService) SubscribeGroup(ctx context.Context, conn registry.Connector, groupID string) error {
	if strings.TrimSpace(groupID) == "" {
		return fmt.Errorf("%w: group id is required", model.ErrInvalidArgument)
	}

	if s.requireMember {
		ok, err := s.guard.IsActiveMember(ctx, groupID, conn.GetUserID())
		if err != nil {
			return err
		}
		if !ok {
			return model.ErrNotAMember
		}
	}

	s.hub.Attach(registry.GroupChannel(groupID), conn)
	return nil
}

func (s *DeliveryService) UnsubscribeGroup(conn registry.Connector, groupID string) {
	s.hub.Detach(registry.GroupChannel(groupID), conn.GetID())
}

// [DISCONNECT] REMOVES THE SESSION FROM EVERY CHANNEL AND RELEASES IT
func (s *DeliveryService) Disconnect(conn registry.Connector) {
	s.hub.DetachAll(conn.GetID())
	conn.Close()

	s.logger.Debug("SESSION_DISCONNECTED", "conn_id", conn.GetID(), "user_id", conn.GetUserID(), "dropped", conn.Dropped())
}
