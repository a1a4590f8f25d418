package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gulon/chat-delivery-service/config"
	httpsrv "github.com/gulon/chat-delivery-service/infra/server/http"
	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	wsmarshaller "github.com/gulon/chat-delivery-service/internal/handler/marshaller/ws"
	"github.com/gulon/chat-delivery-service/internal/service"
)

type WSHandler struct {
	logger    *slog.Logger
	deliverer service.Deliverer
	ingester  service.Ingester
	cfg       config.WSConfig
	upgrader  websocket.Upgrader
}

func NewWSHandler(logger *slog.Logger, cfg *config.Config, deliverer service.Deliverer, ingester service.Ingester) *WSHandler {
	origins := cfg.WS.AllowedOrigins
	return &WSHandler{
		logger:    logger.With("component", "ws"),
		deliverer: deliverer,
		ingester:  ingester,
		cfg:       cfg.WS,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, "*") || slices.Contains(origins, origin)
			},
		},
	}
}

// session couples one websocket with its hub connector. Only the write pump writes to ws.
type session struct {
	ws      *websocket.Conn
	conn    registry.Connector
	replies chan event.Eventer
	logger  *slog.Logger
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 1. EXTRACT USER ID (set by the identity middleware)
	userID, ok := httpsrv.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	// 2. UPGRADE TO WEBSOCKET
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("[WS] upgrade failed", "err", err, "user_id", userID)
		return
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// 3. ATTACH TO THE HUB (user channel)
	conn, err := h.deliverer.Connect(ctx, userID, registry.ConnectMetadata{
		Transport: "ws",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.logger.Warn("[WS] connect rejected", "err", err, "user_id", userID)
		return
	}
	defer h.deliverer.Disconnect(conn)

	s := &session{
		ws:      ws,
		conn:    conn,
		replies: make(chan event.Eventer, 16),
		logger:  h.logger.With("user_id", userID, "conn_id", conn.GetID()),
	}
	s.logger.Info("[WS] opened", "remote", r.RemoteAddr)

	s.reply(event.NewSystemEvent(event.Connected, event.PriorityHigh, &model.ConnectedPayload{
		Ok:            true,
		ConnectionID:  conn.GetID().String(),
		UserID:        userID,
		ServerVersion: model.ServerVersion,
	}))

	// 4. MAIN WS PUMPS
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		h.writePump(ctx, s)
	}()

	h.readPump(ctx, s)
	cancel()
	wg.Wait()
	s.logger.Info("[WS] closed", "dropped", conn.Dropped())
}

// readPump processes client frames until the socket fails or the session ends.
func (h *WSHandler) readPump(ctx context.Context, s *session) {
	s.ws.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = s.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, data, err := s.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("[WS] read failed", "err", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.handleFrame(ctx, s, data)
	}
}

// writePump is the single writer: hub events, replies and keep-alive pings.
func (h *WSHandler) writePump(ctx context.Context, s *session) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.writeClose(s, websocket.CloseNormalClosure, "")
			return

		case <-s.conn.Done():
			if ctx.Err() != nil {
				h.writeClose(s, websocket.CloseNormalClosure, "")
				return
			}
			// [TERMINATION_SENTINEL] The hub closed the session (shutdown or eviction).
			_ = h.write(s, event.NewSystemEvent(event.Disconnected, event.PriorityHigh, &model.DisconnectedPayload{
				Reason: "session_closed_by_server",
				Code:   "SHUTDOWN",
			}))
			h.writeClose(s, websocket.CloseGoingAway, "server shutdown")
			return

		case ev := <-s.replies:
			if err := h.write(s, ev); err != nil {
				return
			}

		case ev := <-s.conn.Recv():
			if err := h.write(s, ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = s.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := s.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Debug("[WS] ping failed", "err", err)
				return
			}
		}
	}
}

func (h *WSHandler) write(s *session, ev event.Eventer) error {
	data, err := wsmarshaller.MarshallDeliveryEvent(ev)
	if err != nil {
		s.logger.Error("[WS] marshal failed", "err", err, "event_id", ev.GetID())
		return nil
	}

	_ = s.ws.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
	if err := s.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("[WS] send failed", "err", err, "event_id", ev.GetID())
		return err
	}
	return nil
}

func (h *WSHandler) writeClose(s *session, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.cfg.WriteTimeout))
}

func (h *WSHandler) handleFrame(ctx context.Context, s *session, data []byte) {
	frame, err := wsmarshaller.ParseClientFrame(data)
	if err != nil {
		s.rejectFrame(err)
		return
	}
	if err := frame.Validate(); err != nil {
		// [FIRE_AND_FORGET] Live frames never get an error reply.
		if frame.IsLive() {
			s.logger.Warn("[WS] live frame dropped", "type", frame.Type, "group_id", frame.GroupID, "err", err)
			return
		}
		s.rejectFrame(err)
		return
	}

	switch frame.Type {
	case wsmarshaller.FrameSubscribe:
		if err := h.deliverer.SubscribeGroup(ctx, s.conn, frame.GroupID); err != nil {
			s.logger.Info("[WS] subscribe rejected", "group_id", frame.GroupID, "err", err)
			s.rejectFrame(err)
			return
		}
		s.reply(event.NewSystemEvent(event.Subscribed, event.PriorityNormal, &model.SubscriptionPayload{
			Channel: registry.GroupChannel(frame.GroupID).String(),
			Active:  true,
		}))

	case wsmarshaller.FrameUnsubscribe:
		h.deliverer.UnsubscribeGroup(s.conn, frame.GroupID)
		s.reply(event.NewSystemEvent(event.Unsubscribed, event.PriorityNormal, &model.SubscriptionPayload{
			Channel: registry.GroupChannel(frame.GroupID).String(),
		}))

	case wsmarshaller.FramePublish:
		p, err := frame.ChatPayload(s.conn.GetUserID())
		if err != nil {
			s.logger.Warn("[WS] live frame dropped", "type", frame.Type, "group_id", frame.GroupID, "err", err)
			return
		}
		// [FIRE_AND_FORGET] Publish failures are logged by the gateway and never reported.
		h.ingester.PublishLiveEvent(ctx, p)

	case wsmarshaller.FrameJoin:
		h.ingester.Join(ctx, frame.GroupID, frame.Username)

	case wsmarshaller.FrameLeave:
		h.ingester.Leave(ctx, frame.GroupID, frame.Username)

	case wsmarshaller.FrameNotify:
		h.ingester.PublishNotification(ctx, frame.NotificationPayload())
	}
}

// reply queues a connection-local frame; it is dropped if the client is not reading.
func (s *session) reply(ev event.Eventer) {
	select {
	case s.replies <- ev:
	default:
		s.logger.Warn("[WS] reply dropped", "event", ev.GetKind().String())
	}
}

func (s *session) rejectFrame(err error) {
	code := model.ErrorKind(err)
	if errors.Is(err, model.ErrInvalidArgument) {
		code = "InvalidFrame"
	}
	s.reply(event.NewSystemEvent(event.Rejected, event.PriorityNormal, &model.ErrorPayload{
		Code:    code,
		Message: err.Error(),
	}))
}
