package lp

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gulon/chat-delivery-service/config"
	httpsrv "github.com/gulon/chat-delivery-service/infra/server/http"
	"github.com/gulon/chat-delivery-service/internal/domain/event"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/domain/registry"
	lpmarshaller "github.com/gulon/chat-delivery-service/internal/handler/marshaller/lp"
	"github.com/gulon/chat-delivery-service/internal/service"
)

const maxBatch = 16

type LPHandler struct {
	deliverer service.Deliverer
	timeout   time.Duration
	logger    *slog.Logger
}

func NewLPHandler(deliverer service.Deliverer, cfg *config.Config, logger *slog.Logger) *LPHandler {
	return &LPHandler{
		deliverer: deliverer,
		timeout:   cfg.WS.PollTimeout,
		logger:    logger.With("component", "lp"),
	}
}

// Poll handles the long-polling request: GET /lp/poll?groups=g1,g2.
// It holds the connection until an event arrives or the poll timeout elapses.
func (h *LPHandler) Poll(w http.ResponseWriter, r *http.Request) {
	// 1. Extract Identity (set by the identity middleware).
	userID, ok := httpsrv.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "user identity required", http.StatusUnauthorized)
		return
	}

	// 2. Temporary Subscription.
	// The connector lives only for the duration of this HTTP request.
	conn, err := h.deliverer.Connect(r.Context(), userID, registry.ConnectMetadata{
		Transport: "lp",
		RemoteIP:  r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer h.deliverer.Disconnect(conn)

	for _, g := range strings.Split(r.URL.Query().Get("groups"), ",") {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		if err := h.deliverer.SubscribeGroup(r.Context(), conn, g); err != nil {
			h.logger.Info("[LP] subscribe rejected", "user_id", userID, "group_id", g, "err", err)
			status := http.StatusInternalServerError
			switch {
			case errors.Is(err, model.ErrForbidden):
				status = http.StatusForbidden
			case errors.Is(err, model.ErrNotFound):
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
	}

	var events []event.Eventer

	// 3. Wait for data or timeout.
	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case <-r.Context().Done():
		// Client disconnected.
		return

	case <-conn.Done():
		w.WriteHeader(http.StatusServiceUnavailable)
		return

	case <-timer.C:
		// Standard Long-Polling timeout to prevent hanging connections.
		w.WriteHeader(http.StatusNoContent)
		return

	case ev := <-conn.Recv():
		events = append(events, ev)

		// Drain what is already buffered to provide batching.
	drainLoop:
		for range maxBatch - 1 {
			select {
			case nextEv := <-conn.Recv():
				events = append(events, nextEv)
			default:
				break drainLoop
			}
		}
	}

	// 4. Final transmission.
	data, err := lpmarshaller.MarshallEvents(events)
	if err != nil {
		h.logger.Error("[LP] marshal failed", "err", err)
		http.Error(w, "marshal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
