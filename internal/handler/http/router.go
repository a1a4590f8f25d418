package httphandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpsrv "github.com/gulon/chat-delivery-service/infra/server/http"
	"github.com/gulon/chat-delivery-service/internal/handler/lp"
	"github.com/gulon/chat-delivery-service/internal/handler/ws"
	"github.com/gulon/chat-delivery-service/internal/observability"
	"go.uber.org/fx"
)

// NewRouter mounts every HTTP surface: live transports, REST and operations.
func NewRouter(h *Handler, wsh *ws.WSHandler, lph *lp.LPHandler, ops *OpsHandler, metrics *observability.Metrics, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		requestLogger(logger.With("component", "http")),
		middleware.Recoverer,
		httpsrv.Identity,
	)

	r.Get("/healthz", ops.Healthz)
	r.Get("/readyz", ops.Readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Get("/debug/hub", ops.DebugHub)

	r.Group(func(r chi.Router) {
		r.Use(httpsrv.RequireIdentity)
		r.Method(http.MethodGet, "/ws", wsh)
		r.Get("/lp/poll", lph.Poll)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/notifications", h.PublishNotification)

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.SendMessage)
			r.Post("/search", h.Search)

			r.Route("/groups/{groupId}", func(r chi.Router) {
				r.Get("/history", h.History)
				r.Get("/recent", h.Recent)
				r.Get("/status", h.Status)
				r.Get("/statistics", h.Statistics)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetMessage)
				r.Put("/", h.EditMessage)
				r.Delete("/", h.DeleteMessage)
				r.Get("/exists", h.MessageExists)
			})
		})
	})

	return r
}

// requestLogger writes one structured line per request. Long-lived transports log their own lifecycle.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Debug("REQUEST_HANDLED",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

var Module = fx.Module("http-handler",
	fx.Provide(
		NewHandler,
		NewOpsHandler,
		ws.NewWSHandler,
		lp.NewLPHandler,
		NewRouter,
	),
)
