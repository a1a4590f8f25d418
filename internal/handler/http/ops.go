package httphandler

import (
	"net/http"

	"github.com/gulon/chat-delivery-service/internal/domain/registry"
)

// ReadinessProbe reports whether the instance consumes the event log.
type ReadinessProbe interface {
	Ready() bool
}

// OpsHandler serves liveness, readiness and hub diagnostics.
type OpsHandler struct {
	probe ReadinessProbe
	hub   registry.Hubber
}

func NewOpsHandler(probe ReadinessProbe, hub registry.Hubber) *OpsHandler {
	return &OpsHandler{probe: probe, hub: hub}
}

func (o *OpsHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz is 200 only while the consumer is running.
func (o *OpsHandler) Readyz(w http.ResponseWriter, _ *http.Request) {
	if !o.probe.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (o *OpsHandler) DebugHub(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, o.hub.Stats())
}
