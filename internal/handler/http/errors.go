package httphandler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
)

var statusByKind = map[string]int{
	"NotFound":        http.StatusNotFound,
	"Forbidden":       http.StatusForbidden,
	"InvalidArgument": http.StatusBadRequest,
	"Conflict":        http.StatusConflict,
	"Unavailable":     http.StatusServiceUnavailable,
}

// writeError maps the error taxonomy onto HTTP statuses. Internal failures are logged and
// reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	kind := model.ErrorKind(err)
	status, ok := statusByKind[kind]
	msg := err.Error()
	if !ok {
		status = http.StatusInternalServerError
		msg = "internal error"
		logger.Error("[HTTP] request failed", "err", err, "method", r.Method, "path", r.URL.Path)
	}
	writeJSON(w, status, ErrorResponse{Error: kind, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeBody decodes and validates a JSON request body.
func (h *Handler) decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed body: %v", model.ErrInvalidArgument, err)
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: field %s failed %q", model.ErrInvalidArgument, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", model.ErrInvalidArgument, err)
	}
	return nil
}
