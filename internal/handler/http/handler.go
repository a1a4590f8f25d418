package httphandler

import (
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	httpsrv "github.com/gulon/chat-delivery-service/infra/server/http"
	"github.com/gulon/chat-delivery-service/internal/domain/model"
	"github.com/gulon/chat-delivery-service/internal/service"
)

const QueryRequester = "requestUserPublicId"

// Handler serves the request/response surface of the message store and gateway.
type Handler struct {
	messages service.MessageStore
	ingester service.Ingester
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(messages service.MessageStore, ingester service.Ingester, logger *slog.Logger) *Handler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Handler{
		messages: messages,
		ingester: ingester,
		validate: v,
		logger:   logger.With("component", "rest"),
	}
}

// requester prefers the explicit query parameter over the transport identity.
func requester(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get(QueryRequester)); id != "" {
		return id
	}
	id, _ := httpsrv.UserIDFromContext(r.Context())
	return id
}

func messageID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// Malformed identifiers cannot name an existing message.
		return uuid.Nil, model.ErrMessageNotFound
	}
	return id, nil
}

func intQuery(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", model.ErrInvalidArgument, name)
	}
	return n, nil
}

func pageQuery(r *http.Request) (model.PageRequest, error) {
	page, err := intQuery(r, "page", 0)
	if err != nil {
		return model.PageRequest{}, err
	}
	size, err := intQuery(r, "size", model.DefaultPageSize)
	if err != nil {
		return model.PageRequest{}, err
	}
	return model.PageRequest{Page: page, Size: size}.Normalize(), nil
}

func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	kind, err := model.ParseMessageKind(req.Type)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	m, err := h.ingester.SendMessage(r.Context(), service.CreateMessage{
		GroupID:  req.GroupID,
		SenderID: req.SenderID,
		Content:  req.Content,
		Kind:     kind,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageResponse(m, req.SenderID))
}

func (h *Handler) GetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	who := requester(r)

	m, err := h.messages.Get(r.Context(), id, who)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponse(m, who))
}

func (h *Handler) EditMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req EditMessageRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	who := requester(r)

	m, err := h.messages.Edit(r.Context(), id, req.Content, who)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponse(m, who))
}

func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := messageID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.messages.Delete(r.Context(), id, requester(r)); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MessageExists(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]bool{"exists": false})
		return
	}
	ok, err := h.messages.Exists(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": ok})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	page, err := pageQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	who := requester(r)

	hist, err := h.messages.History(r.Context(), chi.URLParam(r, "groupId"), page, who)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		PageResponse:    toPageResponse(hist.Page, who),
		LastMessageID:   hist.LastMessageID,
		LastMessageTime: hist.LastMessageTime,
	})
}

func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, err := intQuery(r, "limit", model.DefaultRecentLimit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	who := requester(r)

	items, err := h.messages.Recent(r.Context(), chi.URLParam(r, "groupId"), limit, who)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toMessageResponses(items, who))
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	who := requester(r)

	st, err := h.messages.Status(r.Context(), chi.URLParam(r, "groupId"), who)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponse(st, who))
}

func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	st, err := h.messages.Statistics(r.Context(), chi.URLParam(r, "groupId"), requester(r))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatisticsResponse(st))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	page, err := pageQuery(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req SearchRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	filter, err := req.toFilter()
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	res, err := h.messages.Search(r.Context(), filter, page)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		PageResponse:  toPageResponse(res, requester(r)),
		SearchKeyword: filter.Keyword,
	})
}

// PublishNotification accepts the notification for live delivery. Delivery failures are not
// reported; 202 means only that the request was well formed.
func (h *Handler) PublishNotification(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if err := h.decodeBody(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.ingester.PublishNotification(r.Context(), model.NotificationPayload{
		UserID:  req.UserID,
		Title:   req.Title,
		Content: req.Content,
		Kind:    req.NotificationType,
	})
	w.WriteHeader(http.StatusAccepted)
}
