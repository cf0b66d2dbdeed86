package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"owl-widget/internal/middleware"
	"owl-widget/internal/models"
	"owl-widget/internal/widget"
)

type widgetRegistry interface {
	Mount(cfg widget.Config) *widget.Widget
	Get(id uuid.UUID) (*widget.Widget, bool)
	Unmount(id uuid.UUID) bool
}

type tokenIssuer interface {
	GenerateToken(widgetID uuid.UUID, tenantID string) (string, error)
}

// WidgetDefaults fill in whatever a mount request leaves out.
type WidgetDefaults struct {
	BaseURL  string
	TenantID string
	Title    string
}

type WidgetHandler struct {
	registry        widgetRegistry
	tokens          tokenIssuer
	defaults        WidgetDefaults
	allowedBaseURLs map[string]bool
	logger          *zap.Logger
}

func NewWidgetHandler(registry widgetRegistry, tokens tokenIssuer, defaults WidgetDefaults, allowedBaseURLs []string, logger *zap.Logger) *WidgetHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]bool, len(allowedBaseURLs)+1)
	for _, u := range allowedBaseURLs {
		if u = normalizeBaseURL(u); u != "" {
			allowed[u] = true
		}
	}
	if d := normalizeBaseURL(defaults.BaseURL); d != "" {
		allowed[d] = true
	}
	return &WidgetHandler{
		registry:        registry,
		tokens:          tokens,
		defaults:        defaults,
		allowedBaseURLs: allowed,
		logger:          logger,
	}
}

func normalizeBaseURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// decodeOptional decodes a JSON body, treating an empty body as zero value.
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// resolveBaseURL picks the chat API origin for a mount. An empty baseUrl
// falls back to the configured default, then to the host page's Origin
// (same-origin). Anything supplied by the browser must be allowlisted.
func (h *WidgetHandler) resolveBaseURL(requested string, r *http.Request) (string, string) {
	if u := normalizeBaseURL(requested); u != "" {
		if !h.allowedBaseURLs[u] {
			return "", "Base URL is not allowed"
		}
		return u, ""
	}
	if d := normalizeBaseURL(h.defaults.BaseURL); d != "" {
		return d, ""
	}

	origin := normalizeBaseURL(r.Header.Get("Origin"))
	if origin == "" || origin == "null" {
		return "", "Base URL is required"
	}
	if !h.allowedBaseURLs[origin] {
		return "", "Host page origin is not allowed"
	}
	return origin, ""
}

func (h *WidgetHandler) Mount(w http.ResponseWriter, r *http.Request) {
	var req models.MountRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	baseURL, msg := h.resolveBaseURL(req.BaseURL, r)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"baseUrl": msg}, r))
		return
	}

	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		tenantID = h.defaults.TenantID
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = h.defaults.Title
	}

	wd := h.registry.Mount(widget.Config{
		BaseURL:  baseURL,
		TenantID: tenantID,
		Title:    title,
	})

	token, err := h.tokens.GenerateToken(wd.ID(), wd.Config().TenantID)
	if err != nil {
		h.registry.Unmount(wd.ID())
		h.logger.Error("failed to issue widget token", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to mount widget", r))
		return
	}

	writeJSON(w, http.StatusCreated, models.MountResponse{
		ID:    wd.ID().String(),
		Token: token,
		HTML:  wd.Snapshot().HTML(),
	})
}

// widgetFromRequest resolves {id} and checks it against the token.
func (h *WidgetHandler) widgetFromRequest(w http.ResponseWriter, r *http.Request) (*widget.Widget, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid widget ID", r))
		return nil, false
	}

	if middleware.GetWidgetID(r.Context()) != id {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}

	wd, ok := h.registry.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Widget not found", r))
		return nil, false
	}

	if middleware.GetTenantID(r.Context()) != wd.Config().TenantID {
		writeJSON(w, http.StatusForbidden, errorResp("FORBIDDEN", "Access denied", r))
		return nil, false
	}
	return wd, true
}

func (h *WidgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.widgetFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, wd.Snapshot().Model())
}

func (h *WidgetHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.widgetFromRequest(w, r)
	if !ok {
		return
	}

	var req models.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	wd.SetInput(req.Text)
	writeJSON(w, http.StatusOK, wd.Snapshot().Model())
}

// Send is the click. An empty input is not an error: nothing happens and
// sent is false.
func (h *WidgetHandler) Send(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.widgetFromRequest(w, r)
	if !ok {
		return
	}

	var req models.SendRequest
	if err := decodeOptional(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}
	if req.Text != nil {
		wd.SetInput(*req.Text)
	}

	if !wd.Send() {
		writeJSON(w, http.StatusOK, models.SendResponse{Sent: false})
		return
	}
	writeJSON(w, http.StatusAccepted, models.SendResponse{Sent: true})
}

func (h *WidgetHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	wd, ok := h.widgetFromRequest(w, r)
	if !ok {
		return
	}
	h.registry.Unmount(wd.ID())
	w.WriteHeader(http.StatusNoContent)
}
