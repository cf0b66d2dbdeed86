package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"owl-widget/internal/middleware"
	"owl-widget/internal/models"
	"owl-widget/internal/widget"
)

type stubTokens struct {
	err        error
	lastID     uuid.UUID
	lastTenant string
}

func (s *stubTokens) GenerateToken(widgetID uuid.UUID, tenantID string) (string, error) {
	s.lastID = widgetID
	s.lastTenant = tenantID
	return "tok-" + widgetID.String(), s.err
}

func newTestRegistry(t *testing.T, body string) (*widget.Registry, *[]widget.Config) {
	t.Helper()
	var seen []widget.Config
	r := widget.NewRegistry(func(cfg widget.Config) widget.Asker {
		seen = append(seen, cfg)
		return widget.AskerFunc(func(ctx context.Context, req models.ChatRequest) (models.ChatResponse, error) {
			return models.ParseChatResponse([]byte(body))
		})
	}, widget.Hooks{}, 0, nil)
	t.Cleanup(r.Close)
	return r, &seen
}

func widgetRequest(method, target string, body string, routeID string, tokenID uuid.UUID) *http.Request {
	return tenantRequest(method, target, body, routeID, tokenID, widget.DefaultTenantID)
}

func tenantRequest(method, target string, body string, routeID string, tokenID uuid.UUID, tenantID string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", routeID)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = req.WithContext(context.WithValue(req.Context(), middleware.WidgetIDKey, tokenID))
	req = req.WithContext(context.WithValue(req.Context(), middleware.TenantIDKey, tenantID))
	return req
}

func TestWidgetHandler_MountDefaults(t *testing.T) {
	registry, seen := newTestRegistry(t, `{}`)
	tokens := &stubTokens{}
	h := NewWidgetHandler(registry, tokens, WidgetDefaults{
		BaseURL:  "https://owl.example/",
		TenantID: "demo",
		Title:    "OWL Chat",
	}, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/widgets", nil)
	rr := httptest.NewRecorder()
	h.Mount(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp models.MountResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, tokens.lastID.String(), resp.ID)
	assert.Equal(t, "tok-"+resp.ID, resp.Token)
	assert.Contains(t, resp.HTML, `data-owl-widget="`+resp.ID+`"`)
	assert.Equal(t, "demo", tokens.lastTenant)

	require.Len(t, *seen, 1)
	assert.Equal(t, "https://owl.example", (*seen)[0].BaseURL)
}

func TestWidgetHandler_MountBaseURLAllowlist(t *testing.T) {
	registry, _ := newTestRegistry(t, `{}`)
	h := NewWidgetHandler(registry, &stubTokens{}, WidgetDefaults{TenantID: "demo"},
		[]string{"https://allowed.example"}, nil)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"allowed", `{"baseUrl":"https://allowed.example/","tenantId":"acme"}`, http.StatusCreated},
		{"not allowed", `{"baseUrl":"http://169.254.169.254"}`, http.StatusBadRequest},
		{"bad json", `{"baseUrl":`, http.StatusBadRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/widgets", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			h.Mount(rr, req)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
	assert.Equal(t, 1, registry.Len())
}

func TestWidgetHandler_MountSameOrigin(t *testing.T) {
	registry, seen := newTestRegistry(t, `{}`)
	h := NewWidgetHandler(registry, &stubTokens{}, WidgetDefaults{TenantID: "demo"},
		[]string{"https://shop.example"}, nil)

	tests := []struct {
		name    string
		origin  string
		status  int
		wantURL string
	}{
		{"allowed host page", "https://shop.example", http.StatusCreated, "https://shop.example"},
		{"unlisted host page", "https://evil.example", http.StatusBadRequest, ""},
		{"opaque origin", "null", http.StatusBadRequest, ""},
		{"no origin", "", http.StatusBadRequest, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			*seen = nil
			req := httptest.NewRequest(http.MethodPost, "/api/v1/widgets", strings.NewReader(`{"baseUrl":""}`))
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rr := httptest.NewRecorder()
			h.Mount(rr, req)

			assert.Equal(t, tc.status, rr.Code)
			if tc.wantURL == "" {
				assert.Empty(t, *seen)
				return
			}
			require.Len(t, *seen, 1)
			assert.Equal(t, tc.wantURL, (*seen)[0].BaseURL)
		})
	}
}

func TestWidgetHandler_MountTokenFailureUnmounts(t *testing.T) {
	registry, _ := newTestRegistry(t, `{}`)
	h := NewWidgetHandler(registry, &stubTokens{err: errors.New("no key")},
		WidgetDefaults{BaseURL: "https://owl.example"}, nil, nil)

	rr := httptest.NewRecorder()
	h.Mount(rr, httptest.NewRequest(http.MethodPost, "/api/v1/widgets", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, 0, registry.Len())
}

func TestWidgetHandler_SendFlow(t *testing.T) {
	registry, _ := newTestRegistry(t, `{"answer":"hi there"}`)
	h := NewWidgetHandler(registry, &stubTokens{}, WidgetDefaults{}, nil, nil)
	wd := registry.Mount(widget.Config{})
	id := wd.ID()

	// empty input: nothing happens
	rr := httptest.NewRecorder()
	h.Send(rr, widgetRequest(http.MethodPost, "/send", "", id.String(), id))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"sent":false}`, rr.Body.String())
	assert.Empty(t, wd.Snapshot().Messages)

	// type, then click
	rr = httptest.NewRecorder()
	h.SetInput(rr, widgetRequest(http.MethodPut, "/input", `{"text":"hello"}`, id.String(), id))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "hello", wd.Snapshot().Input)

	rr = httptest.NewRecorder()
	h.Send(rr, widgetRequest(http.MethodPost, "/send", "", id.String(), id))
	require.Equal(t, http.StatusAccepted, rr.Code)
	wd.Wait()

	rr = httptest.NewRecorder()
	h.Get(rr, widgetRequest(http.MethodGet, "/", "", id.String(), id))
	require.Equal(t, http.StatusOK, rr.Code)

	var snap models.WidgetSnapshot
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&snap))
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, "You", snap.Messages[0].Author)
	assert.Equal(t, "hello", snap.Messages[0].Text)
	assert.Equal(t, "Owl", snap.Messages[1].Author)
	assert.Equal(t, "hi there", snap.Messages[1].Text)
	assert.Empty(t, snap.Input)
	assert.Contains(t, snap.HTML, "<strong>Owl:</strong> hi there")
}

func TestWidgetHandler_SendWithText(t *testing.T) {
	registry, _ := newTestRegistry(t, `{"answer":"ok"}`)
	h := NewWidgetHandler(registry, &stubTokens{}, WidgetDefaults{}, nil, nil)
	wd := registry.Mount(widget.Config{})
	id := wd.ID()

	body, _ := json.Marshal(models.SendRequest{Text: ptr("<b>bold</b>")})
	rr := httptest.NewRecorder()
	h.Send(rr, widgetRequest(http.MethodPost, "/send", string(body), id.String(), id))
	require.Equal(t, http.StatusAccepted, rr.Code)
	wd.Wait()

	assert.Contains(t, wd.Snapshot().HTML(), "<strong>You:</strong> &lt;b&gt;bold&lt;/b&gt;")
}

func TestWidgetHandler_Authorization(t *testing.T) {
	registry, _ := newTestRegistry(t, `{}`)
	h := NewWidgetHandler(registry, &stubTokens{}, WidgetDefaults{}, nil, nil)
	wd := registry.Mount(widget.Config{})
	other := registry.Mount(widget.Config{})

	tests := []struct {
		name    string
		routeID string
		tokenID uuid.UUID
		status  int
	}{
		{"other widget's token", wd.ID().String(), other.ID(), http.StatusForbidden},
		{"bad id", "not-a-uuid", wd.ID(), http.StatusBadRequest},
		{"unknown widget", uuid.Nil.String(), uuid.Nil, http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Send(rr, widgetRequest(http.MethodPost, "/send", `{"text":"x"}`, tc.routeID, tc.tokenID))
			assert.Equal(t, tc.status, rr.Code)
		})
	}

	t.Run("token for another tenant", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Send(rr, tenantRequest(http.MethodPost, "/send", `{"text":"x"}`, wd.ID().String(), wd.ID(), "acme"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
	assert.Empty(t, wd.Snapshot().Messages)
}

func TestWidgetHandler_Unmount(t *testing.T) {
	registry, _ := newTestRegistry(t, `{}`)
	h := NewWidgetHandler(registry, &stubTokens{}, WidgetDefaults{}, nil, nil)
	wd := registry.Mount(widget.Config{})
	id := wd.ID()

	rr := httptest.NewRecorder()
	h.Unmount(rr, widgetRequest(http.MethodDelete, "/", "", id.String(), id))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = httptest.NewRecorder()
	h.Get(rr, widgetRequest(http.MethodGet, "/", "", id.String(), id))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestLoaderScript(t *testing.T) {
	rr := httptest.NewRecorder()
	LoaderScript(rr, httptest.NewRequest(http.MethodGet, "/widget.js", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "javascript")
	assert.True(t, bytes.Contains(rr.Body.Bytes(), []byte("window.OwlWidget = { mount: mount }")))
	assert.Contains(t, rr.Body.String(), "opts.tenantId || window.OWL_TENANT_ID")
}

func ptr(s string) *string { return &s }
