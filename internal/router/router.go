package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"owl-widget/internal/handlers"
	"owl-widget/internal/middleware"
	"owl-widget/internal/websocket"
)

func New(
	widgetAuth *middleware.WidgetAuth,
	widgetHandler *handlers.WidgetHandler,
	mountLimiter *middleware.RateLimiter,
	wsHub *websocket.Hub,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/widget.js", handlers.LoaderScript)

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Widget Routes ────
		r.Route("/widgets", func(r chi.Router) {
			r.With(mountLimiter.Middleware).Post("/", widgetHandler.Mount)

			r.Group(func(r chi.Router) {
				r.Use(widgetAuth.Middleware)
				r.Get("/{id}", widgetHandler.Get)
				r.Put("/{id}/input", widgetHandler.SetInput)
				r.Post("/{id}/send", widgetHandler.Send)
				r.Delete("/{id}", widgetHandler.Unmount)
			})
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
