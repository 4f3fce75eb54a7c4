package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"assistgen-backend/internal/handlers"
	"assistgen-backend/internal/middleware"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	chatHandler *handlers.ChatHandler,
	documentHandler *handlers.DocumentHandler,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Group(func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/token", authHandler.Token)
			r.Post("/refresh", authHandler.Refresh)
		})

		// ──── Authenticated Routes ────
		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Post("/logout", authHandler.Logout)
			r.Get("/validate-token", authHandler.ValidateToken)
			r.Get("/users/me", authHandler.Me)

			// Streaming model endpoints
			r.Post("/chat", chatHandler.Chat)
			r.Post("/reason", chatHandler.Reason)
			r.Post("/search", chatHandler.Search)

			// Documents
			r.Post("/upload", documentHandler.Upload)
			r.Get("/documents", documentHandler.List)
		})
	})

	return r
}
