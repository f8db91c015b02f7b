package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/passvault/internal/server/ratelimit"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Limits holds the limiters for the general API and the stricter auth routes.
type Limits struct {
	API  ratelimit.Limiter
	Auth ratelimit.Limiter
}

// NewRouter builds the HTTP route tree.
func NewRouter(h *Handler, limits Limits, timeout time.Duration) chi.Router {
	if limits.API == nil {
		limits.API = ratelimit.Noop{}
	}
	if limits.Auth == nil {
		limits.Auth = ratelimit.Noop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.rateLimit(limits.API))

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(h.rateLimit(limits.Auth))
				r.Post("/signup", h.Signup)
				r.Post("/verify-email", h.VerifyEmail)
				r.Post("/login", h.Login)
				r.Post("/forgot-password", h.ForgotPassword)
				r.Post("/reset-password/{token}", h.ResetPassword)
			})
			r.Post("/logout", h.Logout)
			r.With(h.requireAuth).Get("/check-auth", h.CheckAuth)
		})

		r.Route("/passwords", func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/", h.CreatePassword)
			r.Get("/", h.ListPasswords)
			r.Post("/export", h.ExportPasswords)
			r.Get("/exports", h.ListExports)
			r.Get("/{id}", h.GetPassword)
			r.Put("/{id}", h.UpdatePassword)
			r.Delete("/{id}", h.DeletePassword)
		})
	})

	return r
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
