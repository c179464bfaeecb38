package handler

import (
	"log/slog"
	"net/http"

	"github.com/msomdec/portfolio-users/internal/service"
)

// RegisterRoutes sets up all HTTP routes on the given mux. Write endpoints
// share the limiter; reads are not limited.
func RegisterRoutes(mux *http.ServeMux, users *service.UserService, limiter *TokenBucket, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	uh := NewUserHandler(users, logger)
	ah := NewAdminHandler(users, logger)

	limited := func(h http.HandlerFunc) http.Handler {
		return RateLimit(limiter, logger, h)
	}

	mux.HandleFunc("GET /healthz", HandleHealthz)

	mux.Handle("POST /api/users", limited(uh.HandleCreate))
	mux.HandleFunc("GET /api/users", uh.HandleList)
	mux.HandleFunc("GET /api/users/active", uh.HandleListActive)
	mux.HandleFunc("GET /api/users/search", uh.HandleSearch)
	mux.HandleFunc("GET /api/users/created", uh.HandleCreatedBetween)
	mux.HandleFunc("GET /api/users/with-portfolios", uh.HandleWithPortfolios)
	mux.HandleFunc("GET /api/users/count/active", uh.HandleCountActive)
	mux.HandleFunc("GET /api/users/email-available", uh.HandleEmailAvailable)
	mux.HandleFunc("GET /api/users/by-email", uh.HandleGetByEmail)
	mux.HandleFunc("GET /api/users/{id}", uh.HandleGet)
	mux.Handle("PATCH /api/users/{id}", limited(uh.HandleUpdate))
	mux.Handle("POST /api/users/{id}/deactivate", limited(uh.HandleDeactivate))
	mux.Handle("POST /api/users/{id}/activate", limited(uh.HandleActivate))
	mux.Handle("DELETE /api/users/{id}", limited(uh.HandleDelete))

	mux.HandleFunc("GET /admin/users", ah.HandlePage)
	mux.HandleFunc("GET /admin/users/search", ah.HandleSearch)
}
