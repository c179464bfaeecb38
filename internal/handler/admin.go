package handler

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/service"
	"github.com/msomdec/portfolio-users/internal/view"
)

const adminPageSize = 50

// AdminHandler serves the HTML user admin page.
type AdminHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(users *service.UserService, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{users: users, logger: logger}
}

// adminSignals are the Datastar signals bound on the admin page.
type adminSignals struct {
	Search string `json:"search"`
}

// HandlePage renders the newest users along with summary counts.
func (h *AdminHandler) HandlePage(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.FindAllUsers(r.Context(), 0, adminPageSize, domain.SortByCreatedAt, string(domain.Desc))
	if err != nil {
		h.logger.Error("list users for admin page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	active, err := h.users.GetActiveUserCount(r.Context())
	if err != nil {
		h.logger.Error("count active users for admin page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := view.UsersPage(page.Content, page.TotalElements, active).Render(r.Context(), w); err != nil {
		h.logger.Error("render admin page", "error", err)
	}
}

// HandleSearch replaces the table rows with users matching the search signal via SSE.
func (h *AdminHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	var signals adminSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	users, err := h.users.SearchUsersByName(r.Context(), signals.Search)
	if err != nil {
		h.logger.Error("search users for admin page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	sse := datastar.NewSSE(w, r)
	if err := sse.PatchElementTempl(
		view.UserRows(users),
		datastar.WithSelectorID("user-rows"),
		datastar.WithModeInner(),
	); err != nil {
		h.logger.Error("patch admin rows", "error", err)
	}
}
