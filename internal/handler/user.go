package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/service"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserHandler serves the JSON user API.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{users: users, logger: logger}
}

// HandleCreate registers a new user from a JSON body.
func (h *UserHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.users.CreateUser(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, "create user", err)
		return
	}

	w.Header().Set("Location", "/api/users/"+strconv.FormatInt(resp.ID, 10))
	writeJSON(w, http.StatusCreated, resp)
}

// HandleList returns a page of users sorted by the requested property.
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	sortBy := valueOrDefault(q.Get("sort"), domain.SortByID)
	direction := valueOrDefault(q.Get("direction"), string(domain.Asc))

	users, err := h.users.FindAllUsers(r.Context(), page, size, sortBy, direction)
	if err != nil {
		h.writeServiceError(w, r, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(users))
}

// HandleListActive returns a page of active users, newest first.
func (h *UserHandler) HandleListActive(w http.ResponseWriter, r *http.Request) {
	page, size, err := pageParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	users, err := h.users.FindActiveUsers(r.Context(), page, size)
	if err != nil {
		h.writeServiceError(w, r, "list active users", err)
		return
	}
	writeJSON(w, http.StatusOK, toPageDTO(users))
}

// HandleSearch matches the name query parameter against full names.
func (h *UserHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.SearchUsersByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		h.writeServiceError(w, r, "search users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCreatedBetween lists users created within the RFC 3339 range [from, to].
func (h *UserHandler) HandleCreatedBetween(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err := time.Parse(time.RFC3339, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "from must be an RFC 3339 timestamp")
		return
	}
	to, err := time.Parse(time.RFC3339, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "to must be an RFC 3339 timestamp")
		return
	}

	users, err := h.users.FindUsersCreatedBetween(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, r, "list users created between", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleWithPortfolios lists users that own at least one portfolio.
func (h *UserHandler) HandleWithPortfolios(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.FindUsersWithPortfolios(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "list users with portfolios", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCountActive returns the number of active users.
func (h *UserHandler) HandleCountActive(w http.ResponseWriter, r *http.Request) {
	count, err := h.users.GetActiveUserCount(r.Context())
	if err != nil {
		h.writeServiceError(w, r, "count active users", err)
		return
	}
	writeJSON(w, http.StatusOK, CountDTO{Count: count})
}

// HandleEmailAvailable reports whether the email query parameter is unused.
func (h *UserHandler) HandleEmailAvailable(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	available, err := h.users.IsEmailAvailable(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, "check email availability", err)
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityDTO{Email: email, Available: available})
}

// HandleGetByEmail looks a user up by the email query parameter.
func (h *UserHandler) HandleGetByEmail(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if strings.TrimSpace(email) == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	resp, err := h.users.FindByEmail(r.Context(), email)
	if err != nil {
		h.writeServiceError(w, r, "find user by email", err)
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, "user not found with email: "+email)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleGet returns a single user by id.
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	resp, err := h.users.FindByID(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, "find user", err)
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, domain.NewUserNotFoundError(id).Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleUpdate applies a partial update from a JSON body.
func (h *UserHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req service.UpdateUserRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.users.UpdateUser(r.Context(), id, req)
	if err != nil {
		h.writeServiceError(w, r, "update user", err)
		return
	}
	if resp == nil {
		writeError(w, http.StatusNotFound, domain.NewUserNotFoundError(id).Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleDeactivate soft-deletes a user.
func (h *UserHandler) HandleDeactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.users.DeactivateUser(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "deactivate user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleActivate reactivates a user.
func (h *UserHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.users.ActivateUser(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "activate user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete permanently removes a user.
func (h *UserHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.users.DeleteUser(r.Context(), id); err != nil {
		h.writeServiceError(w, r, "delete user", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// writeServiceError maps service errors to HTTP statuses. Unexpected errors
// are logged and reported as 500 without leaking details.
func (h *UserHandler) writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorDTO{Error: "validation failed", Details: ve.Violations})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUserHasPortfolios):
		writeError(w, http.StatusConflict, "user still owns portfolios and cannot be deleted")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(op, "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func pageParams(r *http.Request) (page, size int, err error) {
	q := r.URL.Query()
	page, err = intParam(q.Get("page"), 0)
	if err != nil {
		return 0, 0, errors.New("page must be an integer")
	}
	size, err = intParam(q.Get("size"), defaultPageSize)
	if err != nil {
		return 0, 0, errors.New("size must be an integer")
	}
	if size > maxPageSize {
		return 0, 0, errors.New("size must not exceed " + strconv.Itoa(maxPageSize))
	}
	return page, size, nil
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
