package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/msomdec/portfolio-users/internal/domain"
)

// UserService holds the business rules for managing users. Writes run inside
// a single store transaction; reads go to the store directly.
type UserService struct {
	store  domain.UserStore
	logger *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store domain.UserStore, logger *slog.Logger) *UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserService{store: store, logger: logger}
}

// FindByID returns the user with the given id, or nil if there is none.
func (s *UserService) FindByID(ctx context.Context, id int64) (*UserResponse, error) {
	s.logger.Debug("finding user by id", "user_id", id)

	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user %d: %w", id, err)
	}
	resp := NewUserResponse(*user)
	return &resp, nil
}

// FindByEmail returns the user with the given email, or nil if there is none.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*UserResponse, error) {
	s.logger.Debug("finding user by email", "email", email)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	resp := NewUserResponse(*user)
	return &resp, nil
}

// FindAllUsers lists users one page at a time. An unknown sort field or
// direction is rejected with domain.ErrInvalidInput.
func (s *UserService) FindAllUsers(ctx context.Context, page, size int, sortBy, direction string) (domain.Page[UserResponse], error) {
	s.logger.Debug("finding all users", "page", page, "size", size, "sort", sortBy, "direction", direction)

	sort, err := domain.NewSort(sortBy, direction)
	if err != nil {
		return domain.Page[UserResponse]{}, err
	}
	req, err := domain.NewPageRequest(page, size, sort)
	if err != nil {
		return domain.Page[UserResponse]{}, err
	}

	users, err := s.store.FindAll(ctx, req)
	if err != nil {
		return domain.Page[UserResponse]{}, fmt.Errorf("list users: %w", err)
	}
	return domain.MapPage(users, NewUserResponse), nil
}

// FindActiveUsers lists active users, newest first.
func (s *UserService) FindActiveUsers(ctx context.Context, page, size int) (domain.Page[UserResponse], error) {
	s.logger.Debug("finding active users", "page", page, "size", size)

	req, err := domain.NewPageRequest(page, size, domain.Sort{Field: domain.SortByCreatedAt, Direction: domain.Desc})
	if err != nil {
		return domain.Page[UserResponse]{}, err
	}

	users, err := s.store.FindActive(ctx, req)
	if err != nil {
		return domain.Page[UserResponse]{}, fmt.Errorf("list active users: %w", err)
	}
	return domain.MapPage(users, NewUserResponse), nil
}

// SearchUsersByName matches fragment case-insensitively against full names.
// An empty fragment returns every user.
func (s *UserService) SearchUsersByName(ctx context.Context, fragment string) ([]UserResponse, error) {
	s.logger.Debug("searching users by name", "fragment", fragment)

	users, err := s.store.SearchByFullName(ctx, fragment)
	if err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return newUserResponses(users), nil
}

// FindUsersCreatedBetween returns users created within [start, end].
// A range whose end precedes its start matches nobody.
func (s *UserService) FindUsersCreatedBetween(ctx context.Context, start, end time.Time) ([]UserResponse, error) {
	s.logger.Debug("finding users created between", "start", start, "end", end)

	users, err := s.store.FindCreatedBetween(ctx, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("list users created between: %w", err)
	}
	return newUserResponses(users), nil
}

// FindUsersWithPortfolios returns users that own at least one portfolio.
func (s *UserService) FindUsersWithPortfolios(ctx context.Context) ([]UserResponse, error) {
	s.logger.Debug("finding users with portfolios")

	users, err := s.store.FindWithPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users with portfolios: %w", err)
	}
	return newUserResponses(users), nil
}

// CreateUser registers a new active user. A taken email fails with
// *domain.DuplicateUserError, whether it is caught by the pre-check or by
// the store's unique constraint.
func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	s.logger.Info("creating user", "email", req.Email)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	user := domain.NewUser(req.Email, req.FirstName, req.LastName)
	if err := user.Validate(); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(users domain.UserRepository) error {
		taken, err := users.ExistsByEmail(ctx, req.Email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return &domain.DuplicateUserError{Email: req.Email}
		}

		if err := users.Save(ctx, user); err != nil {
			if errors.Is(err, domain.ErrDuplicateEmail) {
				return &domain.DuplicateUserError{Email: req.Email}
			}
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("created user", "user_id", user.ID)
	resp := NewUserResponse(*user)
	return &resp, nil
}

// UpdateUser applies the fields present in req and returns the updated user,
// or nil if no user has the given id. The user is saved even when req
// carries no fields, so UpdatedAt always advances.
func (s *UserService) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*UserResponse, error) {
	s.logger.Info("updating user", "user_id", id)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *domain.User
	err := s.store.WithinTx(ctx, func(users domain.UserRepository) error {
		user, err := users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("find user: %w", err)
		}

		if req.FirstName != nil {
			user.FirstName = *req.FirstName
		}
		if req.LastName != nil {
			user.LastName = *req.LastName
		}
		if req.IsActive != nil {
			user.IsActive = *req.IsActive
		}
		if err := user.Validate(); err != nil {
			return err
		}

		if err := users.Save(ctx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated == nil {
		s.logger.Debug("user to update not found", "user_id", id)
		return nil, nil
	}

	resp := NewUserResponse(*updated)
	return &resp, nil
}

// DeactivateUser soft-deletes a user. Deactivating an inactive user is a no-op
// that still succeeds.
func (s *UserService) DeactivateUser(ctx context.Context, id int64) error {
	s.logger.Info("deactivating user", "user_id", id)
	return s.setActive(ctx, id, false)
}

// ActivateUser reverses DeactivateUser.
func (s *UserService) ActivateUser(ctx context.Context, id int64) error {
	s.logger.Info("activating user", "user_id", id)
	return s.setActive(ctx, id, true)
}

func (s *UserService) setActive(ctx context.Context, id int64, active bool) error {
	return s.store.WithinTx(ctx, func(users domain.UserRepository) error {
		user, err := users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewUserNotFoundError(id)
			}
			return fmt.Errorf("find user: %w", err)
		}

		if active {
			user.Activate()
		} else {
			user.Deactivate()
		}

		if err := users.Save(ctx, user); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
}

// DeleteUser permanently removes a user. A user that still owns portfolios
// is kept and domain.ErrUserHasPortfolios is returned.
func (s *UserService) DeleteUser(ctx context.Context, id int64) error {
	s.logger.Warn("hard deleting user", "user_id", id)

	return s.store.WithinTx(ctx, func(users domain.UserRepository) error {
		exists, err := users.ExistsByID(ctx, id)
		if err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return domain.NewUserNotFoundError(id)
		}

		if err := users.DeleteByID(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.NewUserNotFoundError(id)
			}
			return fmt.Errorf("delete user %d: %w", id, err)
		}
		return nil
	})
}

// GetActiveUserCount returns the number of active users.
func (s *UserService) GetActiveUserCount(ctx context.Context) (int64, error) {
	count, err := s.store.CountActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("count active users: %w", err)
	}
	return count, nil
}

func (s *UserService) ExistsByID(ctx context.Context, id int64) (bool, error) {
	exists, err := s.store.ExistsByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("check user: %w", err)
	}
	return exists, nil
}

// IsEmailAvailable reports whether no user has registered email yet.
func (s *UserService) IsEmailAvailable(ctx context.Context, email string) (bool, error) {
	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return !exists, nil
}
