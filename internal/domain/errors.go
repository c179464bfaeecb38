package domain

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserHasPortfolios = errors.New("user still owns portfolios")
	ErrStorage           = errors.New("storage failure")
)

// DuplicateUserError reports an attempt to create a user whose email is taken.
type DuplicateUserError struct {
	Email string
}

func (e *DuplicateUserError) Error() string {
	return fmt.Sprintf("user with email %s already exists", e.Email)
}

func (e *DuplicateUserError) Is(target error) bool {
	return target == ErrDuplicateEmail
}

// UserNotFoundError reports that an operation required an existing user.
type UserNotFoundError struct {
	Field string
	Value string
}

// NewUserNotFoundError builds a UserNotFoundError keyed by id.
func NewUserNotFoundError(id int64) *UserNotFoundError {
	return &UserNotFoundError{Field: "id", Value: strconv.FormatInt(id, 10)}
}

func (e *UserNotFoundError) Error() string {
	return fmt.Sprintf("user not found with %s: %s", e.Field, e.Value)
}

func (e *UserNotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StorageError wraps a driver failure that has no domain meaning.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
