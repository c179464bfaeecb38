package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxEmailLength = 100
	MaxNameLength  = 50
)

// User is a person registered in the portfolio manager.
// Email is the business key: two users are the same user iff their emails match.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewUser builds an active, not yet persisted user. ID and timestamps are
// assigned by the store on the first Save.
func NewUser(email, firstName, lastName string) *User {
	return &User{
		Email:     email,
		FirstName: firstName,
		LastName:  lastName,
		IsActive:  true,
	}
}

// FullName returns "FirstName LastName".
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) Activate() {
	u.IsActive = true
}

func (u *User) Deactivate() {
	u.IsActive = false
}

// Equal compares users by email only.
func (u *User) Equal(other *User) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.Email == other.Email
}

// Validate checks the invariants a user must hold before it is written.
// Email syntax is checked at the request boundary, not here.
func (u *User) Validate() error {
	if strings.TrimSpace(u.Email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(u.Email) > MaxEmailLength {
		return fmt.Errorf("%w: email must be %d characters or fewer", ErrInvalidInput, MaxEmailLength)
	}
	if err := validateName("first name", u.FirstName); err != nil {
		return err
	}
	return validateName("last name", u.LastName)
}

func validateName(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(value) > MaxNameLength {
		return fmt.Errorf("%w: %s must be between 1 and %d characters", ErrInvalidInput, field, MaxNameLength)
	}
	return nil
}

func (u *User) String() string {
	return fmt.Sprintf("User{id=%d, email=%q, firstName=%q, lastName=%q, isActive=%t, createdAt=%s}",
		u.ID, u.Email, u.FirstName, u.LastName, u.IsActive, u.CreatedAt.Format(time.RFC3339))
}

// UserRepository defines persistence operations for users.
// Lookups that match nothing return ErrNotFound.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindAll(ctx context.Context, req PageRequest) (Page[User], error)
	FindActive(ctx context.Context, req PageRequest) (Page[User], error)
	// SearchByFullName matches fragment case-insensitively against
	// "FirstName LastName". An empty fragment matches every user.
	SearchByFullName(ctx context.Context, fragment string) ([]User, error)
	CountActive(ctx context.Context) (int64, error)
	// FindCreatedBetween returns users whose CreatedAt lies in [start, end].
	FindCreatedBetween(ctx context.Context, start, end time.Time) ([]User, error)
	// FindWithPortfolios returns users that own at least one portfolio.
	FindWithPortfolios(ctx context.Context) ([]User, error)
	// Save inserts the user when ID is zero and updates it otherwise.
	// ID, CreatedAt and UpdatedAt are filled in on the passed user.
	Save(ctx context.Context, user *User) error
	DeleteByID(ctx context.Context, id int64) error
}

// Transactor runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(users UserRepository) error) error
}

// UserStore is a UserRepository that can also open transactions.
type UserStore interface {
	UserRepository
	Transactor
}
