package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/msomdec/portfolio-users/internal/domain"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank validation: %v", err))
	}
	// Report JSON field names instead of Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// CreateUserRequest carries the fields needed to register a user.
type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email,max=100"`
	FirstName string `json:"first_name" validate:"required,notblank,min=1,max=50"`
	LastName  string `json:"last_name" validate:"required,notblank,min=1,max=50"`
}

// HasValidNames reports whether both names are non-blank after trimming.
func (r CreateUserRequest) HasValidNames() bool {
	return strings.TrimSpace(r.FirstName) != "" && strings.TrimSpace(r.LastName) != ""
}

// Validate checks the request against its field constraints.
func (r CreateUserRequest) Validate() error {
	return validateStruct(r)
}

// UpdateUserRequest is a partial update. A nil field leaves the stored value
// untouched. Email cannot be changed.
type UpdateUserRequest struct {
	FirstName *string `json:"first_name,omitempty" validate:"omitnil,notblank,min=1,max=50"`
	LastName  *string `json:"last_name,omitempty" validate:"omitnil,notblank,min=1,max=50"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// HasUpdates reports whether any field is set.
func (r UpdateUserRequest) HasUpdates() bool {
	return r.FirstName != nil || r.LastName != nil || r.IsActive != nil
}

func (r UpdateUserRequest) Validate() error {
	return validateStruct(r)
}

// UserResponse is the read view of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	FullName  string    `json:"full_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewUserResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func newUserResponses(users []domain.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i, u := range users {
		out[i] = NewUserResponse(u)
	}
	return out
}

// FieldViolation describes one failed field constraint.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Tag     string `json:"tag"`
}

// ValidationError lists every field that failed validation.
// It matches domain.ErrInvalidInput.
type ValidationError struct {
	Violations []FieldViolation
	cause      validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return fmt.Sprintf("%s: %s", domain.ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == domain.ErrInvalidInput
}

func (e *ValidationError) Unwrap() error {
	if e.cause == nil {
		return nil
	}
	return e.cause
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	ve := &ValidationError{Violations: make([]FieldViolation, 0, len(fieldErrs)), cause: fieldErrs}
	for _, fe := range fieldErrs {
		ve.Violations = append(ve.Violations, FieldViolation{
			Field:   fe.Field(),
			Message: violationMessage(fe),
			Tag:     fe.Tag(),
		})
	}
	return ve
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "notblank":
		return "must not be blank"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	default:
		return "is invalid"
	}
}
