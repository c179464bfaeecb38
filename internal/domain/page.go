package domain

import (
	"fmt"
	"strings"
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection accepts "asc" or "desc" in any case.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	}
	return "", fmt.Errorf("%w: invalid sort direction %q (expected asc or desc)", ErrInvalidInput, s)
}

// Sortable user properties. Repositories map these to columns.
const (
	SortByID        = "id"
	SortByEmail     = "email"
	SortByFirstName = "firstName"
	SortByLastName  = "lastName"
	SortByIsActive  = "isActive"
	SortByCreatedAt = "createdAt"
	SortByUpdatedAt = "updatedAt"
)

var userSortFields = map[string]string{
	"id":         SortByID,
	"email":      SortByEmail,
	"firstname":  SortByFirstName,
	"first_name": SortByFirstName,
	"lastname":   SortByLastName,
	"last_name":  SortByLastName,
	"isactive":   SortByIsActive,
	"is_active":  SortByIsActive,
	"createdat":  SortByCreatedAt,
	"created_at": SortByCreatedAt,
	"updatedat":  SortByUpdatedAt,
	"updated_at": SortByUpdatedAt,
}

// Sort orders a listing by a single user property.
type Sort struct {
	Field     string
	Direction Direction
}

// NewSort validates field and direction. Unknown values are rejected
// instead of falling back to a default.
func NewSort(field, direction string) (Sort, error) {
	f, ok := userSortFields[strings.ToLower(strings.TrimSpace(field))]
	if !ok {
		return Sort{}, fmt.Errorf("%w: cannot sort users by %q", ErrInvalidInput, field)
	}
	d, err := ParseDirection(direction)
	if err != nil {
		return Sort{}, err
	}
	return Sort{Field: f, Direction: d}, nil
}

// PageRequest selects a zero-based page of a listing.
type PageRequest struct {
	Page int
	Size int
	Sort Sort
}

func NewPageRequest(page, size int, sort Sort) (PageRequest, error) {
	if page < 0 {
		return PageRequest{}, fmt.Errorf("%w: page index must not be negative", ErrInvalidInput)
	}
	if size < 1 {
		return PageRequest{}, fmt.Errorf("%w: page size must be at least 1", ErrInvalidInput)
	}
	if sort.Field == "" {
		sort = Sort{Field: SortByID, Direction: Asc}
	}
	return PageRequest{Page: page, Size: size, Sort: sort}, nil
}

// Offset is the number of rows skipped before this page.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one slice of a larger result set.
type Page[T any] struct {
	Content       []T
	Number        int
	Size          int
	TotalElements int64
}

func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	return Page[T]{Content: content, Number: req.Page, Size: req.Size, TotalElements: total}
}

func (p Page[T]) TotalPages() int {
	if p.Size <= 0 {
		return 0
	}
	return int((p.TotalElements + int64(p.Size) - 1) / int64(p.Size))
}

func (p Page[T]) HasNext() bool {
	return p.Number+1 < p.TotalPages()
}

// MapPage converts the content of a page, keeping its metadata.
func MapPage[T, R any](p Page[T], fn func(T) R) Page[R] {
	out := make([]R, len(p.Content))
	for i, v := range p.Content {
		out[i] = fn(v)
	}
	return Page[R]{Content: out, Number: p.Number, Size: p.Size, TotalElements: p.TotalElements}
}
