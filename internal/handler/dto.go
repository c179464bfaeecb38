package handler

import (
	"github.com/msomdec/portfolio-users/internal/domain"
	"github.com/msomdec/portfolio-users/internal/service"
)

// PageDTO is the JSON representation of a page of users.
type PageDTO struct {
	Content       []service.UserResponse `json:"content"`
	Page          int                    `json:"page"`
	Size          int                    `json:"size"`
	TotalElements int64                  `json:"total_elements"`
	TotalPages    int                    `json:"total_pages"`
	HasNext       bool                   `json:"has_next"`
}

func toPageDTO(p domain.Page[service.UserResponse]) PageDTO {
	return PageDTO{
		Content:       p.Content,
		Page:          p.Number,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages(),
		HasNext:       p.HasNext(),
	}
}

// CountDTO wraps a bare count.
type CountDTO struct {
	Count int64 `json:"count"`
}

// AvailabilityDTO reports whether an email can still be registered.
type AvailabilityDTO struct {
	Email     string `json:"email"`
	Available bool   `json:"available"`
}

// ErrorDTO is the body of every error response.
type ErrorDTO struct {
	Error   string                   `json:"error"`
	Details []service.FieldViolation `json:"details,omitempty"`
}
