package api

import (
	"strings"
	"time"

	"fixora/internal/models"
)

type myBookingsEnvelope struct {
	Data []*models.Booking `json:"data"`
	Meta struct {
		Total      int           `json:"total"`
		TotalPages int           `json:"totalPages"`
		Counts     models.Counts `json:"counts"`
	} `json:"meta"`
}

type adminBookingsEnvelope struct {
	Data       []*models.Booking `json:"data"`
	Pagination struct {
		Page  int `json:"page"`
		Pages int `json:"pages"`
		Total int `json:"total"`
	} `json:"pagination"`
}

type bookingEnvelope struct {
	Data *models.Booking `json:"data"`
}

type bookingsEnvelope struct {
	Data []*models.Booking `json:"data"`
}

type providerEnvelope struct {
	Data *models.Provider `json:"data"`
}

type sessionEnvelope struct {
	User *models.Session `json:"user"`
}

// CreateBookingRequest is the body of POST /bookings.
type CreateBookingRequest struct {
	ProviderID    string    `json:"providerId"`
	ServiceTitle  string    `json:"serviceTitle"`
	ScheduledAt   time.Time `json:"scheduledAt"`
	DurationHours int       `json:"durationHours"`
	Address       string    `json:"address"`
	Notes         string    `json:"notes,omitempty"`
}

// Validate checks the request before it is sent.
func (r *CreateBookingRequest) Validate(now time.Time) error {
	switch {
	case strings.TrimSpace(r.ProviderID) == "":
		return &ValidationError{Field: "providerId", Message: "provider is required"}
	case strings.TrimSpace(r.ServiceTitle) == "":
		return &ValidationError{Field: "serviceTitle", Message: "service title is required"}
	case r.ScheduledAt.IsZero():
		return &ValidationError{Field: "scheduledAt", Message: "pick a date and time"}
	case !r.ScheduledAt.After(now):
		return &ValidationError{Field: "scheduledAt", Message: "scheduled time must be in the future"}
	case r.DurationHours < models.MinDurationHours || r.DurationHours > models.MaxDurationHours:
		return &ValidationError{Field: "durationHours", Message: "duration must be between 1 and 4 hours"}
	case strings.TrimSpace(r.Address) == "":
		return &ValidationError{Field: "address", Message: "address is required"}
	}
	return nil
}

// ServiceTitleFor builds the booking title from the provider's first
// category.
func ServiceTitleFor(p *models.Provider) string {
	if p != nil && len(p.Categories) > 0 && p.Categories[0] != "" {
		return p.Categories[0] + " service"
	}
	return "Service"
}

// Credentials for POST /auth/login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
