package models

import "time"

// Role is the viewer perspective that selects endpoints and actions.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

const (
	// DefaultPageSize matches the customer bookings grid.
	DefaultPageSize = 9

	// MaxPageSize caps page size requests.
	MaxPageSize = 100

	// DefaultSearchDebounce is the quiescence window before a search fetch.
	DefaultSearchDebounce = 400 * time.Millisecond

	// MinDurationHours and MaxDurationHours bound a booking length.
	MinDurationHours = 1
	MaxDurationHours = 4

	// FallbackHourlyRate is only used to display an estimate for unpriced bookings.
	FallbackHourlyRate = 500

	// DefaultEarningsMonths is the provider earnings window.
	DefaultEarningsMonths = 6
)
