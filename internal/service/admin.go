package service

import (
	"fixora/internal/domain"
)

// AdminBookings is the read-only list over all bookings.
type AdminBookings struct {
	*BookingList
}

func NewAdminBookings(source domain.AdminBookingsAPI, opts ListOptions) *AdminBookings {
	if opts.Surface == "" {
		opts.Surface = "admin"
	}
	return &AdminBookings{
		BookingList: newBookingList(serverPage(source.ListAdminBookings, opts.clock()), opts),
	}
}
