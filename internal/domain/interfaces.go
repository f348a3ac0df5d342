package domain

import (
	"context"

	"fixora/internal/events"
	"fixora/internal/models"
)

// StatusUpdater issues a status transition for one booking and returns the
// server's authoritative record.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, update models.StatusUpdate) (*models.Booking, error)
}

type CustomerBookingsAPI interface {
	StatusUpdater
	ListMyBookings(ctx context.Context, req models.ListRequest) (*models.ListResponse, error)
	RemoveFromMyList(ctx context.Context, id string) error
}

type ProviderBookingsAPI interface {
	StatusUpdater
	ListProviderBookings(ctx context.Context) ([]*models.Booking, error)
}

type AdminBookingsAPI interface {
	ListAdminBookings(ctx context.Context, req models.ListRequest) (*models.ListResponse, error)
}

// ProviderCache stores provider profiles. Get returns nil, nil on a miss.
type ProviderCache interface {
	GetProvider(ctx context.Context, id string) (*models.Provider, error)
	SetProvider(ctx context.Context, provider *models.Provider) error
	InvalidateProvider(ctx context.Context, id string) error
}

// EventSource is a session-wide realtime channel. Acquire and Release are
// reference counted; the connection lives while at least one holder exists.
type EventSource interface {
	Acquire(ctx context.Context) error
	Release()
	Subscribe(eventType string, handler events.EventHandler) (unsubscribe func())
}
