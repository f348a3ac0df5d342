package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"fixora/internal/domain"
	"fixora/internal/events"
	"fixora/internal/logging"
	"fixora/internal/metrics"
	"fixora/internal/models"

	"github.com/rs/zerolog"
)

// ApplyResult says what a pushed event did to the held view.
type ApplyResult string

const (
	ApplyInserted  ApplyResult = "inserted"
	ApplyReplaced  ApplyResult = "replaced"
	ApplyRefetched ApplyResult = "refetched"
	// ApplySkipped means the pushed record is new but falls outside the
	// active filter or search, so the page is left alone.
	ApplySkipped ApplyResult = "skipped"
)

// Reconciler keeps a mounted view current with pushed booking events. A
// pushed snapshot is merged into the held page; an event without one
// triggers a re-fetch of the current parameters.
type Reconciler struct {
	source domain.EventSource
	list   bookingView
	logger *zerolog.Logger

	mu      sync.Mutex
	mounted bool
	offs    []func()
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewReconciler(source domain.EventSource, list bookingView, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		source: source,
		list:   list,
		logger: logging.Component(logger, "reconciler"),
	}
}

// Mount acquires the realtime connection and attaches the handlers.
// Mounting twice is a no-op.
func (r *Reconciler) Mount(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.mounted {
		return nil
	}
	if err := r.source.Acquire(ctx); err != nil {
		return err
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	handler := func(e *events.Event) error {
		_, err := r.Apply(r.ctx, e)
		return err
	}
	r.offs = []func(){
		r.source.Subscribe(events.EventBookingCreated, handler),
		r.source.Subscribe(events.EventNotification, handler),
	}
	r.mounted = true
	r.logger.Debug().Msg("mounted")
	return nil
}

// Unmount detaches both handlers and releases the connection.
func (r *Reconciler) Unmount() {
	r.mu.Lock()
	if !r.mounted {
		r.mu.Unlock()
		return
	}
	offs := r.offs
	r.offs = nil
	r.mounted = false
	r.cancel()
	r.mu.Unlock()

	for _, off := range offs {
		off()
	}
	r.source.Release()
	r.logger.Debug().Msg("unmounted")
}

func (r *Reconciler) Mounted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mounted
}

// Apply merges one event into the held view. Applying the same event twice
// leaves the view as applying it once does.
func (r *Reconciler) Apply(ctx context.Context, e *events.Event) (ApplyResult, error) {
	if b, ok := r.snapshot(e); ok {
		res := ApplyReplaced
		switch r.list.Upsert(b) {
		case UpsertInserted:
			res = ApplyInserted
			r.logger.Debug().Str("event", e.Type).Str("booking_id", b.ID).Msg("booking inserted")
		case UpsertSkipped:
			res = ApplySkipped
		}
		metrics.IncPushEvent(e.Type, string(res))
		return res, nil
	}

	metrics.IncPushEvent(e.Type, string(ApplyRefetched))
	err := r.list.Refresh(ctx)
	if errors.Is(err, ErrSuperseded) || errors.Is(err, ErrClosed) {
		err = nil
	}
	return ApplyRefetched, err
}

func (r *Reconciler) snapshot(e *events.Event) (*models.Booking, bool) {
	p, err := e.DecodeBookingPayload()
	if err != nil {
		r.logger.Debug().Err(err).Str("event", e.Type).Msg("undecodable event payload")
		return nil, false
	}
	if !p.HasBooking() {
		return nil, false
	}
	var b models.Booking
	if err := json.Unmarshal(p.Booking, &b); err != nil || b.ID == "" {
		r.logger.Debug().Str("event", e.Type).Msg("event carries unusable booking snapshot")
		return nil, false
	}
	return &b, true
}
