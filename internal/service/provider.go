package service

import (
	"context"
	"math"
	"sort"
	"time"

	"fixora/internal/domain"
	"fixora/internal/logging"
	"fixora/internal/models"

	"github.com/rs/zerolog"
)

// MonthEarnings is one bar of the earnings chart.
type MonthEarnings struct {
	Key    string // YYYY-MM
	Label  string
	Amount float64
}

type Earnings struct {
	Months    []MonthEarnings // oldest first, current month last
	ThisMonth float64
}

type Totals struct {
	Bookings  int
	Completed int
}

// ProviderDashboard is the provider's assignment list with status
// transitions and live updates. The embedded list is the filtered page;
// partitions, totals, earnings and lookups cover every assignment.
type ProviderDashboard struct {
	*BookingList

	Transitions *TransitionEngine
	reconciler  *Reconciler
	store       *providerStore
	logger      *zerolog.Logger
}

// providerView writes transitions and pushed records to both the full
// assignment list and the held page.
type providerView struct {
	list  *BookingList
	store *providerStore
}

func (v providerView) Replace(b *models.Booking) bool {
	v.store.put(b)
	return v.list.Replace(b)
}

func (v providerView) Upsert(b *models.Booking) UpsertResult {
	v.store.put(b)
	return v.list.Upsert(b)
}

func (v providerView) Refresh(ctx context.Context) error {
	return v.list.Refresh(ctx)
}

// NewProviderDashboard builds the dashboard. source may be nil, in which
// case the view is not kept live.
func NewProviderDashboard(bookings domain.ProviderBookingsAPI, source domain.EventSource, opts ListOptions) *ProviderDashboard {
	if opts.Surface == "" {
		opts.Surface = "provider"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = models.MaxPageSize
	}
	store := &providerStore{}
	list := newBookingList(providerPage(bookings, store, opts.clock()), opts)
	view := providerView{list: list, store: store}

	d := &ProviderDashboard{
		BookingList: list,
		Transitions: NewTransitionEngine(bookings, view, opts.Notifier, opts.Logger),
		store:       store,
		logger:      logging.Component(opts.Logger, "provider_dashboard"),
	}
	if source != nil {
		d.reconciler = NewReconciler(source, view, opts.Logger)
	}
	return d
}

// Mount loads the first page and subscribes to pushed events. A realtime
// failure leaves the dashboard usable without live updates.
func (d *ProviderDashboard) Mount(ctx context.Context) error {
	if err := d.Load(ctx); err != nil {
		return err
	}
	if d.reconciler == nil {
		return nil
	}
	if err := d.reconciler.Mount(ctx); err != nil {
		d.logger.Warn().Err(err).Msg("live updates unavailable")
		return err
	}
	return nil
}

// Unmount detaches from the realtime channel and cancels any fetch.
func (d *ProviderDashboard) Unmount() {
	if d.reconciler != nil {
		d.reconciler.Unmount()
	}
	d.Close()
}

func (d *ProviderDashboard) Reconciler() *Reconciler { return d.reconciler }

// All returns every assignment, not just the current page.
func (d *ProviderDashboard) All() []*models.Booking { return d.store.items() }

// Find returns a copy of the assignment with the given id, whether or not
// it is on the current page.
func (d *ProviderDashboard) Find(id string) (*models.Booking, bool) {
	return d.store.find(id)
}

// Active returns the open bookings, soonest first.
func (d *ProviderDashboard) Active() []*models.Booking {
	out := d.partition(func(s models.Status) bool { return s.IsActive() })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

// Archive returns the finished bookings, most recent first.
func (d *ProviderDashboard) Archive() []*models.Booking {
	out := d.partition(func(s models.Status) bool { return s.IsTerminal() })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out
}

func (d *ProviderDashboard) partition(keep func(models.Status) bool) []*models.Booking {
	all := d.store.items()
	out := make([]*models.Booking, 0, len(all))
	for _, b := range all {
		if keep(b.Status) {
			out = append(out, b)
		}
	}
	return out
}

// Earnings sums final prices per calendar month over the last months
// months, now's month included.
func (d *ProviderDashboard) Earnings(now time.Time, months int) Earnings {
	return EarningsFor(d.store.items(), now, months)
}

// EarningsFor buckets each priced booking by its scheduled month, falling
// back to its creation month.
func EarningsFor(items []*models.Booking, now time.Time, months int) Earnings {
	if months <= 0 {
		months = models.DefaultEarningsMonths
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	sums := make(map[string]float64, months)
	out := Earnings{Months: make([]MonthEarnings, 0, months)}
	for i := months - 1; i >= 0; i-- {
		m := first.AddDate(0, -i, 0)
		key := m.Format("2006-01")
		sums[key] = 0
		out.Months = append(out.Months, MonthEarnings{Key: key, Label: m.Format("Jan 2006")})
	}

	for _, b := range items {
		if b.Price == nil {
			continue
		}
		at := b.ScheduledAt
		if at.IsZero() {
			at = b.CreatedAt
		}
		if at.IsZero() {
			continue
		}
		key := at.In(now.Location()).Format("2006-01")
		if _, ok := sums[key]; ok {
			sums[key] += *b.Price
		}
	}

	for i := range out.Months {
		out.Months[i].Amount = math.Round(sums[out.Months[i].Key])
	}
	out.ThisMonth = out.Months[len(out.Months)-1].Amount
	return out
}

// Totals counts every assignment.
func (d *ProviderDashboard) Totals() Totals {
	all := d.store.items()
	t := Totals{Bookings: len(all)}
	for _, b := range all {
		if b.Status == models.StatusCompleted {
			t.Completed++
		}
	}
	return t
}
