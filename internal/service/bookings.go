package service

import (
	"context"
	"sync"
	"time"

	"fixora/internal/domain"
	"fixora/internal/models"
)

// BookingList is the controller instantiation every surface uses.
type BookingList = ListController[*models.Booking]

// newBookingList builds a controller whose pushed inserts are held to the
// active filter and search.
func newBookingList(fetch FetchFunc[*models.Booking], opts ListOptions) *BookingList {
	list := NewListController(fetch, opts)
	now := opts.clock()
	list.match = func(b *models.Booking, q Query) bool {
		return q.Filter.Matches(b, now()) && models.MatchesSearch(b, q.Search)
	}
	return list
}

type listFunc func(ctx context.Context, req models.ListRequest) (*models.ListResponse, error)

// serverPage adapts a paginated endpoint. Tab counts come from the server
// when it sends them and are derived from the page otherwise.
func serverPage(list listFunc, now func() time.Time) FetchFunc[*models.Booking] {
	return func(ctx context.Context, q Query) (*Page[*models.Booking], error) {
		resp, err := list(ctx, models.ListRequest{
			Page:     q.Page,
			PageSize: q.PageSize,
			Status:   q.Filter,
			Query:    q.Search,
		})
		if err != nil {
			return nil, err
		}

		t := now()
		items := resp.Items
		// Upcoming depends on the clock; hold the page to the same rule the
		// counts use.
		if q.Filter == models.FilterUpcoming {
			items = models.FilterBookings(items, models.FilterUpcoming, t)
		}
		counts := resp.Counts
		if counts == nil {
			counts = models.DeriveCounts(resp.Items, t)
		}
		return &Page[*models.Booking]{
			Items:     items,
			Total:     resp.Total,
			PageCount: resp.PageCount,
			Counts:    counts,
		}, nil
	}
}

// providerStore holds the provider's whole assignment list as last fetched,
// with pushed and transitioned records merged in. Only the newest fetch to
// start may overwrite it.
type providerStore struct {
	mu      sync.Mutex
	all     []*models.Booking
	started uint64
	applied uint64
}

func (s *providerStore) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
	return s.started
}

func (s *providerStore) set(seq uint64, all []*models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if seq < s.applied {
		return
	}
	s.applied = seq
	s.all = make([]*models.Booking, len(all))
	for i, b := range all {
		s.all[i] = b.Clone()
	}
}

// put replaces the record with b's id, or prepends b.
func (s *providerStore) put(b *models.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, held := range s.all {
		if held.ID == b.ID {
			s.all[i] = b.Clone()
			return
		}
	}
	s.all = append([]*models.Booking{b.Clone()}, s.all...)
}

func (s *providerStore) find(id string) (*models.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.all {
		if b.ID == id {
			return b.Clone(), true
		}
	}
	return nil, false
}

// items returns copies of every held record.
func (s *providerStore) items() []*models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Booking, len(s.all))
	for i, b := range s.all {
		out[i] = b.Clone()
	}
	return out
}

// providerPage filters, searches and paginates the provider's full
// assignment list locally; that endpoint takes no parameters. The full
// list is kept in store.
func providerPage(source domain.ProviderBookingsAPI, store *providerStore, now func() time.Time) FetchFunc[*models.Booking] {
	return func(ctx context.Context, q Query) (*Page[*models.Booking], error) {
		seq := store.begin()
		all, err := source.ListProviderBookings(ctx)
		if err != nil {
			return nil, err
		}
		if ctx.Err() == nil {
			store.set(seq, all)
		}

		t := now()
		matched := models.FilterBookings(all, q.Filter, t)
		if q.Search != "" {
			searched := matched[:0:0]
			for _, b := range matched {
				if models.MatchesSearch(b, q.Search) {
					searched = append(searched, b)
				}
			}
			matched = searched
		}

		total := len(matched)
		size := q.PageSize
		pages := (total + size - 1) / size
		if pages < 1 {
			pages = 1
		}
		start := (q.Page - 1) * size
		if start > total {
			start = total
		}
		end := min(start+size, total)

		return &Page[*models.Booking]{
			Items:     matched[start:end],
			Total:     total,
			PageCount: pages,
			Counts:    models.DeriveCounts(all, t),
		}, nil
	}
}
