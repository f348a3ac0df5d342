package service

import (
	"context"
	"sync"
	"time"

	"fixora/internal/api"
	"fixora/internal/events"
	"fixora/internal/models"
)

var testNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func booking(id string, status models.Status, at time.Time) *models.Booking {
	return &models.Booking{
		ID:            id,
		ServiceTitle:  "Cleaning service",
		Status:        status,
		ScheduledAt:   at,
		DurationHours: 2,
		Address:       "12 MG Road",
	}
}

func price(v float64) *float64 { return &v }

type statusCall struct {
	ID     string
	Update models.StatusUpdate
}

// fakeAPI is an in-memory booking backend. Plain status filters are applied
// server side; the upcoming filter only narrows by status, the date part is
// left to the client.
type fakeAPI struct {
	mu       sync.Mutex
	bookings []*models.Booking
	lists    int
	listErr  error
	updates  []statusCall
	updateFn func(id string, u models.StatusUpdate) (*models.Booking, error)
	removed  []string
	removeFn func(id string) error
}

func newFakeAPI(items ...*models.Booking) *fakeAPI {
	return &fakeAPI{bookings: items}
}

func (f *fakeAPI) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func (f *fakeAPI) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeAPI) find(id string) *models.Booking {
	for _, b := range f.bookings {
		if b.ID == id {
			return b
		}
	}
	return nil
}

func (f *fakeAPI) ListMyBookings(_ context.Context, req models.ListRequest) (*models.ListResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}

	var matched []*models.Booking
	for _, b := range f.bookings {
		switch req.Status {
		case models.FilterAll, "":
		case models.FilterUpcoming:
			if !b.Status.IsActive() || b.Status == models.StatusInProgress {
				continue
			}
		default:
			if b.Status != models.Status(req.Status) {
				continue
			}
		}
		if !models.MatchesSearch(b, req.Query) {
			continue
		}
		matched = append(matched, b.Clone())
	}

	total := len(matched)
	start := min((req.Page-1)*req.PageSize, total)
	end := min(start+req.PageSize, total)
	return &models.ListResponse{
		Items:     matched[start:end],
		Total:     total,
		PageCount: max((total+req.PageSize-1)/req.PageSize, 1),
	}, nil
}

func (f *fakeAPI) ListAdminBookings(ctx context.Context, req models.ListRequest) (*models.ListResponse, error) {
	return f.ListMyBookings(ctx, req)
}

func (f *fakeAPI) ListProviderBookings(context.Context) ([]*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]*models.Booking, len(f.bookings))
	for i, b := range f.bookings {
		out[i] = b.Clone()
	}
	return out, nil
}

func (f *fakeAPI) UpdateStatus(_ context.Context, id string, u models.StatusUpdate) (*models.Booking, error) {
	f.mu.Lock()
	f.updates = append(f.updates, statusCall{ID: id, Update: u})
	fn := f.updateFn
	f.mu.Unlock()
	if fn != nil {
		return fn(id, u)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.find(id)
	if b == nil {
		return nil, api.ErrNotFound
	}
	b.Status = u.Status
	if u.Price != nil {
		b.Price = price(*u.Price)
	}
	return b.Clone(), nil
}

func (f *fakeAPI) RemoveFromMyList(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removeFn != nil {
		if err := f.removeFn(id); err != nil {
			return err
		}
	}
	f.removed = append(f.removed, id)
	kept := f.bookings[:0:0]
	for _, b := range f.bookings {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	f.bookings = kept
	return nil
}

// noticeRecorder collects notices.
type noticeRecorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *noticeRecorder) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *noticeRecorder) all() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

func (r *noticeRecorder) last() Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}
	}
	return r.notices[len(r.notices)-1]
}

// fakeSource is an EventSource backed by an in-process bus.
type fakeSource struct {
	*events.EventBus

	mu         sync.Mutex
	acquired   int
	released   int
	acquireErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{EventBus: events.NewEventBus()}
}

func (s *fakeSource) Acquire(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.acquireErr != nil {
		return s.acquireErr
	}
	s.acquired++
	return nil
}

func (s *fakeSource) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
}

func (s *fakeSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released
}
