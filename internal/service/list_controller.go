package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"fixora/internal/api"
	"fixora/internal/logging"
	"fixora/internal/metrics"
	"fixora/internal/models"

	"github.com/rs/zerolog"
)

var (
	// ErrSuperseded is returned by a fetch whose result was dropped because
	// a newer request was issued while it was in flight.
	ErrSuperseded = errors.New("fetch superseded by a newer request")

	ErrClosed = errors.New("list controller closed")
)

const loadFailedMessage = "Could not load bookings"

// Item is a record the controller can address by id and copy.
type Item[T any] interface {
	models.Record
	Clone() T
}

// Query is the set of parameters a page is fetched with.
type Query struct {
	Filter   models.Filter
	Search   string
	Page     int
	PageSize int
}

// Page is what a fetch function returns for one Query.
type Page[T any] struct {
	Items     []T
	Total     int
	PageCount int
	Counts    models.Counts
}

// FetchFunc loads one page for a viewer scope.
type FetchFunc[T any] func(ctx context.Context, q Query) (*Page[T], error)

// UpsertResult says what Upsert did with an item.
type UpsertResult string

const (
	UpsertInserted UpsertResult = "inserted"
	UpsertReplaced UpsertResult = "replaced"
	// UpsertSkipped means the item was not held and does not belong to the
	// current filter or search.
	UpsertSkipped UpsertResult = "skipped"
)

// View is the held projection of one collection.
type View[T any] struct {
	Items     []T
	Page      int
	PageSize  int
	Total     int
	PageCount int
	Counts    models.Counts
	Filter    models.Filter
	Search    string
}

type ListOptions struct {
	// Surface names the view in logs and metrics ("customer", "provider", "admin").
	Surface  string
	PageSize int
	Debounce time.Duration
	Notifier Notifier
	Logger   *zerolog.Logger
	// Now is the clock the Upcoming rule is evaluated against.
	Now func() time.Time
}

func (o ListOptions) clock() func() time.Time {
	if o.Now == nil {
		return time.Now
	}
	return o.Now
}

// ListController fetches, paginates and filters one collection for one
// mounted view. Only the most recently issued fetch may change the held
// view; every parameter change bumps a generation counter and cancels the
// request in flight.
type ListController[T Item[T]] struct {
	surface  string
	fetch    FetchFunc[T]
	notifier Notifier
	logger   *zerolog.Logger
	debounce time.Duration
	// match decides whether an unseen item belongs to the held view. Nil
	// accepts everything.
	match func(item T, q Query) bool

	lifetime context.Context
	stop     context.CancelFunc

	mu      sync.Mutex
	query   Query
	view    View[T]
	loaded  bool
	loading bool
	gen     uint64
	cancel  context.CancelFunc
	timer   *time.Timer
	closed  bool
}

func NewListController[T Item[T]](fetch FetchFunc[T], opts ListOptions) *ListController[T] {
	if opts.PageSize <= 0 {
		opts.PageSize = models.DefaultPageSize
	}
	if opts.Debounce <= 0 {
		opts.Debounce = models.DefaultSearchDebounce
	}
	lifetime, stop := context.WithCancel(context.Background())
	q := Query{Filter: models.FilterAll, Page: 1, PageSize: opts.PageSize}

	return &ListController[T]{
		surface:  opts.Surface,
		fetch:    fetch,
		notifier: notifierOrNop(opts.Notifier),
		logger:   logging.Component(opts.Logger, "list_"+opts.Surface),
		debounce: opts.Debounce,
		lifetime: lifetime,
		stop:     stop,
		query:    q,
		view:     View[T]{Items: []T{}, Page: 1, PageSize: q.PageSize, PageCount: 1, Filter: q.Filter},
	}
}

// Load fetches the current parameters. It is the mount-time fetch.
func (c *ListController[T]) Load(ctx context.Context) error {
	return c.load(ctx)
}

// Refresh re-fetches the current page with unchanged parameters.
func (c *ListController[T]) Refresh(ctx context.Context) error {
	return c.load(ctx)
}

// SetFilter switches the status tab, resets to page 1 and fetches.
func (c *ListController[T]) SetFilter(ctx context.Context, f models.Filter) error {
	if f == "" {
		f = models.FilterAll
	}
	c.mu.Lock()
	if c.loaded && c.query.Filter == f {
		c.mu.Unlock()
		return nil
	}
	c.query.Filter = f
	c.query.Page = 1
	c.mu.Unlock()
	return c.load(ctx)
}

// SetPageSize changes the page size, resets to page 1 and fetches.
func (c *ListController[T]) SetPageSize(ctx context.Context, size int) error {
	if size < 1 || size > models.MaxPageSize {
		return &api.ValidationError{Field: "pageSize", Message: fmt.Sprintf("page size must be between 1 and %d", models.MaxPageSize)}
	}
	c.mu.Lock()
	if c.loaded && c.query.PageSize == size {
		c.mu.Unlock()
		return nil
	}
	c.query.PageSize = size
	c.query.Page = 1
	c.mu.Unlock()
	return c.load(ctx)
}

// SetQuery applies every parameter at once and fetches a single time.
// Empty fields fall back to the defaults: all bookings, page 1 and the
// current page size.
func (c *ListController[T]) SetQuery(ctx context.Context, q Query) error {
	if q.PageSize != 0 && (q.PageSize < 1 || q.PageSize > models.MaxPageSize) {
		return &api.ValidationError{Field: "pageSize", Message: fmt.Sprintf("page size must be between 1 and %d", models.MaxPageSize)}
	}
	if q.Filter == "" {
		q.Filter = models.FilterAll
	}
	if q.Page < 1 {
		q.Page = 1
	}
	c.mu.Lock()
	if q.PageSize == 0 {
		q.PageSize = c.query.PageSize
	}
	c.query = q
	c.mu.Unlock()
	return c.load(ctx)
}

// SetPage moves to page p, keeping filter, search and page size.
func (c *ListController[T]) SetPage(ctx context.Context, p int) error {
	if p < 1 {
		p = 1
	}
	c.mu.Lock()
	c.query.Page = p
	c.mu.Unlock()
	return c.load(ctx)
}

// SetSearch records a new free-text query, resets to page 1 and schedules
// a fetch once input has been quiet for the debounce window. Any request in
// flight is invalidated immediately.
func (c *ListController[T]) SetSearch(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || (c.query.Search == search && (c.loaded || c.timer != nil)) {
		return
	}
	c.query.Search = search
	c.query.Page = 1
	c.invalidateLocked()
	c.loading = true

	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		_ = c.load(c.lifetime)
	})
}

// SearchNow applies a search without debouncing.
func (c *ListController[T]) SearchNow(ctx context.Context, search string) error {
	c.mu.Lock()
	c.query.Search = search
	c.query.Page = 1
	c.mu.Unlock()
	return c.load(ctx)
}

// Snapshot returns a copy of the held view that shares nothing with it.
func (c *ListController[T]) Snapshot() View[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := c.view
	v.Items = make([]T, len(c.view.Items))
	for i, item := range c.view.Items {
		v.Items[i] = item.Clone()
	}
	if c.view.Counts != nil {
		v.Counts = make(models.Counts, len(c.view.Counts))
		for k, n := range c.view.Counts {
			v.Counts[k] = n
		}
	}
	return v
}

func (c *ListController[T]) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *ListController[T]) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Find returns a copy of the held item with the given id.
func (c *ListController[T]) Find(id string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(id); i >= 0 {
		return c.view.Items[i].Clone(), true
	}
	var zero T
	return zero, false
}

// Replace swaps the held item with the same id for item, in place. It
// reports false when no such item is held. Pagination metadata is not
// touched.
func (c *ListController[T]) Replace(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(item.RecordID())
	if i < 0 {
		return false
	}
	c.view.Items[i] = item.Clone()
	return true
}

// Upsert replaces the held item with the same id in place, or prepends
// item when it is not held and matches the current filter and search.
// Totals are left alone; only a fetch sets them.
func (c *ListController[T]) Upsert(item T) UpsertResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexLocked(item.RecordID()); i >= 0 {
		c.view.Items[i] = item.Clone()
		return UpsertReplaced
	}
	if c.match != nil && !c.match(item, c.query) {
		return UpsertSkipped
	}

	items := make([]T, 0, len(c.view.Items)+1)
	items = append(items, item.Clone())
	items = append(items, c.view.Items...)
	if size := c.view.PageSize; size > 0 && len(items) > size {
		items = items[:size]
	}
	c.view.Items = items
	return UpsertInserted
}

// Close stops any pending debounced fetch and cancels the request in
// flight. The controller rejects further fetches.
func (c *ListController[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.invalidateLocked()
	c.loading = false
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.stop()
}

func (c *ListController[T]) indexLocked(id string) int {
	for i, item := range c.view.Items {
		if item.RecordID() == id {
			return i
		}
	}
	return -1
}

// invalidateLocked makes every outstanding fetch stale.
func (c *ListController[T]) invalidateLocked() {
	c.gen++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *ListController[T]) load(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.invalidateLocked()
	gen := c.gen
	q := c.query
	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.loading = true
	c.mu.Unlock()
	defer cancel()

	start := time.Now()
	page, err := c.fetch(fetchCtx, q)

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		metrics.IncStaleResponse(c.surface)
		c.logger.Debug().Uint64("generation", gen).Msg("dropping superseded fetch result")
		return ErrSuperseded
	}
	c.loading = false
	c.cancel = nil

	if err == nil && page == nil {
		err = &api.TransportError{Op: "fetch_" + c.surface, Message: "empty page"}
	}
	if err != nil {
		c.mu.Unlock()
		if fetchCtx.Err() != nil {
			metrics.IncListFetch(c.surface, "canceled")
			return err
		}
		metrics.IncListFetch(c.surface, "error")
		c.logger.Warn().Err(err).
			Str("filter", string(q.Filter)).
			Int("page", q.Page).
			Msg("fetch failed, keeping previous view")
		c.notifier.Notify(errorNotice(api.UserMessage(err, loadFailedMessage)))
		return err
	}

	c.view = newView(q, page)
	c.loaded = true
	c.mu.Unlock()

	metrics.IncListFetch(c.surface, "ok")
	c.logger.Debug().
		Str("filter", string(q.Filter)).
		Str("search", q.Search).
		Int("page", q.Page).
		Int("items", len(page.Items)).
		Dur("duration", time.Since(start)).
		Msg("view replaced")
	return nil
}

func newView[T Item[T]](q Query, page *Page[T]) View[T] {
	items := page.Items
	if len(items) > q.PageSize {
		items = items[:q.PageSize]
	}
	held := make([]T, len(items))
	for i, item := range items {
		held[i] = item.Clone()
	}

	pages := page.PageCount
	if pages < 1 {
		pages = 1
	}
	return View[T]{
		Items:     held,
		Page:      q.Page,
		PageSize:  q.PageSize,
		Total:     page.Total,
		PageCount: pages,
		Counts:    page.Counts,
		Filter:    q.Filter,
		Search:    q.Search,
	}
}
