package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fixora/internal/api"
	"fixora/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCustomer(t *testing.T, fake *fakeAPI, pageSize int, notices Notifier) *CustomerBookings {
	t.Helper()
	c := NewCustomerBookings(fake, ListOptions{PageSize: pageSize, Notifier: notices, Now: fixedClock})
	require.NoError(t, c.Load(context.Background()))
	t.Cleanup(c.Close)
	return c
}

func TestCustomer_UpcomingExcludesPast(t *testing.T) {
	fake := newFakeAPI(
		booking("yesterday", models.StatusPending, testNow.Add(-24*time.Hour)),
		booking("tomorrow", models.StatusPending, testNow.Add(24*time.Hour)),
		booking("done", models.StatusCompleted, testNow.Add(-48*time.Hour)),
	)
	c := newTestCustomer(t, fake, 9, nil)

	view := c.Snapshot()
	assert.Equal(t, 1, view.Counts[models.FilterUpcoming])
	assert.Equal(t, 3, view.Counts[models.FilterAll])
	assert.Equal(t, 1, view.Counts[models.Filter(models.StatusCompleted)])

	require.NoError(t, c.SetFilter(context.Background(), models.FilterUpcoming))
	view = c.Snapshot()
	require.Len(t, view.Items, 1)
	assert.Equal(t, "tomorrow", view.Items[0].ID)
}

func TestCustomer_ServerCountsPreferred(t *testing.T) {
	counts := models.Counts{models.FilterAll: 42, models.FilterUpcoming: 7}
	list := func(context.Context, models.ListRequest) (*models.ListResponse, error) {
		return &models.ListResponse{
			Items:     []*models.Booking{booking("b1", models.StatusPending, testNow.Add(time.Hour))},
			Total:     42,
			PageCount: 5,
			Counts:    counts,
		}, nil
	}
	ctrl := NewListController(serverPage(list, fixedClock), ListOptions{Now: fixedClock})
	require.NoError(t, ctrl.Load(context.Background()))

	view := ctrl.Snapshot()
	assert.Equal(t, counts, view.Counts)
	assert.Equal(t, 42, view.Total)
	assert.Equal(t, 5, view.PageCount)
}

func TestCustomer_Cancel(t *testing.T) {
	fake := newFakeAPI(
		booking("b1", models.StatusPending, testNow.Add(time.Hour)),
		booking("b2", models.StatusCompleted, testNow.Add(-time.Hour)),
	)
	notices := &noticeRecorder{}
	c := newTestCustomer(t, fake, 9, notices)
	ctx := context.Background()

	b1, _ := c.Find("b1")
	assert.Equal(t, []string{"Cancel"}, labels(c.Actions(b1)))

	before := fake.listCount()
	require.NoError(t, c.Cancel(ctx, b1))
	require.Len(t, fake.updates, 1)
	assert.Equal(t, models.StatusUpdate{Status: models.StatusCancelled}, fake.updates[0].Update)
	assert.Equal(t, before+1, fake.listCount())
	assert.Equal(t, Notice{Kind: NoticeSuccess, Title: "Cancelled", Message: "Your booking has been cancelled"}, notices.last())

	b1, _ = c.Find("b1")
	assert.Equal(t, models.StatusCancelled, b1.Status)
	assert.Empty(t, c.Actions(b1))

	b2, _ := c.Find("b2")
	assert.ErrorIs(t, c.Cancel(ctx, b2), models.ErrInvalidTransition)
	assert.Equal(t, 1, fake.updateCount())
}

func TestCustomer_CancelInProgressRefused(t *testing.T) {
	fake := newFakeAPI(booking("b1", models.StatusInProgress, testNow))
	c := newTestCustomer(t, fake, 9, nil)
	b, _ := c.Find("b1")

	assert.ErrorIs(t, c.Cancel(context.Background(), b), models.ErrInvalidTransition)
	assert.Zero(t, fake.updateCount())
}

func TestCustomer_CancelFailure(t *testing.T) {
	fake := newFakeAPI(booking("b1", models.StatusAccepted, testNow.Add(time.Hour)))
	fake.updateFn = func(string, models.StatusUpdate) (*models.Booking, error) {
		return nil, &api.TransportError{Op: "update_status", Err: fmt.Errorf("timeout")}
	}
	notices := &noticeRecorder{}
	c := newTestCustomer(t, fake, 9, notices)
	b, _ := c.Find("b1")

	assert.Error(t, c.Cancel(context.Background(), b))
	assert.Equal(t, "Failed to cancel booking", notices.last().Message)
	assert.False(t, c.IsCancelling("b1"))
}

func TestCustomer_RemoveStepsBackFromEmptiedLastPage(t *testing.T) {
	fake := newFakeAPI(
		booking("b1", models.StatusCompleted, testNow),
		booking("b2", models.StatusCompleted, testNow),
		booking("b3", models.StatusCancelled, testNow),
	)
	notices := &noticeRecorder{}
	c := newTestCustomer(t, fake, 2, notices)
	ctx := context.Background()
	require.NoError(t, c.SetPage(ctx, 2))

	view := c.Snapshot()
	require.Len(t, view.Items, 1)
	last := view.Items[0]
	assert.True(t, c.CanRemove(last))

	require.NoError(t, c.Remove(ctx, last))
	assert.Equal(t, []string{"b3"}, fake.removed)

	view = c.Snapshot()
	assert.Equal(t, 1, view.Page)
	assert.Equal(t, 2, view.Total)
	assert.Len(t, view.Items, 2)
	assert.Equal(t, Notice{Kind: NoticeSuccess, Title: "Removed", Message: "Removed from your bookings"}, notices.last())
}

func TestCustomer_RemoveOnlyFinished(t *testing.T) {
	fake := newFakeAPI(booking("b1", models.StatusAccepted, testNow.Add(time.Hour)))
	c := newTestCustomer(t, fake, 9, nil)
	b, _ := c.Find("b1")

	assert.False(t, c.CanRemove(b))
	assert.ErrorIs(t, c.Remove(context.Background(), b), ErrNotRemovable)
	assert.Empty(t, fake.removed)
}

func TestCustomer_RemoveFailure(t *testing.T) {
	fake := newFakeAPI(booking("b1", models.StatusRejected, testNow))
	fake.removeFn = func(string) error { return &api.AuthError{StatusCode: 403, Message: "not your booking"} }
	notices := &noticeRecorder{}
	c := newTestCustomer(t, fake, 9, notices)
	b, _ := c.Find("b1")

	assert.ErrorIs(t, c.Remove(context.Background(), b), api.ErrUnauthenticated)
	assert.Equal(t, "not your booking", notices.last().Message)
	assert.Len(t, c.Snapshot().Items, 1)
}

func TestPageAfterRemoval(t *testing.T) {
	tests := []struct {
		page, size, total, want int
	}{
		{1, 9, 1, 1},
		{2, 9, 10, 1},
		{2, 9, 11, 2},
		{3, 2, 5, 2},
		{3, 2, 6, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, pageAfterRemoval(tt.page, tt.size, tt.total), "%+v", tt)
	}
}
