package service

import (
	"context"
	"errors"
	"fmt"

	"fixora/internal/api"
	"fixora/internal/domain"
	"fixora/internal/logging"
	"fixora/internal/models"

	"github.com/rs/zerolog"
)

var ErrNotRemovable = errors.New("only finished bookings can be removed from the list")

const (
	cancelFailedMessage = "Failed to cancel booking"
	removeFailedMessage = "Failed to remove"
)

// CustomerBookings is the customer's own booking list with cancel and
// remove-from-list.
type CustomerBookings struct {
	*BookingList

	api      domain.CustomerBookingsAPI
	notifier Notifier
	logger   *zerolog.Logger

	cancelling *inflight
	removing   *inflight
}

func NewCustomerBookings(source domain.CustomerBookingsAPI, opts ListOptions) *CustomerBookings {
	if opts.Surface == "" {
		opts.Surface = "customer"
	}
	return &CustomerBookings{
		BookingList: newBookingList(serverPage(source.ListMyBookings, opts.clock()), opts),
		api:         source,
		notifier:    notifierOrNop(opts.Notifier),
		logger:      logging.Component(opts.Logger, "customer_bookings"),
		cancelling:  newInflight(),
		removing:    newInflight(),
	}
}

// Cancel cancels a pending or accepted booking, then re-fetches the
// current page so totals and counts stay consistent.
func (c *CustomerBookings) Cancel(ctx context.Context, b *models.Booking) error {
	if err := models.ValidateTransition(b.Status, models.StatusCancelled, nil); err != nil {
		return err
	}
	if b.Status != models.StatusPending && b.Status != models.StatusAccepted {
		return fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, b.Status, models.StatusCancelled)
	}
	if !c.cancelling.mark(b.ID) {
		return ErrBusy
	}
	defer c.cancelling.unmark(b.ID)

	if _, err := c.api.UpdateStatus(ctx, b.ID, models.StatusUpdate{Status: models.StatusCancelled}); err != nil {
		if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("cancel failed")
			c.notifier.Notify(errorNotice(api.UserMessage(err, cancelFailedMessage)))
		}
		return err
	}

	c.refresh(ctx)
	c.notifier.Notify(Notice{Kind: NoticeSuccess, Title: "Cancelled", Message: "Your booking has been cancelled"})
	return nil
}

// Remove hides a finished booking from the customer's list. When it was the
// only item on the last page the view steps back one page.
func (c *CustomerBookings) Remove(ctx context.Context, b *models.Booking) error {
	if !b.Status.IsTerminal() {
		return ErrNotRemovable
	}
	if !c.removing.mark(b.ID) {
		return ErrBusy
	}
	defer c.removing.unmark(b.ID)

	if err := c.api.RemoveFromMyList(ctx, b.ID); err != nil {
		if ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("booking_id", b.ID).Msg("remove failed")
			c.notifier.Notify(errorNotice(api.UserMessage(err, removeFailedMessage)))
		}
		return err
	}

	view := c.Snapshot()
	page := pageAfterRemoval(view.Page, view.PageSize, view.Total)
	if err := c.SetPage(ctx, page); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Debug().Err(err).Msg("reload after remove failed")
	}
	c.notifier.Notify(Notice{Kind: NoticeSuccess, Title: "Removed", Message: "Removed from your bookings"})
	return nil
}

// pageAfterRemoval is the page to show once one item is gone from total.
func pageAfterRemoval(page, size, total int) int {
	remaining := max(total-1, 0)
	if page > 1 && (page-1)*size >= remaining {
		return page - 1
	}
	return page
}

// Actions returns the customer's actions for b.
func (c *CustomerBookings) Actions(b *models.Booking) []ActionState {
	return actionStates(models.CustomerActions(b.Status), c.cancelling.has(b.ID))
}

func (c *CustomerBookings) CanRemove(b *models.Booking) bool {
	return b.Status.IsTerminal() && !c.removing.has(b.ID)
}

func (c *CustomerBookings) IsCancelling(id string) bool { return c.cancelling.has(id) }

func (c *CustomerBookings) IsRemoving(id string) bool { return c.removing.has(id) }

func (c *CustomerBookings) refresh(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Debug().Err(err).Msg("refresh after cancel failed")
	}
}
