package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"fixora/internal/api"
	"fixora/internal/domain"
	"fixora/internal/logging"
	"fixora/internal/metrics"
	"fixora/internal/models"

	"github.com/rs/zerolog"
)

// ErrBusy is returned when a transition is submitted for a booking that
// already has one in flight.
var ErrBusy = errors.New("booking is already being updated")

const (
	transitionFailedMessage = "Failed to update booking status"
	invalidPriceMessage     = "Enter a valid positive price"
)

type PromptKind string

const (
	PromptConfirm PromptKind = "confirm"
	PromptPrice   PromptKind = "price"
)

// Prompt is the step shown after the user picks an action: a plain
// confirmation, or a price entry when completing.
type Prompt struct {
	Kind         PromptKind
	BookingID    string
	Action       models.Action
	Title        string
	Message      string
	DefaultPrice string
}

// ActionState is an offered action with its control state.
type ActionState struct {
	models.Action
	Disabled bool
}

// bookingView is the held view that transitions and pushed events write
// to. *BookingList satisfies it.
type bookingView interface {
	Replace(b *models.Booking) bool
	Upsert(b *models.Booking) UpsertResult
	Refresh(ctx context.Context) error
}

// TransitionEngine drives status changes for the provider dashboard. The
// displayed status only changes once the server returns the updated record.
type TransitionEngine struct {
	updater  domain.StatusUpdater
	list     bookingView
	notifier Notifier
	logger   *zerolog.Logger
	updating *inflight
}

func NewTransitionEngine(updater domain.StatusUpdater, list bookingView, notifier Notifier, logger *zerolog.Logger) *TransitionEngine {
	return &TransitionEngine{
		updater:  updater,
		list:     list,
		notifier: notifierOrNop(notifier),
		logger:   logging.Component(logger, "transitions"),
		updating: newInflight(),
	}
}

// Begin opens the step for action on b.
func (e *TransitionEngine) Begin(b *models.Booking, action models.Action) (Prompt, error) {
	offered, ok := models.FindAction(b.Status, action.Next)
	if !ok {
		return Prompt{}, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, b.Status, action.Next)
	}

	if offered.RequiresPrice() {
		p := Prompt{
			Kind:      PromptPrice,
			BookingID: b.ID,
			Action:    offered,
			Title:     "Complete booking",
			Message:   fmt.Sprintf("Enter final price for %s", b.ServiceTitle),
		}
		if b.Price != nil {
			p.DefaultPrice = strconv.FormatFloat(*b.Price, 'f', -1, 64)
		}
		return p, nil
	}

	return Prompt{
		Kind:      PromptConfirm,
		BookingID: b.ID,
		Action:    offered,
		Title:     offered.Label + " booking?",
		Message:   fmt.Sprintf("Are you sure you want to %s %q?", strings.ToLower(offered.Label), b.ServiceTitle),
	}, nil
}

// ParsePrice reads the price input. Currency symbols and digit grouping
// are tolerated.
func ParsePrice(input string) (float64, error) {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "₹")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, &api.ValidationError{Field: "price", Message: invalidPriceMessage}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !models.ValidPrice(&v) {
		return 0, &api.ValidationError{Field: "price", Message: invalidPriceMessage}
	}
	return v, nil
}

// Confirm completes a prompt. priceInput is only read for price prompts.
func (e *TransitionEngine) Confirm(ctx context.Context, p Prompt, b *models.Booking, priceInput string) (*models.Booking, error) {
	if p.BookingID != b.ID {
		return nil, fmt.Errorf("prompt is for booking %s, not %s", p.BookingID, b.ID)
	}
	var price *float64
	if p.Kind == PromptPrice {
		v, err := ParsePrice(priceInput)
		if err != nil {
			return nil, err
		}
		price = &v
	}
	return e.Submit(ctx, b, p.Action.Next, price)
}

// Submit validates locally, then requests the transition. Nothing is sent
// when validation fails. On success the held record is replaced by the
// server's; on failure it is left as it was.
func (e *TransitionEngine) Submit(ctx context.Context, b *models.Booking, next models.Status, price *float64) (*models.Booking, error) {
	if err := models.ValidateTransition(b.Status, next, price); err != nil {
		metrics.IncTransition(string(next), "rejected_locally")
		return nil, err
	}
	if !e.updating.mark(b.ID) {
		return nil, ErrBusy
	}

	update := models.StatusUpdate{Status: next}
	if next == models.StatusCompleted {
		v := *price
		update.Price = &v
	}

	updated, err := e.updater.UpdateStatus(ctx, b.ID, update)
	e.updating.unmark(b.ID)

	if err != nil {
		metrics.IncTransition(string(next), "error")
		if ctx.Err() != nil {
			return nil, err
		}
		e.logger.Warn().Err(err).
			Str("booking_id", b.ID).
			Str("from", string(b.Status)).
			Str("to", string(next)).
			Msg("status transition failed")
		e.notifier.Notify(errorNotice(api.UserMessage(err, transitionFailedMessage)))
		if api.IsConflict(err) && e.list != nil {
			if rerr := e.list.Refresh(ctx); rerr != nil && !errors.Is(rerr, ErrSuperseded) {
				e.logger.Debug().Err(rerr).Msg("refresh after conflict failed")
			}
		}
		return nil, err
	}

	if updated.ID == "" {
		updated.ID = b.ID
	}
	if e.list != nil {
		e.list.Replace(updated)
	}
	metrics.IncTransition(string(next), "ok")
	e.logger.Info().
		Str("booking_id", b.ID).
		Str("from", string(b.Status)).
		Str("to", string(updated.Status)).
		Msg("status updated")
	return updated, nil
}

// IsUpdating reports whether a transition for id is in flight.
func (e *TransitionEngine) IsUpdating(id string) bool {
	return e.updating.has(id)
}

// Actions returns the offered actions for b, disabled while b is updating.
func (e *TransitionEngine) Actions(b *models.Booking) []ActionState {
	return actionStates(models.OfferedActions(b.Status), e.updating.has(b.ID))
}

func actionStates(actions []models.Action, busy bool) []ActionState {
	out := make([]ActionState, 0, len(actions))
	for _, a := range actions {
		out = append(out, ActionState{Action: a, Disabled: busy})
	}
	return out
}

// inflight is a set of record ids with a mutation outstanding.
type inflight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{ids: make(map[string]struct{})}
}

// mark adds id and reports false when it was already present.
func (f *inflight) mark(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; ok {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *inflight) unmark(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}

func (f *inflight) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ids[id]
	return ok
}
