package models

import (
	"errors"
	"fmt"
	"math"
)

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAccepted   Status = "accepted"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

var (
	ErrUnknownStatus        = errors.New("unknown booking status")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrMissingRequiredPrice = errors.New("completing a booking requires a positive price")
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusPending,
	StatusAccepted,
	StatusInProgress,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusAccepted, StatusRejected, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// IsTerminal reports whether no further transition is offered.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// IsActive reports whether the booking belongs on the active board.
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted || s == StatusInProgress
}

// Label is the human form used in listings ("in progress").
func (s Status) Label() string {
	if s == StatusInProgress {
		return "in progress"
	}
	return string(s)
}

// Action is one UI-offered transition.
type Action struct {
	Label   string `json:"label"`
	Next    Status `json:"next"`
	Variant string `json:"variant"`
}

func (a Action) RequiresPrice() bool { return a.Next == StatusCompleted }

var (
	actionAccept   = Action{Label: "Accept", Next: StatusAccepted, Variant: "primary"}
	actionReject   = Action{Label: "Reject", Next: StatusRejected, Variant: "danger"}
	actionStart    = Action{Label: "Start", Next: StatusInProgress, Variant: "primary"}
	actionComplete = Action{Label: "Complete", Next: StatusCompleted, Variant: "primary"}
	actionCancel   = Action{Label: "Cancel", Next: StatusCancelled, Variant: "ghost"}
)

// Transitions is the fixed table shared by every dashboard surface.
var Transitions = map[Status][]Action{
	StatusPending:    {actionAccept, actionReject, actionCancel},
	StatusAccepted:   {actionStart, actionCancel},
	StatusInProgress: {actionComplete, actionCancel},
	StatusRejected:   {},
	StatusCompleted:  {},
	StatusCancelled:  {},
}

// OfferedActions returns a copy of the table row for s.
func OfferedActions(s Status) []Action {
	row := Transitions[s]
	out := make([]Action, len(row))
	copy(out, row)
	return out
}

// CustomerActions returns what a customer may do on their own booking.
func CustomerActions(s Status) []Action {
	if s == StatusPending || s == StatusAccepted {
		return []Action{actionCancel}
	}
	return []Action{}
}

// FindAction looks up the action that moves from -> to.
func FindAction(from, to Status) (Action, bool) {
	for _, a := range Transitions[from] {
		if a.Next == to {
			return a, true
		}
	}
	return Action{}, false
}

func CanTransition(from, to Status) bool {
	_, ok := FindAction(from, to)
	return ok
}

// ValidPrice reports whether p is usable as a final price.
func ValidPrice(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) && *p > 0
}

// ValidateTransition checks a requested change against the table.
func ValidateTransition(from, to Status, price *float64) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == StatusCompleted && !ValidPrice(price) {
		return ErrMissingRequiredPrice
	}
	return nil
}
