// Package admission decides whether a registration is accepted. It owns the
// capacity and name-uniqueness rules for events; the conversation engine
// calls it and translates its errors into replies.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/namefold"
	"github.com/heartpipes/clubbot/internal/repository"
)

const MaxNameLength = 100

// Confirmation reports a successful admission.
type Confirmation struct {
	Event      *model.Event
	Registered int // seat count including this admission
}

// Controller enforces admission rules against the store.
type Controller struct {
	events repository.EventRepository
	regs   repository.RegistrationRepository
	logger *slog.Logger
}

func NewController(events repository.EventRepository, regs repository.RegistrationRepository, logger *slog.Logger) *Controller {
	return &Controller{
		events: events,
		regs:   regs,
		logger: logger,
	}
}

// Admit registers rawName on the event, or explains why not:
// ErrNotFound (no such event, or no longer scheduled), ErrDuplicateName
// (someone already holds that name — the error carries their display name),
// ErrCapacityExceeded. The pre-checks give precise errors; the store's
// conditional insert re-validates both count and uniqueness atomically, so a
// race on the last seat loses cleanly instead of overbooking.
func (c *Controller) Admit(ctx context.Context, eventID, rawName string, userID int64) (*Confirmation, error) {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}

	event, err := c.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.IsOpen() {
		return nil, apperror.NotFound("open event", eventID)
	}

	folded := namefold.Fold(name)
	existing, err := c.regs.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, apperror.StoreUnavailable(err)
	}
	for _, reg := range existing {
		if reg.FoldedName == folded {
			return nil, apperror.DuplicateName(name, reg.Name)
		}
	}
	if len(existing) >= event.Capacity {
		return nil, apperror.CapacityExceeded(event.Title, event.Capacity)
	}

	reg := &model.Registration{
		EventID:    eventID,
		Name:       name,
		FoldedName: folded,
		UserID:     userID,
	}
	ok, err := c.regs.InsertIfCapacity(ctx, reg)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Someone else took the last seat between our read and the insert.
		return nil, apperror.CapacityExceeded(event.Title, event.Capacity)
	}

	count, err := c.regs.CountRegistrations(ctx, eventID)
	if err != nil {
		// The seat is claimed; only the count read failed.
		count = len(existing) + 1
	}

	c.logger.Info("admitted registration",
		slog.String("event", eventID),
		slog.String("name", name),
		slog.Int64("user", userID),
		slog.Int("registered", count),
	)

	return &Confirmation{Event: event, Registered: count}, nil
}

// Withdraw removes the registration whose folded name matches rawName.
// Returns ErrNotFound when nothing matches — safe to retry, a second call
// just reports not-found again.
func (c *Controller) Withdraw(ctx context.Context, eventID, rawName string) error {
	name := strings.TrimSpace(rawName)
	if name == "" {
		return apperror.ValidationFailed("name", "name is required")
	}

	ok, err := c.regs.DeleteRegistration(ctx, eventID, namefold.Fold(name))
	if err != nil {
		return apperror.StoreUnavailable(err)
	}
	if !ok {
		return apperror.NotFound("registration", name)
	}

	c.logger.Info("withdrew registration",
		slog.String("event", eventID),
		slog.String("name", name),
	)
	return nil
}

// SetCapacity changes an event's seat count. Lowering it below the current
// registration count is allowed and keeps every existing registration; the
// cap only blocks new admissions. That asymmetry is policy: the operator
// shrinks a game, nobody already admitted gets kicked.
func (c *Controller) SetCapacity(ctx context.Context, eventID string, capacity int) error {
	if capacity <= 0 {
		return apperror.ValidationFailed("capacity", "capacity must be a positive integer")
	}

	event, err := c.events.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}

	event.Capacity = capacity
	if err := c.events.UpdateEvent(ctx, event); err != nil {
		return err
	}

	c.logger.Info("capacity updated",
		slog.String("event", eventID),
		slog.Int("capacity", capacity),
	)
	return nil
}

// Roster returns an event together with its registrations in sign-up order.
func (c *Controller) Roster(ctx context.Context, eventID string) (*model.Event, []model.Registration, error) {
	event, err := c.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	regs, err := c.regs.ListRegistrations(ctx, eventID)
	if err != nil {
		return nil, nil, apperror.StoreUnavailable(err)
	}
	return event, regs, nil
}
