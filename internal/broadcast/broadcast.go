// Package broadcast fans one message out to many recipients. Delivery is
// sequential with pacing: the transport rate-limits per sender, so parallel
// fan-out only converts throttling into failed sends.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/heartpipes/clubbot/internal/apperror"
	"github.com/heartpipes/clubbot/internal/repository"
	"github.com/heartpipes/clubbot/internal/transport"
)

// Audience selects who receives a broadcast: every known user, or the
// registrants of one event.
type Audience struct {
	eventID string
}

// Everyone targets all users that have ever contacted the bot.
func Everyone() Audience {
	return Audience{}
}

// EventRegistrants targets users with a registration on the given event.
func EventRegistrants(eventID string) Audience {
	return Audience{eventID: eventID}
}

// Report tallies one dispatch run. Failed deliveries are final; the
// dispatcher never retries.
type Report struct {
	Sent   int
	Failed int
	Total  int
}

func (r Report) String() string {
	return fmt.Sprintf("sent %d, failed %d, total %d", r.Sent, r.Failed, r.Total)
}

// Dispatcher resolves an audience and delivers to each recipient in turn.
type Dispatcher struct {
	users  repository.UserRepository
	regs   repository.RegistrationRepository
	sender transport.Sender
	delay  time.Duration
	logger *slog.Logger
}

func NewDispatcher(users repository.UserRepository, regs repository.RegistrationRepository, sender transport.Sender, delay time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		users:  users,
		regs:   regs,
		sender: sender,
		delay:  delay,
		logger: logger,
	}
}

// Dispatch delivers msg to every member of the audience. A failed recipient
// is logged and counted, never aborts the rest. Context cancellation stops
// the run between sends; the returned error then reports the interruption
// alongside the partial Report.
func (d *Dispatcher) Dispatch(ctx context.Context, audience Audience, msg transport.OutboundMessage) (Report, error) {
	targets, err := d.resolve(ctx, audience)
	if err != nil {
		return Report{}, apperror.StoreUnavailable(err)
	}

	report := Report{Total: len(targets)}
	for i, chatID := range targets {
		if i > 0 && d.delay > 0 {
			select {
			case <-ctx.Done():
				return report, ctx.Err()
			case <-time.After(d.delay):
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		if err := d.sender.Send(ctx, chatID, msg); err != nil {
			report.Failed++
			d.logger.Warn("broadcast delivery failed",
				slog.Int64("chat", chatID),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Sent++
	}

	d.logger.Info("broadcast finished",
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
		slog.Int("total", report.Total),
	)
	return report, nil
}

func (d *Dispatcher) resolve(ctx context.Context, audience Audience) ([]int64, error) {
	if audience.eventID != "" {
		return d.regs.RegistrantUserIDs(ctx, audience.eventID)
	}
	return d.users.ListUserIDs(ctx)
}
