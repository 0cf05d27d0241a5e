// Package repository declares the persistence interfaces consumed by the
// services. Implementations live in subpackages (sqlite); tests use
// in-memory fakes.
package repository

import (
	"context"

	"github.com/heartpipes/clubbot/internal/model"
)

// EventRepository handles persistence for events.
type EventRepository interface {
	CreateEvent(ctx context.Context, event *model.Event) error
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	// ListOpenEvents returns scheduled events ordered by start time.
	ListOpenEvents(ctx context.Context) ([]model.Event, error)
	UpdateEvent(ctx context.Context, event *model.Event) error
	SetEventStatus(ctx context.Context, id, status string) error
}

// RegistrationRepository handles persistence for event registrations.
//
// InsertIfCapacity is the admission primitive: it re-checks the seat count
// and the folded-name uniqueness inside one atomic store operation and
// inserts only if both hold. It returns false when the event is full or no
// longer scheduled; a folded-name clash surfaces as
// apperror.ErrDuplicateName. This is the only invariant in the system that
// must live in the store rather than the application: two processes sharing
// the database would race on the last seat otherwise.
type RegistrationRepository interface {
	InsertIfCapacity(ctx context.Context, reg *model.Registration) (bool, error)
	// DeleteRegistration removes the registration matching the folded name
	// and reports whether anything was deleted.
	DeleteRegistration(ctx context.Context, eventID, foldedName string) (bool, error)
	ListRegistrations(ctx context.Context, eventID string) ([]model.Registration, error)
	CountRegistrations(ctx context.Context, eventID string) (int, error)
	// RegistrantUserIDs returns the distinct chat IDs of registrants that
	// have one, for event-scoped broadcasts.
	RegistrantUserIDs(ctx context.Context, eventID string) ([]int64, error)
}

// PlayerRepository handles the roster and player photo cards.
type PlayerRepository interface {
	UpsertPlayer(ctx context.Context, player *model.Player) error
	DeletePlayer(ctx context.Context, foldedName string) (bool, error)
	// ListPlayers returns the roster ordered by rating, highest first.
	ListPlayers(ctx context.Context) ([]model.Player, error)
	UpsertCard(ctx context.Context, card *model.PlayerCard) error
	GetCard(ctx context.Context, foldedName string) (*model.PlayerCard, error)
	DeleteCard(ctx context.Context, foldedName string) error
}

// UserRepository tracks chat identities that have contacted the bot.
type UserRepository interface {
	// UpsertUser creates the user on first contact and refreshes last_seen
	// and display metadata on every later one.
	UpsertUser(ctx context.Context, user *model.User) error
	ListUserIDs(ctx context.Context) ([]int64, error)
}
