// Package model defines the data structures shared across the application.
package model

import "time"

// Event status values. Cancelled events are kept for history; they just stop
// accepting registrations.
const (
	EventScheduled = "scheduled"
	EventCancelled = "cancelled"
)

// Event is a scheduled game night with a fixed number of seats.
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"startsAt"`
	EndsAt    time.Time `json:"endsAt"`
	Capacity  int       `json:"capacity"`
	Location  string    `json:"location"`
	Price     string    `json:"price"` // free text, e.g. "1500₽ buy-in"
	Host      string    `json:"host"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsOpen reports whether the event still accepts registrations.
func (e *Event) IsOpen() bool {
	return e.Status == EventScheduled
}

// SpotsLeft returns the remaining seats given the current registration count.
// Can be negative after an operator lowers capacity below the count; the
// admission check treats that the same as zero.
func (e *Event) SpotsLeft(registered int) int {
	return e.Capacity - registered
}
