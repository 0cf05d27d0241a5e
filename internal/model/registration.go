package model

import "time"

// Registration is a claimed seat on an event.
//
// Name is the display name exactly as the registrant typed it; FoldedName is
// its canonical form (namefold.Fold) and is unique per event at the store
// level. UserID is the chat identity that created the registration, 0 when
// the operator registered someone by hand.
type Registration struct {
	ID         string    `json:"id"`
	EventID    string    `json:"eventId"`
	Name       string    `json:"name"`
	FoldedName string    `json:"-"`
	UserID     int64     `json:"userId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
