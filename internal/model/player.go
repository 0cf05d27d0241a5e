package model

import "time"

// Player is a roster entry: a club member with a rating. Independent of both
// User (chat identity) and Registration (a seat on one event) — a player may
// never have touched the bot, and a registration name does not have to match
// any player.
type Player struct {
	Name      string    `json:"name"` // unique, fold-insensitive
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PlayerCard maps a player to the transport file ID of their photo card.
// The file lives on the messaging platform; we store only the reference.
type PlayerCard struct {
	PlayerName string    `json:"playerName"`
	FileID     string    `json:"fileId"`
	CreatedAt  time.Time `json:"createdAt"`
}
