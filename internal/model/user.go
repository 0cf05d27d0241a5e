package model

import "time"

// User is a chat identity that has talked to the bot at least once.
// Created on first contact, touched on every update, never deleted.
// The ID is the platform chat ID (int64 on Telegram).
type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	Username  string    `json:"username"` // may be empty, not all accounts have one
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}
