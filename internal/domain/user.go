// Package domain contains core domain types for the BCFG relay.
package domain

import (
	"time"
)

// User represents a participant known to the relay, identified by the
// opaque id assigned by the upstream platform.
type User struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MessageContext carries the per-message context block sent by the
// upstream platform alongside an inbound participant message.
type MessageContext struct {
	SchoolName     string `json:"school_name"`
	SchoolMascot   string `json:"school_mascot"`
	InitialMessage string `json:"initial_message"`
	WeekNumber     int    `json:"week_number"`
	Name           string `json:"name"`
}
