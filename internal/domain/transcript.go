package domain

import (
	"time"
)

// Transcript is one immutable exchange record. UserMessage is empty for
// assistant-initiated turns (activity openings, transitions, conclusions).
type Transcript struct {
	ID               int64     `json:"id"`
	UserID           string    `json:"user_id"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Generation       int       `json:"generation"`
	CreatedAt        time.Time `json:"created_at"`
}
