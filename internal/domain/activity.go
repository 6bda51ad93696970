package domain

import (
	"time"
)

// Activity is a curated topic the assistant guides a participant
// through. Lower Priority runs earlier when an activity is assigned.
type Activity struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// PromptConfig is the global assistant configuration. NumActivities is
// the sample size drawn for a new assignment; NumRounds is the number of
// exchanges an activity runs before the orchestrator moves on.
type PromptConfig struct {
	Persona       string    `json:"persona"`
	Knowledge     string    `json:"knowledge"`
	NumActivities int       `json:"num_activities"`
	NumRounds     int       `json:"num_rounds"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DefaultPromptConfig is the configuration used until an admin saves one.
func DefaultPromptConfig() *PromptConfig {
	return &PromptConfig{
		Persona:       "You are a friendly, encouraging assistant.",
		Knowledge:     "",
		NumActivities: 3,
		NumRounds:     5,
	}
}
