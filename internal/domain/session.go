package domain

import (
	"time"
)

// EndedExchangeCount is the sentinel value stored for a concluded session.
// It only appears at the persistence and API boundaries; in-process code
// works with SessionState instead.
const EndedExchangeCount = -1

// SessionPhase identifies where a session is in its lifecycle.
type SessionPhase int

const (
	// PhaseNew means the opening message for the current activity has not
	// been delivered yet.
	PhaseNew SessionPhase = iota
	// PhaseActive means the session is inside an activity.
	PhaseActive
	// PhaseEnded is terminal; only an explicit restart leaves it.
	PhaseEnded
)

// SessionState is the tagged representation of the session lifecycle.
// Round counts completed user/assistant exchanges within the current
// activity and is only meaningful in PhaseActive.
type SessionState struct {
	Phase SessionPhase
	Round int
}

// ExchangeCount flattens the state to the integer encoding used by
// storage and the user_info payload: -1 ended, otherwise the round count.
func (s SessionState) ExchangeCount() int {
	if s.Phase == PhaseEnded {
		return EndedExchangeCount
	}
	return s.Round
}

// StateFromCounts rebuilds the tagged state from the stored encoding.
func StateFromCounts(exchangeCount int, started bool) SessionState {
	if exchangeCount == EndedExchangeCount {
		return SessionState{Phase: PhaseEnded}
	}
	if !started {
		return SessionState{Phase: PhaseNew}
	}
	return SessionState{Phase: PhaseActive, Round: exchangeCount}
}

// Session holds per-user conversational state. One session exists per
// user; a restart bumps Generation rather than creating a new row.
type Session struct {
	UserID               string
	AssistantID          string
	ThreadID             string
	CurrentActivityIndex int
	Generation           int
	State                SessionState
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// HasThread reports whether the LLM conversation thread has been created.
func (s *Session) HasThread() bool {
	return s.AssistantID != "" && s.ThreadID != ""
}

// Ended reports whether the session has concluded.
func (s *Session) Ended() bool {
	return s.State.Phase == PhaseEnded
}

// Restart resets the session to the beginning of its assignment and
// bumps the generation. The activity assignment itself is untouched.
func (s *Session) Restart() {
	s.CurrentActivityIndex = 0
	s.State = SessionState{Phase: PhaseNew}
	s.Generation++
}
