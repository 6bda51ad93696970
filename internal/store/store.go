// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/wwbp/BCFG-API/internal/domain"
)

// Repository defines the persistence operations consumed by the relay.
type Repository interface {
	// GetUser retrieves a user by their platform id. Returns (nil, nil)
	// when the user is unknown.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// GetOrCreateUser returns the existing user or creates one with the
	// given display name.
	GetOrCreateUser(ctx context.Context, userID, name string) (*domain.User, error)

	// UpdateUserName updates the display name for an existing user.
	UpdateUserName(ctx context.Context, userID, name string) error

	// GetSession retrieves session state for a user. Returns (nil, nil)
	// when no session exists yet.
	GetSession(ctx context.Context, userID string) (*domain.Session, error)

	// SaveSession creates or replaces session state.
	SaveSession(ctx context.Context, session *domain.Session) error

	// GetActivityAssignment returns the ordered activity sequence bound
	// to a user, or an empty slice when none has been assigned.
	GetActivityAssignment(ctx context.Context, userID string) ([]domain.Activity, error)

	// SaveActivityAssignment persists an ordered activity sequence. The
	// assignment is a snapshot: later catalog edits must not change it.
	SaveActivityAssignment(ctx context.Context, userID string, activities []domain.Activity) error

	// AppendTranscript appends one immutable exchange record.
	AppendTranscript(ctx context.Context, userID, userMessage, assistantMessage string, generation int) error

	// ListTranscripts returns all transcript entries for a user in
	// chronological order.
	ListTranscripts(ctx context.Context, userID string) ([]domain.Transcript, error)

	// GetPromptConfig returns the global prompt configuration, falling
	// back to defaults when none has been saved.
	GetPromptConfig(ctx context.Context) (*domain.PromptConfig, error)

	// SavePromptConfig replaces the global prompt configuration.
	SavePromptConfig(ctx context.Context, cfg *domain.PromptConfig) error

	// ListActivityCatalog returns all catalog activities in insertion order.
	ListActivityCatalog(ctx context.Context) ([]domain.Activity, error)

	// CreateActivity adds a catalog activity and fills in its ID.
	CreateActivity(ctx context.Context, activity *domain.Activity) error

	// UpdateActivity replaces content and priority of a catalog activity.
	UpdateActivity(ctx context.Context, activity *domain.Activity) error

	// DeleteActivity removes a catalog activity. Existing assignments
	// keep their snapshot of it.
	DeleteActivity(ctx context.Context, id int64) error

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
