package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/shared"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		user_id TEXT PRIMARY KEY,
		assistant_id TEXT NOT NULL DEFAULT '',
		thread_id TEXT NOT NULL DEFAULT '',
		current_activity_index INTEGER NOT NULL DEFAULT 0,
		exchange_count INTEGER NOT NULL DEFAULT 0,
		started INTEGER NOT NULL DEFAULT 0,
		generation INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		content TEXT NOT NULL,
		priority INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_assignments (
		user_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		activity_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		priority INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, position)
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		user_message TEXT NOT NULL,
		assistant_message TEXT NOT NULL,
		generation INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_user ON transcripts(user_id, id);

	CREATE TABLE IF NOT EXISTS prompt_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		persona TEXT NOT NULL,
		knowledge TEXT NOT NULL,
		num_activities INTEGER NOT NULL,
		num_rounds INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetUser retrieves a user by their platform id.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `SELECT user_id, name, created_at, updated_at FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Name, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// GetOrCreateUser returns the existing user or creates one.
func (s *SQLiteStore) GetOrCreateUser(ctx context.Context, userID, name string) (*domain.User, error) {
	user, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return user, nil
	}

	now := time.Now()
	query := `
	INSERT INTO users (user_id, name, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO NOTHING`
	if _, err := s.execRetry(ctx, query, userID, name, now.Unix(), now.Unix()); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	// Re-read so a concurrent insert still yields the stored row.
	user, err = s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %s missing after insert", userID)
	}
	return user, nil
}

// UpdateUserName updates the display name for an existing user.
func (s *SQLiteStore) UpdateUserName(ctx context.Context, userID, name string) error {
	query := `UPDATE users SET name = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.execRetry(ctx, query, name, time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update user name: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateUserName affected 0 rows", "user_id", userID)
	}
	return nil
}

// GetSession retrieves session state for a user.
func (s *SQLiteStore) GetSession(ctx context.Context, userID string) (*domain.Session, error) {
	query := `
		SELECT user_id, assistant_id, thread_id, current_activity_index,
		       exchange_count, started, generation, created_at, updated_at
		FROM sessions WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var session domain.Session
	var exchangeCount int
	var started bool
	var createdAt, updatedAt int64

	err := row.Scan(
		&session.UserID, &session.AssistantID, &session.ThreadID,
		&session.CurrentActivityIndex, &exchangeCount, &started,
		&session.Generation, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	session.State = domain.StateFromCounts(exchangeCount, started)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	return &session, nil
}

// SaveSession creates or replaces session state.
func (s *SQLiteStore) SaveSession(ctx context.Context, session *domain.Session) error {
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	query := `
	INSERT INTO sessions (
		user_id, assistant_id, thread_id, current_activity_index,
		exchange_count, started, generation, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		assistant_id = excluded.assistant_id,
		thread_id = excluded.thread_id,
		current_activity_index = excluded.current_activity_index,
		exchange_count = excluded.exchange_count,
		started = excluded.started,
		generation = excluded.generation,
		updated_at = excluded.updated_at`

	_, err := s.execRetry(ctx, query,
		session.UserID, session.AssistantID, session.ThreadID,
		session.CurrentActivityIndex, session.State.ExchangeCount(),
		session.State.Phase == domain.PhaseActive, session.Generation,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// GetActivityAssignment returns the ordered activity snapshot for a user.
func (s *SQLiteStore) GetActivityAssignment(ctx context.Context, userID string) ([]domain.Activity, error) {
	query := `
		SELECT activity_id, content, priority, created_at
		FROM activity_assignments WHERE user_id = ? ORDER BY position`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query activity assignment: %w", err)
	}
	defer closeRows(rows, "activity assignment")

	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Content, &a.Priority, &createdAt); err != nil {
			return nil, fmt.Errorf("scan assignment row: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment rows: %w", err)
	}
	return activities, nil
}

// SaveActivityAssignment persists an ordered activity snapshot.
func (s *SQLiteStore) SaveActivityAssignment(ctx context.Context, userID string, activities []domain.Activity) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	query := `
	INSERT INTO activity_assignments (user_id, position, activity_id, content, priority, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, position) DO NOTHING`

	for i, a := range activities {
		if _, err := tx.ExecContext(ctx, query, userID, i, a.ID, a.Content, a.Priority, now); err != nil {
			return fmt.Errorf("insert assignment position %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment tx: %w", err)
	}
	return nil
}

// AppendTranscript appends one immutable exchange record.
func (s *SQLiteStore) AppendTranscript(ctx context.Context, userID, userMessage, assistantMessage string, generation int) error {
	query := `
	INSERT INTO transcripts (user_id, user_message, assistant_message, generation, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.execRetry(ctx, query, userID, userMessage, assistantMessage, generation, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("append transcript: %w", err)
	}
	return nil
}

// ListTranscripts returns all transcript entries for a user, oldest first.
func (s *SQLiteStore) ListTranscripts(ctx context.Context, userID string) ([]domain.Transcript, error) {
	query := `
		SELECT id, user_id, user_message, assistant_message, generation, created_at
		FROM transcripts WHERE user_id = ? ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer closeRows(rows, "transcripts")

	var entries []domain.Transcript
	for rows.Next() {
		var t domain.Transcript
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.UserID, &t.UserMessage, &t.AssistantMessage, &t.Generation, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		t.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript rows: %w", err)
	}
	return entries, nil
}

// GetPromptConfig returns the global prompt configuration.
func (s *SQLiteStore) GetPromptConfig(ctx context.Context) (*domain.PromptConfig, error) {
	query := `SELECT persona, knowledge, num_activities, num_rounds, updated_at FROM prompt_config WHERE id = 1`

	row := s.db.QueryRowContext(ctx, query)

	var cfg domain.PromptConfig
	var updatedAt int64

	err := row.Scan(&cfg.Persona, &cfg.Knowledge, &cfg.NumActivities, &cfg.NumRounds, &updatedAt)
	if err == sql.ErrNoRows {
		return domain.DefaultPromptConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan prompt config: %w", err)
	}

	cfg.UpdatedAt = time.Unix(updatedAt, 0)
	return &cfg, nil
}

// SavePromptConfig replaces the global prompt configuration.
func (s *SQLiteStore) SavePromptConfig(ctx context.Context, cfg *domain.PromptConfig) error {
	cfg.UpdatedAt = time.Now()
	query := `
	INSERT INTO prompt_config (id, persona, knowledge, num_activities, num_rounds, updated_at)
	VALUES (1, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		persona = excluded.persona,
		knowledge = excluded.knowledge,
		num_activities = excluded.num_activities,
		num_rounds = excluded.num_rounds,
		updated_at = excluded.updated_at`

	_, err := s.execRetry(ctx, query, cfg.Persona, cfg.Knowledge, cfg.NumActivities, cfg.NumRounds, cfg.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save prompt config: %w", err)
	}
	return nil
}

// ListActivityCatalog returns all catalog activities in insertion order.
func (s *SQLiteStore) ListActivityCatalog(ctx context.Context) ([]domain.Activity, error) {
	query := `SELECT id, content, priority, created_at FROM activities ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query activity catalog: %w", err)
	}
	defer closeRows(rows, "activity catalog")

	var activities []domain.Activity
	for rows.Next() {
		var a domain.Activity
		var createdAt int64
		if err := rows.Scan(&a.ID, &a.Content, &a.Priority, &createdAt); err != nil {
			return nil, fmt.Errorf("scan activity row: %w", err)
		}
		a.CreatedAt = time.Unix(createdAt, 0)
		activities = append(activities, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate activity rows: %w", err)
	}
	return activities, nil
}

// CreateActivity adds a catalog activity.
func (s *SQLiteStore) CreateActivity(ctx context.Context, activity *domain.Activity) error {
	activity.CreatedAt = time.Now()
	query := `INSERT INTO activities (content, priority, created_at) VALUES (?, ?, ?)`

	result, err := s.execRetry(ctx, query, activity.Content, activity.Priority, activity.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("activity insert id: %w", err)
	}
	activity.ID = id
	return nil
}

// UpdateActivity replaces content and priority of a catalog activity.
func (s *SQLiteStore) UpdateActivity(ctx context.Context, activity *domain.Activity) error {
	query := `UPDATE activities SET content = ?, priority = ? WHERE id = ?`

	result, err := s.execRetry(ctx, query, activity.Content, activity.Priority, activity.ID)
	if err != nil {
		return fmt.Errorf("update activity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("activity %d not found", activity.ID)
	}
	return nil
}

// DeleteActivity removes a catalog activity.
func (s *SQLiteStore) DeleteActivity(ctx context.Context, id int64) error {
	result, err := s.execRetry(ctx, `DELETE FROM activities WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("activity %d not found", id)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// execRetry executes a write, retrying once when SQLite reports a
// busy/locked conflict.
func (s *SQLiteStore) execRetry(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil && shared.IsSQLiteConflictError(err) {
		slog.Warn("sqlite write conflict, retrying", "error", err)
		result, err = s.db.ExecContext(ctx, query, args...)
	}
	return result, err
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Warn("failed to close rows", "query", what, "error", err)
	}
}
