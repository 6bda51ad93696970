package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wwbp/BCFG-API/internal/domain"
)

// Memory is an in-memory Repository used in tests and local development.
// It honors the same contract as the SQLite store, including the
// snapshot semantics of activity assignments.
type Memory struct {
	mu           sync.Mutex
	users        map[string]*domain.User
	sessions     map[string]*domain.Session
	assignments  map[string][]domain.Activity
	transcripts  map[string][]domain.Transcript
	catalog      []domain.Activity
	promptConfig *domain.PromptConfig
	nextID       int64
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		users:       make(map[string]*domain.User),
		sessions:    make(map[string]*domain.Session),
		assignments: make(map[string][]domain.Activity),
		transcripts: make(map[string][]domain.Transcript),
		nextID:      1,
	}
}

func (m *Memory) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	u := *user
	return &u, nil
}

func (m *Memory) GetOrCreateUser(_ context.Context, userID, name string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[userID]; ok {
		u := *user
		return &u, nil
	}
	now := time.Now()
	user := &domain.User{UserID: userID, Name: name, CreatedAt: now, UpdatedAt: now}
	m.users[userID] = user
	u := *user
	return &u, nil
}

func (m *Memory) UpdateUserName(_ context.Context, userID, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[userID]; ok {
		user.Name = name
		user.UpdatedAt = time.Now()
	}
	return nil
}

func (m *Memory) GetSession(_ context.Context, userID string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[userID]
	if !ok {
		return nil, nil
	}
	s := *session
	return &s, nil
}

func (m *Memory) SaveSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	s := *session
	m.sessions[session.UserID] = &s
	return nil
}

func (m *Memory) GetActivityAssignment(_ context.Context, userID string) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Activity(nil), m.assignments[userID]...), nil
}

func (m *Memory) SaveActivityAssignment(_ context.Context, userID string, activities []domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.assignments[userID]; ok {
		return nil
	}
	m.assignments[userID] = append([]domain.Activity(nil), activities...)
	return nil
}

func (m *Memory) AppendTranscript(_ context.Context, userID, userMessage, assistantMessage string, generation int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transcripts[userID] = append(m.transcripts[userID], domain.Transcript{
		ID:               m.nextID,
		UserID:           userID,
		UserMessage:      userMessage,
		AssistantMessage: assistantMessage,
		Generation:       generation,
		CreatedAt:        time.Now(),
	})
	m.nextID++
	return nil
}

func (m *Memory) ListTranscripts(_ context.Context, userID string) ([]domain.Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Transcript(nil), m.transcripts[userID]...), nil
}

func (m *Memory) GetPromptConfig(_ context.Context) (*domain.PromptConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.promptConfig == nil {
		return domain.DefaultPromptConfig(), nil
	}
	cfg := *m.promptConfig
	return &cfg, nil
}

func (m *Memory) SavePromptConfig(_ context.Context, cfg *domain.PromptConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg.UpdatedAt = time.Now()
	c := *cfg
	m.promptConfig = &c
	return nil
}

func (m *Memory) ListActivityCatalog(_ context.Context) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Activity(nil), m.catalog...), nil
}

func (m *Memory) CreateActivity(_ context.Context, activity *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	activity.ID = m.nextID
	activity.CreatedAt = time.Now()
	m.nextID++
	m.catalog = append(m.catalog, *activity)
	return nil
}

func (m *Memory) UpdateActivity(_ context.Context, activity *domain.Activity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.catalog {
		if m.catalog[i].ID == activity.ID {
			m.catalog[i].Content = activity.Content
			m.catalog[i].Priority = activity.Priority
			return nil
		}
	}
	return fmt.Errorf("activity %d not found", activity.ID)
}

func (m *Memory) DeleteActivity(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.catalog {
		if m.catalog[i].ID == id {
			m.catalog = append(m.catalog[:i], m.catalog[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("activity %d not found", id)
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
