// Package scheduler assigns activity sequences to users.
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"

	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/store"
)

// Scheduler draws a random subset of the activity catalog for a user and
// fixes its execution order by priority. Selection is random so sessions
// vary; ordering is deterministic so authors control sequencing.
type Scheduler struct {
	repo store.Repository

	mu  sync.Mutex
	rnd *rand.Rand
}

// New creates a Scheduler. The random source is injected so tests can
// assert ordering behavior deterministically.
func New(repo store.Repository, rnd *rand.Rand) *Scheduler {
	return &Scheduler{repo: repo, rnd: rnd}
}

// EnsureAssignment returns the user's activity assignment, creating it
// on first call. An existing assignment is returned as-is: a restart
// replays the same sequence, it does not re-sample. Callers must hold
// the per-user serialization scope; the check-then-act here is not
// otherwise safe against concurrent calls for the same user.
func (s *Scheduler) EnsureAssignment(ctx context.Context, userID string) ([]domain.Activity, error) {
	existing, err := s.repo.GetActivityAssignment(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load assignment: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	catalog, err := s.repo.ListActivityCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load catalog: %w", err)
	}
	cfg, err := s.repo.GetPromptConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: load prompt config: %w", err)
	}

	assignment := s.sample(catalog, cfg.NumActivities)
	if len(assignment) == 0 {
		// An empty catalog yields an empty assignment; nothing to persist.
		return nil, nil
	}

	if err := s.repo.SaveActivityAssignment(ctx, userID, assignment); err != nil {
		return nil, fmt.Errorf("scheduler: save assignment: %w", err)
	}
	return assignment, nil
}

// sample draws min(k, len(catalog)) distinct activities uniformly at
// random without replacement, then orders the draw by ascending
// priority, breaking ties by catalog position.
func (s *Scheduler) sample(catalog []domain.Activity, k int) []domain.Activity {
	if k > len(catalog) {
		k = len(catalog)
	}
	if k <= 0 {
		return nil
	}

	indexes := make([]int, len(catalog))
	for i := range indexes {
		indexes[i] = i
	}

	s.mu.Lock()
	// Partial Fisher-Yates: after k swaps the first k indexes are a
	// uniform sample without replacement.
	for i := 0; i < k; i++ {
		j := i + s.rnd.Intn(len(indexes)-i)
		indexes[i], indexes[j] = indexes[j], indexes[i]
	}
	s.mu.Unlock()

	picked := indexes[:k]
	sort.Slice(picked, func(a, b int) bool {
		pa, pb := catalog[picked[a]], catalog[picked[b]]
		if pa.Priority != pb.Priority {
			return pa.Priority < pb.Priority
		}
		return picked[a] < picked[b]
	})

	assignment := make([]domain.Activity, 0, k)
	for _, idx := range picked {
		assignment = append(assignment, catalog[idx])
	}
	return assignment
}
