package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUserLocksMutualExclusion(t *testing.T) {
	locks := newUserLocks()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locks.acquire("u1")
			defer release()
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
}

func TestUserLocksRegistryShrinks(t *testing.T) {
	locks := newUserLocks()

	releaseA := locks.acquire("a")
	releaseB := locks.acquire("b")
	releaseA()

	locks.mu.Lock()
	require.Len(t, locks.locks, 1)
	locks.mu.Unlock()

	releaseB()
	locks.mu.Lock()
	require.Empty(t, locks.locks)
	locks.mu.Unlock()
}
