package repository

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/access-gate/internal/store"
)

const testTTL = 90 * time.Second

func newRedisLockRepo(t *testing.T) (*SessionLockRepo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewSessionLockRepo(store.NewRedisStore(rdb)), mr
}

func TestAcquireThenContended(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRedisLockRepo(t)

	res, err := repo.Acquire(ctx, "BS-AAAAA-BBBBB", "dev-A", testTTL)
	require.NoError(t, err)
	assert.Equal(t, LockAcquired, res.Outcome)
	assert.Equal(t, "dev-A", res.Lock.ClientID)
	assert.Equal(t, testTTL, res.TTL)

	res, err = repo.Acquire(ctx, "BS-AAAAA-BBBBB", "dev-B", testTTL)
	require.NoError(t, err)
	assert.Equal(t, LockContended, res.Outcome)
	assert.Equal(t, "dev-A", res.Lock.ClientID)
	assert.Greater(t, res.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, res.RetryAfter, testTTL)
}

func TestRefreshPreservesAcquiredAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	mem := store.NewMemoryStore().WithClock(func() time.Time { return now })
	repo := NewSessionLockRepo(mem).WithClock(func() time.Time { return now })

	first, err := repo.Acquire(ctx, "C", "dev-A", testTTL)
	require.NoError(t, err)
	require.Equal(t, LockAcquired, first.Outcome)

	for i := 0; i < 5; i++ {
		now = now.Add(60 * time.Second) // always inside the window
		res, err := repo.Acquire(ctx, "C", "dev-A", testTTL)
		require.NoError(t, err)
		assert.Equal(t, LockRefreshed, res.Outcome)
		assert.Equal(t, first.Lock.AcquiredAt, res.Lock.AcquiredAt)
		assert.Equal(t, now, res.Lock.LastSeenAt)

		left, known, err := mem.TTL(ctx, "active_session:C")
		require.NoError(t, err)
		assert.True(t, known)
		assert.Equal(t, testTTL, left)
	}
}

func TestReleaseIsOwnerGated(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRedisLockRepo(t)

	_, err := repo.Acquire(ctx, "C", "dev-A", testTTL)
	require.NoError(t, err)

	released, err := repo.Release(ctx, "C", "dev-B")
	require.NoError(t, err)
	assert.False(t, released)

	held, _, err := repo.Inspect(ctx, "C")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, "dev-A", held.ClientID)

	released, err = repo.Release(ctx, "C", "dev-A")
	require.NoError(t, err)
	assert.True(t, released)

	res, err := repo.Acquire(ctx, "C", "dev-B", testTTL)
	require.NoError(t, err)
	assert.Equal(t, LockAcquired, res.Outcome)
}

func TestReleaseWithoutLockIsNoop(t *testing.T) {
	repo, _ := newRedisLockRepo(t)
	released, err := repo.Release(context.Background(), "C", "dev-A")
	require.NoError(t, err)
	assert.False(t, released)
}

func TestExpiryReclaims(t *testing.T) {
	ctx := context.Background()
	repo, mr := newRedisLockRepo(t)

	_, err := repo.Acquire(ctx, "C", "dev-A", 30*time.Second)
	require.NoError(t, err)

	mr.FastForward(31 * time.Second)

	res, err := repo.Acquire(ctx, "C", "dev-B", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, LockAcquired, res.Outcome)
}

func TestContendedFallsBackToFullWindow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	// A lock written without expiry reports an unknown TTL.
	_, err := mem.Set(ctx, "active_session:C", `{"client_id":"dev-A"}`, store.SetOptions{})
	require.NoError(t, err)

	res, err := NewSessionLockRepo(mem).Acquire(ctx, "C", "dev-B", testTTL)
	require.NoError(t, err)
	assert.Equal(t, LockContended, res.Outcome)
	assert.Equal(t, testTTL, res.RetryAfter)
}

func TestConcurrentAcquireHasSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRedisLockRepo(t)

	clients := []string{"dev-A", "dev-B", "dev-C", "dev-D", "dev-E", "dev-F", "dev-G", "dev-H"}
	outcomes := make([]LockOutcome, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c string) {
			defer wg.Done()
			res, err := repo.Acquire(ctx, "C", c, testTTL)
			if err == nil {
				outcomes[i] = res.Outcome
			}
		}(i, c)
	}
	wg.Wait()

	acquired, contended := 0, 0
	for _, o := range outcomes {
		switch o {
		case LockAcquired:
			acquired++
		case LockContended:
			contended++
		}
	}
	assert.Equal(t, 1, acquired)
	assert.Equal(t, len(clients)-1, contended)
}

func TestForceRelease(t *testing.T) {
	ctx := context.Background()
	repo, _ := newRedisLockRepo(t)
	_, err := repo.Acquire(ctx, "C", "dev-A", testTTL)
	require.NoError(t, err)

	ok, err := repo.ForceRelease(ctx, "C")
	require.NoError(t, err)
	assert.True(t, ok)

	lock, _, err := repo.Inspect(ctx, "C")
	require.NoError(t, err)
	assert.Nil(t, lock)
}

func TestLockOutcomeString(t *testing.T) {
	assert.Equal(t, "acquired", LockAcquired.String())
	assert.Equal(t, "refreshed", LockRefreshed.String())
	assert.Equal(t, "contended", LockContended.String())
	assert.Equal(t, "unknown", LockOutcome(0).String())
}

// takeoverStore hands the first lock read the caller's own record, then lets
// another client take the key over before the caller writes back.
type takeoverStore struct {
	store.Store
	taken bool
}

func (s *takeoverStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := s.Store.Get(ctx, key)
	if err == nil && ok && !s.taken && strings.HasPrefix(key, "active_session:") {
		s.taken = true
		_, _ = s.Store.Set(ctx, key, `{"client_id":"dev-B"}`, store.SetOptions{TTL: testTTL})
	}
	return v, ok, err
}

func TestRefreshNeverOverwritesNewHolder(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	_, err := NewSessionLockRepo(mem).Acquire(ctx, "C", "dev-A", testTTL)
	require.NoError(t, err)

	res, err := NewSessionLockRepo(&takeoverStore{Store: mem}).Acquire(ctx, "C", "dev-A", testTTL)
	require.NoError(t, err)
	assert.Equal(t, LockContended, res.Outcome)
	assert.Equal(t, "dev-B", res.Lock.ClientID)

	held, _, err := NewSessionLockRepo(mem).Inspect(ctx, "C")
	require.NoError(t, err)
	require.NotNil(t, held)
	assert.Equal(t, "dev-B", held.ClientID)
}
