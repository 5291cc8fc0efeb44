package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/iliyamo/access-gate/internal/model"
	"github.com/iliyamo/access-gate/internal/store"
)

const lockKeyPrefix = "active_session:"

// LockOutcome is the result of an Acquire call.
type LockOutcome int

const (
	LockAcquired  LockOutcome = iota + 1 // the caller created the lock
	LockRefreshed                        // the caller already held it; TTL reset
	LockContended                        // another client holds it
)

func (o LockOutcome) String() string {
	switch o {
	case LockAcquired:
		return "acquired"
	case LockRefreshed:
		return "refreshed"
	case LockContended:
		return "contended"
	}
	return "unknown"
}

// LockResult describes the lock after an Acquire.  Lock is the record as
// written (Acquired/Refreshed) or as found (Contended).  RetryAfter is set
// only for LockContended.
type LockResult struct {
	Outcome    LockOutcome
	Lock       model.SessionLock
	TTL        time.Duration
	RetryAfter time.Duration
}

// SessionLockRepo keeps at most one active holder per access code under
// active_session:<CODE>.  Mutual exclusion comes from the store's conditional
// create.  A refresh is a compare-and-set against the record the owner just
// read, so it never overwrites a lock another client took in between.
// Release is an owner-gated read then delete.
type SessionLockRepo struct {
	store store.Store
	now   func() time.Time
}

// NewSessionLockRepo binds the lock manager to a store.
func NewSessionLockRepo(s store.Store) *SessionLockRepo {
	return &SessionLockRepo{store: s, now: time.Now}
}

// WithClock replaces the time source used for acquired_at/last_seen_at.
func (r *SessionLockRepo) WithClock(now func() time.Time) *SessionLockRepo {
	r.now = now
	return r
}

func lockKey(code string) string { return lockKeyPrefix + code }

// maxAcquireRounds bounds the create/read loop when a lock keeps vanishing
// between the failed create and the read (expiry or release racing us).
const maxAcquireRounds = 3

// Acquire claims code for clientID, refreshes the claim if clientID already
// holds it, or reports contention with the time left on the other claim.
func (r *SessionLockRepo) Acquire(ctx context.Context, code, clientID string, ttl time.Duration) (LockResult, error) {
	key := lockKey(code)
	for round := 0; round < maxAcquireRounds; round++ {
		now := r.now().UTC()
		fresh := model.SessionLock{ClientID: clientID, AcquiredAt: now, LastSeenAt: now}
		payload, err := json.Marshal(fresh)
		if err != nil {
			return LockResult{}, err
		}
		created, err := r.store.Set(ctx, key, string(payload), store.SetOptions{TTL: ttl, OnlyIfAbsent: true})
		if err != nil {
			return LockResult{}, err
		}
		if created {
			return LockResult{Outcome: LockAcquired, Lock: fresh, TTL: ttl}, nil
		}

		cur, raw, found, err := r.read(ctx, key)
		if err != nil {
			return LockResult{}, err
		}
		if !found {
			continue
		}

		if cur.ClientID == clientID {
			cur.LastSeenAt = now
			payload, err := json.Marshal(cur)
			if err != nil {
				return LockResult{}, err
			}
			swapped, err := r.store.Swap(ctx, key, raw, string(payload), ttl)
			if err != nil {
				return LockResult{}, err
			}
			if !swapped {
				// Expired, released or taken over since the read.
				continue
			}
			return LockResult{Outcome: LockRefreshed, Lock: cur, TTL: ttl}, nil
		}

		return LockResult{Outcome: LockContended, Lock: cur, RetryAfter: r.remaining(ctx, key, ttl)}, nil
	}
	return LockResult{Outcome: LockContended, RetryAfter: ttl}, nil
}

// remaining returns the time left on key, falling back to the full window
// when the store cannot tell.
func (r *SessionLockRepo) remaining(ctx context.Context, key string, window time.Duration) time.Duration {
	d, known, err := r.store.TTL(ctx, key)
	if err != nil || !known || d <= 0 {
		return window
	}
	return d
}

// Release deletes the lock on code if clientID owns it and reports whether a
// deletion happened.  A non-owner or stale caller gets false, never an error.
func (r *SessionLockRepo) Release(ctx context.Context, code, clientID string) (bool, error) {
	key := lockKey(code)
	cur, _, found, err := r.read(ctx, key)
	if err != nil {
		return false, err
	}
	if !found || cur.ClientID != clientID {
		return false, nil
	}
	if err := r.store.Del(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// Inspect returns the current lock on code and its remaining lifetime, or nil
// when the code is not held.
func (r *SessionLockRepo) Inspect(ctx context.Context, code string) (*model.SessionLock, time.Duration, error) {
	key := lockKey(code)
	cur, _, found, err := r.read(ctx, key)
	if err != nil || !found {
		return nil, 0, err
	}
	d, _, err := r.store.TTL(ctx, key)
	if err != nil {
		return nil, 0, err
	}
	return &cur, d, nil
}

// ForceRelease drops the lock regardless of owner.  Operator use only.
func (r *SessionLockRepo) ForceRelease(ctx context.Context, code string) (bool, error) {
	key := lockKey(code)
	_, _, found, err := r.read(ctx, key)
	if err != nil || !found {
		return false, err
	}
	if err := r.store.Del(ctx, key); err != nil {
		return false, err
	}
	return true, nil
}

// read loads and decodes the lock, returning the stored text alongside it
// for compare-and-set.  A record that cannot be decoded is reported as held
// by nobody in particular, so it blocks every client until it expires rather
// than being handed to whoever asks first.
func (r *SessionLockRepo) read(ctx context.Context, key string) (model.SessionLock, string, bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil || !ok {
		return model.SessionLock{}, "", false, err
	}
	var l model.SessionLock
	if err := json.Unmarshal([]byte(raw), &l); err != nil {
		return model.SessionLock{ClientID: ""}, raw, true, nil
	}
	l.ClientID = strings.TrimSpace(l.ClientID)
	return l, raw, true, nil
}
