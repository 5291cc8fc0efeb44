// Package service composes repositories into the operations the HTTP layer
// exposes.  Gateway is the single entry point client devices use to check an
// access code and hold its session lock.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/access-gate/internal/repository"
)

// ErrMissingClientID is returned by Validate when the code exists but the
// caller did not identify itself.  A lock cannot belong to nobody.
var ErrMissingClientID = errors.New("client_id is required")

// Reason values reported to clients.
const (
	ReasonInvalidCode      = "invalid_code"
	ReasonSessionAcquired  = "session_acquired"
	ReasonSessionRefreshed = "session_refreshed"
	ReasonActiveElsewhere  = "session_active_elsewhere"
)

// ValidationResult is the outcome of Validate.  ExpiresIn is set when the
// caller holds the lock, RetryAfter when someone else does.
type ValidationResult struct {
	Valid      bool
	Reason     string
	ExpiresIn  time.Duration
	RetryAfter time.Duration
}

// CodeRegistry is the part of the code registry the gateway needs.
type CodeRegistry interface {
	Exists(ctx context.Context, code string) (bool, error)
}

// SessionLocker is the part of the session lock manager the gateway needs.
type SessionLocker interface {
	Acquire(ctx context.Context, code, clientID string, ttl time.Duration) (repository.LockResult, error)
	Release(ctx context.Context, code, clientID string) (bool, error)
}

// Gateway validates codes and arbitrates their session locks.
type Gateway struct {
	codes CodeRegistry
	locks SessionLocker
	ttl   time.Duration
}

// NewGateway builds a gateway granting locks for ttl per acquire/heartbeat.
func NewGateway(codes CodeRegistry, locks SessionLocker, ttl time.Duration) *Gateway {
	return &Gateway{codes: codes, locks: locks, ttl: ttl}
}

// LockTTL is the window granted on every successful acquire or refresh.
func (g *Gateway) LockTTL() time.Duration { return g.ttl }

// CheckExists is the lock-free variant: it only reports whether code was
// issued.
func (g *Gateway) CheckExists(ctx context.Context, code string) (bool, error) {
	return g.codes.Exists(ctx, repository.NormalizeCode(code))
}

// Validate checks that code exists, then acquires or refreshes its lock for
// clientID.  Contention is a normal result (Valid=false), not an error.
func (g *Gateway) Validate(ctx context.Context, code, clientID string) (ValidationResult, error) {
	code = repository.NormalizeCode(code)
	ok, err := g.codes.Exists(ctx, code)
	if err != nil {
		return ValidationResult{}, err
	}
	if !ok {
		return ValidationResult{Valid: false, Reason: ReasonInvalidCode}, nil
	}

	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return ValidationResult{}, ErrMissingClientID
	}

	res, err := g.locks.Acquire(ctx, code, clientID, g.ttl)
	if err != nil {
		return ValidationResult{}, err
	}
	switch res.Outcome {
	case repository.LockAcquired:
		return ValidationResult{Valid: true, Reason: ReasonSessionAcquired, ExpiresIn: res.TTL}, nil
	case repository.LockRefreshed:
		return ValidationResult{Valid: true, Reason: ReasonSessionRefreshed, ExpiresIn: res.TTL}, nil
	default:
		return ValidationResult{Valid: false, Reason: ReasonActiveElsewhere, RetryAfter: res.RetryAfter}, nil
	}
}

// Release gives up clientID's lock on code.  It reports false, without
// error, when clientID does not hold the lock.
func (g *Gateway) Release(ctx context.Context, code, clientID string) (bool, error) {
	return g.locks.Release(ctx, repository.NormalizeCode(code), strings.TrimSpace(clientID))
}
