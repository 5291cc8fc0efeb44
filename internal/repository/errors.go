// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. Failures of
// the key-value store itself surface as store.ErrUnavailable and are not
// redeclared here.
package repository

import "errors"

// ErrPaymentNotConfirmed is returned by CodeRepo.Issue when the payment
// provider has not reported the checkout session as paid. Handlers should
// translate this into an HTTP 402 response.
var ErrPaymentNotConfirmed = errors.New("payment not confirmed")

// ErrMissingSessionID is returned when an issuance request carries no
// checkout session identifier. Handlers should translate this into an
// HTTP 400 response.
var ErrMissingSessionID = errors.New("session_id is required")

// ErrCodeSpaceExhausted is returned when every generated candidate collided
// with an existing code.
var ErrCodeSpaceExhausted = errors.New("could not allocate a unique access code")

// ErrCodeNotFound is returned by lookups for a code that was never issued.
var ErrCodeNotFound = errors.New("access code not found")

// ErrSessionIndexConflict is returned when the session index could neither be
// created nor read back, so no code can be bound to the session.
var ErrSessionIndexConflict = errors.New("could not bind access code to session")
