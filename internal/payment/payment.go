// Package payment is the boundary to the payment provider.  The rest of the
// service only needs to know whether a checkout session is paid, to create
// new checkout sessions and to probe the provider for the health report.
package payment

import (
	"context"
	"errors"
	"fmt"
)

// ErrUpstream is wrapped by every failure coming from the provider.
var ErrUpstream = errors.New("payment provider unavailable")

// ErrBadSignature is returned by webhook parsing when the signature header
// does not match the payload.
var ErrBadSignature = errors.New("invalid webhook signature")

// Error carries the provider's own description of a failed call.
type Error struct {
	Message string
	Type    string
	Code    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s/%s)", e.Message, e.Type, e.Code)
	}
	return e.Message
}

// Unwrap lets callers test provider failures with errors.Is(err, ErrUpstream).
func (e *Error) Unwrap() error { return ErrUpstream }

// Session is the subset of a checkout session the registry cares about.
type Session struct {
	ID    string
	Paid  bool
	Email string
}

// Checkout modes accepted by the provider.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// CheckoutParams describes a one-item checkout session.
type CheckoutParams struct {
	PriceID    string
	Mode       string
	SuccessURL string
	CancelURL  string
}

// Price is what the health probe and mode detection read from a price.
type Price struct {
	Active    bool
	Type      string
	Recurring bool
}

// Event is a verified webhook delivery.  Session is set for checkout events.
type Event struct {
	ID      string
	Type    string
	Session *Session
}

// Provider is implemented by StripeProvider and by test fakes.
type Provider interface {
	CheckoutSession(ctx context.Context, id string) (Session, error)
	CreateCheckout(ctx context.Context, p CheckoutParams) (url string, err error)
	Price(ctx context.Context, id string) (Price, error)
	Account(ctx context.Context) error
}
