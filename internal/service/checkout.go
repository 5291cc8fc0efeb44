package service

import (
	"context"
	"errors"
	"strings"

	"github.com/iliyamo/access-gate/internal/payment"
)

// CheckoutResult is returned by CreateCheckout.  Retried reports that the
// first mode was rejected and the other one succeeded.
type CheckoutResult struct {
	URL     string
	Mode    string
	Retried bool
}

// CheckoutService creates hosted checkout sessions for the single product.
type CheckoutService struct {
	provider payment.Provider
	priceID  string
	mode     string // configured preference; empty means detect
}

func NewCheckoutService(p payment.Provider, priceID, mode string) *CheckoutService {
	return &CheckoutService{provider: p, priceID: priceID, mode: strings.ToLower(strings.TrimSpace(mode))}
}

// CreateCheckout opens a session returning to baseURL.  When the provider
// rejects the mode (one-time price in subscription mode or the reverse) it
// retries once with the other mode.
func (s *CheckoutService) CreateCheckout(ctx context.Context, baseURL string) (CheckoutResult, error) {
	preferred := s.preferredMode(ctx)
	params := payment.CheckoutParams{
		PriceID:    s.priceID,
		Mode:       preferred,
		SuccessURL: baseURL + "/success.html?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  baseURL + "/index.html?checkout=cancel",
	}

	url, err := s.provider.CreateCheckout(ctx, params)
	if err == nil {
		return CheckoutResult{URL: url, Mode: preferred}, nil
	}
	if !LooksLikeModeMismatch(err) {
		return CheckoutResult{}, err
	}

	params.Mode = otherMode(preferred)
	url, err = s.provider.CreateCheckout(ctx, params)
	if err != nil {
		return CheckoutResult{}, err
	}
	return CheckoutResult{URL: url, Mode: params.Mode, Retried: true}, nil
}

// preferredMode uses the configured mode when valid, otherwise asks the
// provider whether the price is recurring.  A failed lookup falls back to
// payment and leaves the decision to the retry.
func (s *CheckoutService) preferredMode(ctx context.Context) string {
	if s.mode == payment.ModePayment || s.mode == payment.ModeSubscription {
		return s.mode
	}
	price, err := s.provider.Price(ctx, s.priceID)
	if err == nil && price.Recurring {
		return payment.ModeSubscription
	}
	return payment.ModePayment
}

func otherMode(m string) string {
	if m == payment.ModePayment {
		return payment.ModeSubscription
	}
	return payment.ModePayment
}

// LooksLikeModeMismatch reports whether a provider error complains about
// the checkout mode rather than anything else.
func LooksLikeModeMismatch(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	var pe *payment.Error
	if errors.As(err, &pe) {
		msg = strings.ToLower(pe.Message)
	}
	for _, hint := range []string{"recurring", "one-time", "one time", "mode", "subscription", "payment mode"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
