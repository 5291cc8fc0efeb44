package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider implements Provider with the official Stripe client.
type StripeProvider struct {
	sc *client.API
}

// NewStripeProvider returns a provider authenticated with secretKey.
func NewStripeProvider(secretKey string) *StripeProvider {
	return &StripeProvider{sc: client.New(secretKey, nil)}
}

// newStripeProviderWithBackend routes every call through b.
func newStripeProviderWithBackend(secretKey string, b stripe.Backend) *StripeProvider {
	return &StripeProvider{sc: client.New(secretKey, &stripe.Backends{API: b, Connect: b, Uploads: b})}
}

// CheckoutSession retrieves a session.  Paid follows the provider: a
// payment_status of "paid" or a session status of "complete".
func (p *StripeProvider) CheckoutSession(ctx context.Context, id string) (Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := p.sc.CheckoutSessions.Get(id, params)
	if err != nil {
		return Session{}, translate(err)
	}
	return sessionFrom(s), nil
}

func (p *StripeProvider) CreateCheckout(ctx context.Context, cp CheckoutParams) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(cp.Mode),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(cp.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL:               stripe.String(cp.SuccessURL),
		CancelURL:                stripe.String(cp.CancelURL),
		BillingAddressCollection: stripe.String(string(stripe.CheckoutSessionBillingAddressCollectionAuto)),
		AllowPromotionCodes:      stripe.Bool(true),
	}
	params.Context = ctx
	s, err := p.sc.CheckoutSessions.New(params)
	if err != nil {
		return "", translate(err)
	}
	return s.URL, nil
}

func (p *StripeProvider) Price(ctx context.Context, id string) (Price, error) {
	params := &stripe.PriceParams{}
	params.Context = ctx
	pr, err := p.sc.Prices.Get(id, params)
	if err != nil {
		return Price{}, translate(err)
	}
	return Price{Active: pr.Active, Type: string(pr.Type), Recurring: pr.Recurring != nil}, nil
}

// Account checks that the key is accepted by fetching the account it
// belongs to.
// The account client's Get takes no params, so the call is issued on its
// backend directly to carry ctx.
func (p *StripeProvider) Account(ctx context.Context) error {
	params := &stripe.AccountParams{}
	params.Context = ctx
	acct := &stripe.Account{}
	if err := p.sc.Accounts.B.Call(http.MethodGet, "/v1/account", p.sc.Accounts.Key, params, acct); err != nil {
		return translate(err)
	}
	return nil
}

// ParseWebhook verifies a webhook delivery signed with secret and decodes
// checkout session events.  Events built for another API version are still
// accepted: only the session fields read below are used.
func ParseWebhook(payload []byte, sigHeader, secret string) (Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	out := Event{ID: ev.ID, Type: string(ev.Type)}
	if ev.Data == nil || len(ev.Data.Raw) == 0 {
		return out, nil
	}
	if ev.Data.Object != nil {
		if obj, _ := ev.Data.Object["object"].(string); obj != "checkout.session" {
			return out, nil
		}
	}
	var s stripe.CheckoutSession
	if err := json.Unmarshal(ev.Data.Raw, &s); err != nil {
		return Event{}, fmt.Errorf("decode checkout session: %w", err)
	}
	sess := sessionFrom(&s)
	out.Session = &sess
	return out, nil
}

func sessionFrom(s *stripe.CheckoutSession) Session {
	out := Session{
		ID:   s.ID,
		Paid: s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid || s.Status == stripe.CheckoutSessionStatusComplete,
	}
	if s.CustomerDetails != nil {
		out.Email = s.CustomerDetails.Email
	}
	return out
}

// translate turns a Stripe client error into *Error so callers never see
// the client's types.
func translate(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &Error{Message: se.Msg, Type: string(se.Type), Code: string(se.Code)}
	}
	return &Error{Message: err.Error(), Type: "transport"}
}
