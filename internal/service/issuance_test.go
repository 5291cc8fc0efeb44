package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/access-gate/internal/payment"
	q "github.com/iliyamo/access-gate/internal/queue"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/store"
)

type fakeSessions map[string]payment.Session

func (f fakeSessions) CheckoutSession(_ context.Context, id string) (payment.Session, error) {
	s, ok := f[id]
	if !ok {
		return payment.Session{}, &payment.Error{Message: "No such checkout.session: " + id, Type: "invalid_request_error"}
	}
	return s, nil
}

type chanPublisher struct {
	events chan q.CodeIssuedEvent
}

func newChanPublisher() *chanPublisher {
	return &chanPublisher{events: make(chan q.CodeIssuedEvent, 8)}
}

func (p *chanPublisher) PublishCodeIssued(_ context.Context, ev q.CodeIssuedEvent) error {
	p.events <- ev
	return nil
}

func TestRedeemCheckoutPublishesOnlyNewCodes(t *testing.T) {
	ctx := context.Background()
	pub := newChanPublisher()
	sessions := fakeSessions{"cs_paid": {ID: "cs_paid", Paid: true, Email: "a@example.com"}}
	issuer := NewIssuer(sessions, repository.NewCodeRepo(store.NewMemoryStore(), "BS"), pub)

	first, err := issuer.RedeemCheckout(ctx, "cs_paid")
	require.NoError(t, err)
	assert.True(t, first.IsNew)

	select {
	case ev := <-pub.events:
		assert.Equal(t, first.Code, ev.Code)
		assert.Equal(t, "cs_paid", ev.SessionID)
		assert.Equal(t, "a@example.com", ev.Email)
		assert.Equal(t, SourceCheckout, ev.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no event published for a new code")
	}

	second, err := issuer.RedeemCheckout(ctx, " cs_paid ")
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.Code, second.Code)

	select {
	case ev := <-pub.events:
		t.Fatalf("unexpected event for replay: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedeemCheckoutErrors(t *testing.T) {
	ctx := context.Background()
	sessions := fakeSessions{"cs_open": {ID: "cs_open", Paid: false}}
	issuer := NewIssuer(sessions, repository.NewCodeRepo(store.NewMemoryStore(), "BS"), nil)

	_, err := issuer.RedeemCheckout(ctx, "")
	assert.True(t, errors.Is(err, repository.ErrMissingSessionID))

	_, err = issuer.RedeemCheckout(ctx, "cs_open")
	assert.True(t, errors.Is(err, repository.ErrPaymentNotConfirmed))

	_, err = issuer.RedeemCheckout(ctx, "cs_unknown")
	assert.True(t, errors.Is(err, payment.ErrUpstream))
}

func TestIssueConfirmedFromWebhook(t *testing.T) {
	ctx := context.Background()
	pub := newChanPublisher()
	issuer := NewIssuer(fakeSessions{}, repository.NewCodeRepo(store.NewMemoryStore(), "BS"), pub)

	res, err := issuer.IssueConfirmed(ctx, payment.Session{ID: "cs_hook", Paid: true}, SourceWebhook)
	require.NoError(t, err)
	assert.True(t, res.IsNew)

	ev := <-pub.events
	assert.Equal(t, SourceWebhook, ev.Source)

	// Redelivery of the same event is idempotent.
	again, err := issuer.IssueConfirmed(ctx, payment.Session{ID: "cs_hook", Paid: true}, SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, res.Code, again.Code)
	assert.False(t, again.IsNew)
}

func TestRedeemCheckoutWithoutProvider(t *testing.T) {
	issuer := NewIssuer(nil, repository.NewCodeRepo(store.NewMemoryStore(), "BS"), nil)
	_, err := issuer.RedeemCheckout(context.Background(), "cs_1")
	assert.True(t, errors.Is(err, ErrPaymentsNotConfigured))
}
