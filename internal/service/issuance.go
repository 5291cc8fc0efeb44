package service

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/iliyamo/access-gate/internal/payment"
	q "github.com/iliyamo/access-gate/internal/queue"
	"github.com/iliyamo/access-gate/internal/repository"
)

// Issuance sources recorded on published events.
const (
	SourceCheckout = "checkout"
	SourceWebhook  = "webhook"
)

// ErrPaymentsNotConfigured is returned by RedeemCheckout when the service
// runs without payment provider credentials.
var ErrPaymentsNotConfigured = errors.New("payment provider not configured")

// SessionReader is the part of the payment provider issuance needs.
type SessionReader interface {
	CheckoutSession(ctx context.Context, id string) (payment.Session, error)
}

// EventPublisher is implemented by *Publisher.
type EventPublisher interface {
	PublishCodeIssued(ctx context.Context, event q.CodeIssuedEvent) error
}

// Issuer redeems paid checkout sessions for access codes.
type Issuer struct {
	payments SessionReader
	codes    *repository.CodeRepo
	events   EventPublisher
}

func NewIssuer(payments SessionReader, codes *repository.CodeRepo, events EventPublisher) *Issuer {
	return &Issuer{payments: payments, codes: codes, events: events}
}

// RedeemCheckout asks the provider about sessionID and issues (or returns
// the already issued) code when it is paid.
func (i *Issuer) RedeemCheckout(ctx context.Context, sessionID string) (repository.IssueResult, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return repository.IssueResult{}, repository.ErrMissingSessionID
	}
	if i.payments == nil {
		return repository.IssueResult{}, ErrPaymentsNotConfigured
	}
	sess, err := i.payments.CheckoutSession(ctx, sessionID)
	if err != nil {
		return repository.IssueResult{}, err
	}
	if sess.ID == "" {
		sess.ID = sessionID
	}
	return i.IssueConfirmed(ctx, sess, SourceCheckout)
}

// IssueConfirmed issues a code for a session whose payment status is already
// known, as delivered by a verified webhook.
func (i *Issuer) IssueConfirmed(ctx context.Context, sess payment.Session, source string) (repository.IssueResult, error) {
	res, err := i.codes.Issue(ctx, sess.ID, sess.Paid, repository.IssueMetadata{Email: sess.Email})
	if err != nil {
		return repository.IssueResult{}, err
	}
	if res.IsNew && i.events != nil {
		ev := q.CodeIssuedEvent{
			Code:      res.Code,
			SessionID: sess.ID,
			Email:     sess.Email,
			Source:    source,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := i.events.PublishCodeIssued(ctx, ev); err != nil {
				log.Printf("issuance: publish %s failed: %v", ev.Code, err)
			}
		}()
	}
	return res, nil
}
