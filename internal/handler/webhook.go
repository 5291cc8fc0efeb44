package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/payment"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/service"
)

// Event types that carry a finished checkout.
const (
	eventCheckoutCompleted     = "checkout.session.completed"
	eventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// WebhookHandler issues codes from verified payment provider events, so a
// buyer who closes the tab before the success page still gets a code.
type WebhookHandler struct {
	Secret string
	Issuer *service.Issuer
}

func NewWebhookHandler(secret string, i *service.Issuer) *WebhookHandler {
	return &WebhookHandler{Secret: secret, Issuer: i}
}

// Handle verifies the signature and issues a code for paid checkouts.
// POST /api/stripe/webhook
func (h *WebhookHandler) Handle(c echo.Context) error {
	if h.Secret == "" {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook secret not configured"})
	}
	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
	}
	ev, err := payment.ParseWebhook(payload, c.Request().Header.Get("Stripe-Signature"), h.Secret)
	if err != nil {
		if !errors.Is(err, payment.ErrBadSignature) {
			c.Logger().Warnf("webhook rejected: %v", err)
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid signature"})
	}

	if ev.Session == nil || (ev.Type != eventCheckoutCompleted && ev.Type != eventAsyncPaymentSucceeded) {
		return c.JSON(http.StatusOK, echo.Map{"received": true})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	res, err := h.Issuer.IssueConfirmed(ctx, *ev.Session, service.SourceWebhook)
	if errors.Is(err, repository.ErrPaymentNotConfirmed) {
		// Delayed payment methods complete the session before the money
		// arrives; the async_payment_succeeded event follows.
		return c.JSON(http.StatusOK, echo.Map{"received": true, "issued": false})
	}
	if err != nil {
		// A non-2xx answer makes the provider redeliver the event.
		return failure(c, err, nil)
	}
	c.Logger().Infof("webhook %s issued code for session %s (new=%t)", ev.ID, ev.Session.ID, res.IsNew)
	return c.JSON(http.StatusOK, echo.Map{"received": true, "issued": true})
}
