package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/config"
	"github.com/iliyamo/access-gate/internal/payment"
	"github.com/iliyamo/access-gate/internal/store"
)

// Health is the liveness probe used by load balancers.  It returns a plain
// text "ok" with a 200 status code.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// HealthHandler reports which collaborators are configured and reachable.
type HealthHandler struct {
	Cfg      config.Config
	Store    store.Store      // nil when the backend could not be built
	Payments payment.Provider // nil without a Stripe secret
}

func NewHealthHandler(cfg config.Config, s store.Store, p payment.Provider) *HealthHandler {
	return &HealthHandler{Cfg: cfg, Store: s, Payments: p}
}

// Report always answers 200; "ok" summarises whether the paid flow can run.
// GET /api/health
func (h *HealthHandler) Report(c echo.Context) error {
	cfg := h.Cfg
	storeURL, storeToken := h.Store != nil, h.Store != nil
	if cfg.StoreBackend == config.BackendREST {
		storeURL, storeToken = cfg.KVRestURL != "", cfg.KVRestToken != ""
	}

	body := echo.Map{
		"stripe_secret":        cfg.StripeSecret != "",
		"stripe_secret_format": SecretKeyLooksValid(cfg.StripeSecret),
		"stripe_price":         cfg.StripePriceID != "",
		"stripe_price_format":  PriceIDLooksValid(cfg.StripePriceID),
		"redis_url":            storeURL,
		"redis_token":          storeToken,
		"app_base_url":         cfg.AppBaseURL != "",
		"store_backend":        cfg.StoreBackend,
		"store_ok":             false,
		"stripe_api_ok":        false,
		"stripe_price_exists":  false,
	}
	body["ok"] = cfg.StripeSecret != "" && cfg.StripePriceID != "" && storeURL && storeToken

	ctx, cancel := context.WithTimeout(c.Request().Context(), 8*time.Second)
	defer cancel()

	if h.Store != nil {
		if err := h.Store.Ping(ctx); err == nil {
			body["store_ok"] = true
		} else {
			c.Logger().Warnf("health: store ping failed: %v", err)
		}
	}

	if h.Payments != nil && SecretKeyLooksValid(cfg.StripeSecret) {
		if err := h.Payments.Account(ctx); err != nil {
			body["stripe_error"] = providerMessage(err)
		} else {
			body["stripe_api_ok"] = true
			if PriceIDLooksValid(cfg.StripePriceID) {
				price, err := h.Payments.Price(ctx, cfg.StripePriceID)
				if err != nil {
					body["stripe_error"] = providerMessage(err)
				} else {
					body["stripe_price_exists"] = true
					body["stripe_price_active"] = price.Active
					body["stripe_price_type"] = price.Type
					body["stripe_price_recurring"] = price.Recurring
				}
			}
		}
	}
	return c.JSON(http.StatusOK, body)
}

// providerMessage returns the provider's own message, which names the
// misconfiguration (unknown price, revoked key) without internal details.
func providerMessage(err error) string {
	var pe *payment.Error
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return "stripe request failed"
}
