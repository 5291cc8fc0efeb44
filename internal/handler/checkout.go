package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/service"
)

// CheckoutHandler opens hosted checkout sessions for the product.
type CheckoutHandler struct {
	Service   *service.CheckoutService
	SecretKey string
	PriceID   string
	BaseURL   string // used when the request carries no Origin header
}

func NewCheckoutHandler(s *service.CheckoutService, secretKey, priceID, baseURL string) *CheckoutHandler {
	return &CheckoutHandler{Service: s, SecretKey: secretKey, PriceID: priceID, BaseURL: baseURL}
}

// SecretKeyLooksValid reports whether key has a Stripe secret key prefix.
func SecretKeyLooksValid(key string) bool {
	return strings.HasPrefix(key, "sk_test_") || strings.HasPrefix(key, "sk_live_")
}

// PriceIDLooksValid reports whether id has a Stripe price prefix.
func PriceIDLooksValid(id string) bool { return strings.HasPrefix(id, "price_") }

// Create answers {url, mode, retried}.
// POST /api/create-checkout-session
func (h *CheckoutHandler) Create(c echo.Context) error {
	var problems []string
	if !SecretKeyLooksValid(h.SecretKey) {
		problems = append(problems, "STRIPE_SECRET_KEY must start with sk_test_ or sk_live_")
	}
	if !PriceIDLooksValid(h.PriceID) {
		problems = append(problems, "STRIPE_PRICE_ID must start with price_")
	}
	if len(problems) > 0 || h.Service == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stripe not configured", "details": problems})
	}

	base := resolveBaseURL(c.Request().Header.Get(echo.HeaderOrigin), h.BaseURL)
	if base == "" {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "base url not configured"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	res, err := h.Service.CreateCheckout(ctx, base)
	if err != nil {
		c.Logger().Errorf("checkout creation failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "checkout creation failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"url": res.URL, "mode": res.Mode, "retried": res.Retried})
}

// resolveBaseURL picks the first of origin and fallback, strips trailing
// slashes and accepts only http(s) URLs.
func resolveBaseURL(origin, fallback string) string {
	base := strings.TrimSpace(origin)
	if base == "" || base == "null" {
		base = strings.TrimSpace(fallback)
	}
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return ""
	}
	return base
}
