package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/middleware"
	"github.com/iliyamo/access-gate/internal/service"
)

// storeTimeout bounds the store round trips of a single request.
const storeTimeout = 10 * time.Second

// AccessCodeHandler exposes issuance and validation of access codes.
type AccessCodeHandler struct {
	Issuer  *service.Issuer
	Gateway *service.Gateway
}

func NewAccessCodeHandler(i *service.Issuer, g *service.Gateway) *AccessCodeHandler {
	return &AccessCodeHandler{Issuer: i, Gateway: g}
}

type issueReq struct {
	SessionID string `json:"session_id"`
}

type codeReq struct {
	Code     string `json:"code"`
	ClientID string `json:"client_id"`
}

// clientID prefers the body field and falls back to the X-Client-Id header.
func (r codeReq) clientID(c echo.Context) string {
	if id := strings.TrimSpace(r.ClientID); id != "" {
		return id
	}
	return strings.TrimSpace(c.Request().Header.Get(middleware.HeaderClientID))
}

// Issue redeems a paid checkout session for its access code.
// POST /api/issue-access-code {session_id} -> {code, existing}
func (h *AccessCodeHandler) Issue(c echo.Context) error {
	req := decodeLoose[issueReq](c)
	if strings.TrimSpace(req.SessionID) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing session_id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 20*time.Second)
	defer cancel()

	res, err := h.Issuer.RedeemCheckout(ctx, req.SessionID)
	if err != nil {
		return failure(c, err, nil)
	}
	return c.JSON(http.StatusOK, echo.Map{"code": res.Code, "existing": !res.IsNew})
}

// Check reports whether a code was issued, without touching its lock.
// POST /api/check-code {code} -> {valid}
func (h *AccessCodeHandler) Check(c echo.Context) error {
	req := decodeLoose[codeReq](c)
	if strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"valid": false, "error": "missing code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	ok, err := h.Gateway.CheckExists(ctx, req.Code)
	if err != nil {
		return failure(c, err, echo.Map{"valid": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": ok})
}

// Validate checks a code and acquires or refreshes its session lock for
// the calling device.  Devices call it again as a heartbeat before
// expires_in elapses.
// POST /api/validate-code {code, client_id}
func (h *AccessCodeHandler) Validate(c echo.Context) error {
	req := decodeLoose[codeReq](c)
	if strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"valid": false, "error": "missing code"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	res, err := h.Gateway.Validate(ctx, req.Code, req.clientID(c))
	if err != nil {
		return failure(c, err, echo.Map{"valid": false})
	}

	body := echo.Map{"valid": res.Valid, "reason": res.Reason}
	switch res.Reason {
	case service.ReasonSessionAcquired, service.ReasonSessionRefreshed:
		body["expires_in"] = seconds(res.ExpiresIn)
	case service.ReasonActiveElsewhere:
		retry := seconds(res.RetryAfter)
		if retry < 1 {
			retry = 1
		}
		body["retry_after_seconds"] = retry
	}
	return c.JSON(http.StatusOK, body)
}

// Release gives up the caller's lock.  Releasing a lock held by someone
// else, or no lock at all, answers released=false.
// POST /api/release-code-session {code, client_id} -> {ok, released}
func (h *AccessCodeHandler) Release(c echo.Context) error {
	req := decodeLoose[codeReq](c)
	clientID := req.clientID(c)
	if strings.TrimSpace(req.Code) == "" || clientID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "missing code or client_id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	released, err := h.Gateway.Release(ctx, req.Code, clientID)
	if err != nil {
		return failure(c, err, echo.Map{"ok": false})
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true, "released": released})
}
