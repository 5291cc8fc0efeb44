package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/config"
	"github.com/iliyamo/access-gate/internal/model"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/utils"
)

// AdminHandler bundles dependencies for the support endpoints.
type AdminHandler struct {
	Cfg   config.Config
	Codes *repository.CodeRepo
	Locks *repository.SessionLockRepo
	Audit *repository.AuditRepo // nil without a database
}

func NewAdminHandler(cfg config.Config, codes *repository.CodeRepo, locks *repository.SessionLockRepo, audit *repository.AuditRepo) *AdminHandler {
	return &AdminHandler{Cfg: cfg, Codes: codes, Locks: locks, Audit: audit}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResp struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type lockResp struct {
	ClientID   string    `json:"client_id"`
	AcquiredAt time.Time `json:"acquired_at"`
	LastSeenAt time.Time `json:"last_seen_at"`
	ExpiresIn  int64     `json:"expires_in"`
}

type codeResp struct {
	model.AccessCode
	Lock *lockResp `json:"lock"`
}

// Login: verify the configured admin credentials and return a token.
func (h *AdminHandler) Login(c echo.Context) error {
	if !h.Cfg.AdminConfigured() {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "admin login not configured"})
	}
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}
	// Always run bcrypt so a wrong email costs the same as a wrong password.
	okPassword := utils.VerifyPassword(h.Cfg.AdminPasswordHash, req.Password)
	if email != strings.ToLower(h.Cfg.AdminEmail) || !okPassword {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	tok, err := utils.NewAdminToken(h.Cfg.JWTSecret, email, h.Cfg.AdminTokenTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(http.StatusOK, tokenResp{Token: tok.Token, Expires: tok.Exp})
}

// GetCode returns the issuance record of a code and its current lock.
// GET /api/admin/codes/:code
func (h *AdminHandler) GetCode(c echo.Context) error {
	code := repository.NormalizeCode(c.Param("code"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	rec, err := h.Codes.Lookup(ctx, code)
	if errors.Is(err, repository.ErrCodeNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "code not found"})
	}
	if err != nil {
		return failure(c, err, nil)
	}

	resp := codeResp{AccessCode: *rec}
	lock, ttl, err := h.Locks.Inspect(ctx, code)
	if err != nil {
		return failure(c, err, nil)
	}
	if lock != nil {
		resp.Lock = &lockResp{
			ClientID:   lock.ClientID,
			AcquiredAt: lock.AcquiredAt,
			LastSeenAt: lock.LastSeenAt,
			ExpiresIn:  seconds(ttl),
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// ReleaseSession drops the lock of a code whatever device holds it, for
// customers whose device died mid-session.
// DELETE /api/admin/codes/:code/session
func (h *AdminHandler) ReleaseSession(c echo.Context) error {
	code := repository.NormalizeCode(c.Param("code"))
	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	released, err := h.Locks.ForceRelease(ctx, code)
	if err != nil {
		return failure(c, err, nil)
	}
	c.Logger().Infof("admin %v force-released session of %s (released=%t)", c.Get("admin_email"), code, released)
	return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Stats counts codes recorded by the audit ledger in a window.
// GET /api/admin/stats?since=24h
func (h *AdminHandler) Stats(c echo.Context) error {
	if h.Audit == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "audit ledger not configured"})
	}
	window := 24 * time.Hour
	if s := c.QueryParam("since"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil || d <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "since must be a positive duration"})
		}
		window = d
	}
	from := time.Now().UTC().Add(-window)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Audit.CountSince(ctx, from)
	if err != nil {
		c.Logger().Errorf("stats query failed: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "stats query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"issued": n, "since": from})
}
