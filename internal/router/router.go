package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/access-gate/internal/config"
	"github.com/iliyamo/access-gate/internal/handler"
	"github.com/iliyamo/access-gate/internal/middleware"
	"github.com/iliyamo/access-gate/internal/utils"
)

// RegisterRoutes registers the liveness probe and the health report.  The
// report is cached in Redis because every uncached call hits the payment
// provider's API.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/healthz", handler.Health)
	e.GET("/api/health", h.Report, middleware.NewRedisCache(cacheCfg, rdb))
}

// PublicHandlers groups the handlers served to browsers and devices.
type PublicHandlers struct {
	Codes    *handler.AccessCodeHandler
	Checkout *handler.CheckoutHandler
	Zones    *handler.ZoneHandler
	Writing  *handler.WritingHandler
	Webhook  *handler.WebhookHandler
}

// RegisterPublic registers the unauthenticated POST operations.  Each route
// accepts any method so PostOnly can answer 405 with a JSON body.  The token
// bucket applies to the whole group except the webhook, whose caller is the
// payment provider and retries on its own schedule.
func RegisterPublic(e *echo.Echo, h PublicHandlers, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	post := middleware.PostOnly()
	g := e.Group("/api", middleware.NewTokenBucket(rlCfg, rdb))

	g.Any("/issue-access-code", h.Codes.Issue, post)
	// check-code only reports existence; validate-code also takes the
	// session lock.  Clients choose the guarantee they need.
	g.Any("/check-code", h.Codes.Check, post)
	g.Any("/validate-code", h.Codes.Validate, post)
	g.Any("/release-code-session", h.Codes.Release, post)

	g.Any("/create-checkout-session", h.Checkout.Create, post)
	g.Any("/zone-inputs", h.Zones.Handle, post)
	g.Any("/ai-writing-help", h.Writing.Help, post)

	e.Any("/api/stripe/webhook", h.Webhook.Handle, post)
}

// RegisterAdmin registers the support endpoints.  Login is public; every
// other route requires an ADMIN token signed with jwtSecret.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	e.POST("/api/admin/login", a.Login)

	g := e.Group("/api/admin", middleware.JWTAuth(jwtSecret), middleware.RequireRole(utils.RoleAdmin))
	g.GET("/codes/:code", a.GetCode)
	g.DELETE("/codes/:code/session", a.ReleaseSession)
	g.GET("/stats", a.Stats)
}
