package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/access-gate/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ctxAdminEmail = "admin_email"
    ctxRole       = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer admin token and
// stores the subject and role in the request context under "admin_email"
// and "role".  An empty secret rejects every request, so admin routes stay
// closed until JWT_SECRET is configured.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            if secret == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            claims, err := utils.ParseAdminToken(secret, strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }
            c.Set(ctxAdminEmail, claims.Subject)
            c.Set(ctxRole, claims.Role)
            return next(c)
        }
    }
}
