package middleware

// identity.go derives the caller identity used for rate limit keys.  Devices
// identify themselves with the X-Client-Id header (the same opaque id they
// send as client_id); authenticated admins are keyed by email.

import (
    "strings"

    "github.com/labstack/echo/v4"
)

// HeaderClientID carries the caller-generated device id.
const HeaderClientID = "X-Client-Id"

const maxClientIDLen = 128

// callerID returns the admin email, the client id header, or "anon".
func callerID(c echo.Context) string {
    if v, ok := c.Get(ctxAdminEmail).(string); ok && v != "" {
        return "admin:" + v
    }
    id := strings.TrimSpace(c.Request().Header.Get(HeaderClientID))
    if id == "" {
        return "anon"
    }
    if len(id) > maxClientIDLen {
        id = id[:maxClientIDLen]
    }
    return "client:" + id
}
