package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// PostOnly answers every method other than POST with 405.  Routes using it
// are registered with e.Any so that the JSON body is produced here instead
// of by the router's default handler.
func PostOnly() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if c.Request().Method != http.MethodPost {
                c.Response().Header().Set(echo.HeaderAllow, http.MethodPost)
                return c.JSON(http.StatusMethodNotAllowed, echo.Map{"error": "method not allowed"})
            }
            return next(c)
        }
    }
}
