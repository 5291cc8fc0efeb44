package handler // declare the package name; contains HTTP handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/payment"
	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/service"
	"github.com/iliyamo/access-gate/internal/store"
)

const (
	// maxBodyBytes bounds every JSON body read by the public endpoints.
	maxBodyBytes = 64 << 10
	// maxZoneBodyBytes fits a zone save at every cap (800 values of 6000
	// characters, multi-byte text included).
	maxZoneBodyBytes = 8 << 20
)

var errBodyTooLarge = errors.New("request body too large")

// readBody reads at most limit bytes and reports errBodyTooLarge rather than
// returning a cut body.
func readBody(c echo.Context, limit int64) ([]byte, error) {
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(raw)) > limit {
		return nil, errBodyTooLarge
	}
	return raw, nil
}

// decodeLoose reads the request body as JSON.  An empty, oversized or
// malformed body yields the zero value: clients get field-level errors
// ("missing code") instead of a generic "invalid body".
func decodeLoose[T any](c echo.Context) T {
	out, _ := decodeLooseN[T](c, maxBodyBytes)
	return out
}

// decodeLooseN is decodeLoose with its own size limit.  A body over limit is
// reported with errBodyTooLarge.
func decodeLooseN[T any](c echo.Context, limit int64) (T, error) {
	var zero, out T
	raw, err := readBody(c, limit)
	if errors.Is(err, errBodyTooLarge) {
		return zero, err
	}
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return zero, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, nil
	}
	return out, nil
}

// decodeFields reads the body as a JSON object without binding it to a
// struct, so one field of an unexpected type does not blank the others.
// Anything but an object yields an empty map.
func decodeFields(c echo.Context) map[string]any {
	raw, err := readBody(c, maxBodyBytes)
	if err != nil {
		return map[string]any{}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return map[string]any{}
	}
	return fields
}

// textOf coerces a decoded JSON value to text: strings as-is, numbers and
// booleans in their JSON spelling, null as "", arrays and objects as JSON.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// seconds rounds d up to whole seconds.
func seconds(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64(math.Ceil(d.Seconds()))
}

// failure writes the JSON error for err.  extra fields (such as
// "valid": false) are merged into the body.  Upstream details are logged,
// never returned.
func failure(c echo.Context, err error, extra echo.Map) error {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, repository.ErrMissingSessionID):
		status, msg = http.StatusBadRequest, "missing session_id"
	case errors.Is(err, service.ErrMissingClientID):
		status, msg = http.StatusBadRequest, "missing client_id"
	case errors.Is(err, repository.ErrPaymentNotConfirmed):
		status, msg = http.StatusPaymentRequired, "payment not confirmed"
	case errors.Is(err, service.ErrPaymentsNotConfigured):
		status, msg = http.StatusInternalServerError, "stripe not configured"
	case errors.Is(err, payment.ErrUpstream):
		status, msg = http.StatusBadGateway, "payment provider unavailable"
	case errors.Is(err, store.ErrUnavailable):
		status, msg = http.StatusInternalServerError, "store unavailable"
	case errors.Is(err, repository.ErrCodeSpaceExhausted), errors.Is(err, repository.ErrSessionIndexConflict):
		status, msg = http.StatusInternalServerError, "code generation failed"
	}
	if status >= http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	}
	body := echo.Map{"error": msg}
	for k, v := range extra {
		body[k] = v
	}
	return c.JSON(status, body)
}
