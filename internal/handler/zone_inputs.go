package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/repository"
	"github.com/iliyamo/access-gate/internal/service"
)

// ZoneHandler loads and saves the free-text answers a code holder typed on
// a page.
type ZoneHandler struct {
	Codes service.CodeRegistry
	Zones *repository.ZoneRepo
}

func NewZoneHandler(codes service.CodeRegistry, zones *repository.ZoneRepo) *ZoneHandler {
	return &ZoneHandler{Codes: codes, Zones: zones}
}

type zoneReq struct {
	Action string          `json:"action"`
	Code   string          `json:"code"`
	Path   string          `json:"path"`
	Data   json.RawMessage `json:"data"`
}

// Handle serves both actions.
// POST /api/zone-inputs {action: load|save, code, path, data}
func (h *ZoneHandler) Handle(c echo.Context) error {
	req, err := decodeLooseN[zoneReq](c, maxZoneBodyBytes)
	if err != nil {
		return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"ok": false, "error": "payload too large"})
	}
	action := strings.ToLower(strings.TrimSpace(req.Action))
	code := repository.NormalizeCode(req.Code)
	path := strings.TrimSpace(req.Path)
	if utf8.RuneCountInString(path) > repository.MaxZonePathLen {
		path = ""
	}
	if action == "" || code == "" || path == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "missing action, code or path"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), storeTimeout)
	defer cancel()

	exists, err := h.Codes.Exists(ctx, code)
	if err != nil {
		return failure(c, err, echo.Map{"ok": false})
	}
	if !exists {
		return c.JSON(http.StatusForbidden, echo.Map{"ok": false, "error": "invalid code"})
	}

	switch action {
	case "load":
		data, err := h.Zones.Load(ctx, code, path)
		if err != nil {
			return failure(c, err, echo.Map{"ok": false})
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "data": data})
	case "save":
		var data map[string]any
		_ = json.Unmarshal(req.Data, &data) // anything but an object saves an empty document
		if err := h.Zones.Save(ctx, code, path, data); err != nil {
			return failure(c, err, echo.Map{"ok": false})
		}
		return c.JSON(http.StatusOK, echo.Map{"ok": true})
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "invalid action"})
	}
}
