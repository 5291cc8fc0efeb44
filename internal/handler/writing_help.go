package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/access-gate/internal/assist"
)

// WritingHandler proxies writing suggestions.  Suggester is nil when no
// OpenAI key is configured.
type WritingHandler struct {
	Suggester *assist.Suggester
}

func NewWritingHandler(s *assist.Suggester) *WritingHandler { return &WritingHandler{Suggester: s} }

// Help answers {ok, suggestions}.
// POST /api/ai-writing-help
func (h *WritingHandler) Help(c echo.Context) error {
	if h.Suggester == nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"ok": false, "error": "OPENAI_API_KEY missing"})
	}
	fields := decodeFields(c)
	req := assist.Request{
		Prompt:  textOf(fields["prompt"]),
		Current: textOf(fields["current"]),
		Page:    textOf(fields["page"]),
		Code:    textOf(fields["code"]),
	}
	if items, ok := fields["context"].([]any); ok {
		for _, v := range items {
			if v != nil {
				req.Context = append(req.Context, textOf(v))
			}
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	suggestions, err := h.Suggester.Suggest(ctx, req)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, echo.Map{"ok": true, "suggestions": suggestions})
	case errors.Is(err, assist.ErrMissingPrompt):
		return c.JSON(http.StatusBadRequest, echo.Map{"ok": false, "error": "missing prompt"})
	case errors.Is(err, assist.ErrNoSuggestions):
		return c.JSON(http.StatusBadGateway, echo.Map{"ok": false, "error": "no usable suggestion"})
	default:
		c.Logger().Errorf("writing help failed: %v", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"ok": false, "error": "writing assistant unavailable"})
	}
}
