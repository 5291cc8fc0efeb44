// Package assist proxies short writing suggestions from a chat completion
// model for the product's free-text pages.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
)

// Input caps, in characters.
const (
	MaxPromptLen     = 320
	MaxCurrentLen    = 900
	MaxPageLen       = 120
	MaxCodeLen       = 40
	MaxContextLen    = 220
	MaxContextItems  = 8
	MaxSuggestionLen = 280
	MaxSuggestions   = 3
)

const DefaultModel = "gpt-4o-mini"

var (
	// ErrMissingPrompt is returned when the sanitised prompt is empty.
	ErrMissingPrompt = errors.New("prompt is required")
	// ErrUpstream wraps failures of the completion API.
	ErrUpstream = errors.New("writing assistant unavailable")
	// ErrNoSuggestions means the model answered without anything usable.
	ErrNoSuggestions = errors.New("no usable suggestion")
)

const systemPrompt = "You are a brand writing coach. " +
	"Give exactly 3 short, concrete and actionable suggestions. " +
	"Match the tone of the customer's context. No markdown, no numbered list."

// Request is the raw user input; Sanitize it before calling Suggest.
type Request struct {
	Prompt  string
	Current string
	Page    string
	Code    string
	Context []string
}

// Sanitize collapses whitespace and applies the input caps.
func (r Request) Sanitize() Request {
	out := Request{
		Prompt:  SanitizeText(r.Prompt, MaxPromptLen),
		Current: SanitizeText(r.Current, MaxCurrentLen),
		Page:    SanitizeText(r.Page, MaxPageLen),
		Code:    SanitizeText(r.Code, MaxCodeLen),
	}
	for _, c := range r.Context {
		if t := SanitizeText(c, MaxContextLen); t != "" {
			out.Context = append(out.Context, t)
		}
		if len(out.Context) >= MaxContextItems {
			break
		}
	}
	return out
}

// Suggester asks a chat completion model for suggestions.
type Suggester struct {
	client *openai.Client
	model  string
}

// NewSuggester returns nil when apiKey is empty.
func NewSuggester(apiKey, model string) *Suggester {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	return NewSuggesterWithConfig(openai.DefaultConfig(apiKey), model)
}

// NewSuggesterWithConfig allows pointing the client at another base URL.
func NewSuggesterWithConfig(cfg openai.ClientConfig, model string) *Suggester {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &Suggester{client: openai.NewClientWithConfig(cfg), model: model}
}

// Suggest returns between one and MaxSuggestions distinct suggestions.
func (s *Suggester) Suggest(ctx context.Context, req Request) ([]string, error) {
	req = req.Sanitize()
	if req.Prompt == "" {
		return nil, ErrMissingPrompt
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Temperature: 0.7,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(req)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoSuggestions
	}

	var parsed struct {
		Suggestions []any `json:"suggestions"`
	}
	_ = json.Unmarshal([]byte(resp.Choices[0].Message.Content), &parsed)

	raw := make([]string, 0, len(parsed.Suggestions))
	for _, v := range parsed.Suggestions {
		if str, ok := v.(string); ok {
			raw = append(raw, str)
		}
	}
	out := UniqueSuggestions(raw)
	if len(out) == 0 {
		return nil, ErrNoSuggestions
	}
	return out, nil
}

func userPrompt(r Request) string {
	orDefault := func(s, d string) string {
		if s == "" {
			return d
		}
		return s
	}
	ctxLine := "(none)"
	if len(r.Context) > 0 {
		ctxLine = strings.Join(r.Context, " | ")
	}
	var b strings.Builder
	b.WriteString("Customer question: " + r.Prompt + "\n")
	b.WriteString("Current answer: " + orDefault(r.Current, "(empty)") + "\n")
	b.WriteString("Page context: " + orDefault(r.Page, "(unknown)") + "\n")
	b.WriteString("Space code: " + orDefault(r.Code, "(unknown)") + "\n")
	b.WriteString("Context items: " + ctxLine + "\n\n")
	b.WriteString(`Answer only with strict JSON using this schema: {"suggestions":["...","...","..."]}`)
	return b.String()
}

// SanitizeText collapses runs of whitespace, trims and truncates to maxLen
// characters.
func SanitizeText(s string, maxLen int) string {
	t := strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(t) <= maxLen {
		return t
	}
	return string([]rune(t)[:maxLen])
}

// UniqueSuggestions sanitises the list and keeps the first MaxSuggestions
// entries that differ case-insensitively.
func UniqueSuggestions(list []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, s := range list {
		t := SanitizeText(s, MaxSuggestionLen)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if len(out) >= MaxSuggestions {
			break
		}
	}
	return out
}
