package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeCompletions(t *testing.T, status int, content string, seen *openai.ChatCompletionRequest) *Suggester {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			_ = json.NewDecoder(r.Body).Decode(seen)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
			return
		}
		resp := openai.ChatCompletionResponse{
			ID: "chatcmpl-1",
			Choices: []openai.ChatCompletionChoice{{
				Message: openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = srv.URL + "/v1"
	return NewSuggesterWithConfig(cfg, "")
}

func TestSuggestReturnsDistinctSuggestions(t *testing.T) {
	var seen openai.ChatCompletionRequest
	s := fakeCompletions(t, http.StatusOK, `{"suggestions":["Lead with the benefit.","lead with the benefit.","  Keep it   short ","Name the audience.","Fourth one"]}`, &seen)

	got, err := s.Suggest(context.Background(), Request{Prompt: "  How do I   open my page? ", Context: []string{"bakery", ""}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Lead with the benefit.", "Keep it short", "Name the audience."}, got)

	assert.Equal(t, DefaultModel, seen.Model)
	assert.InDelta(t, 0.7, seen.Temperature, 0.0001)
	require.NotNil(t, seen.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, seen.ResponseFormat.Type)
	require.Len(t, seen.Messages, 2)
	assert.Contains(t, seen.Messages[1].Content, "Customer question: How do I open my page?")
	assert.Contains(t, seen.Messages[1].Content, "Context items: bakery\n")
}

func TestSuggestUnusableAnswer(t *testing.T) {
	s := fakeCompletions(t, http.StatusOK, `not json`, nil)
	_, err := s.Suggest(context.Background(), Request{Prompt: "help"})
	assert.True(t, errors.Is(err, ErrNoSuggestions))
}

func TestSuggestUpstreamError(t *testing.T) {
	s := fakeCompletions(t, http.StatusTooManyRequests, "", nil)
	_, err := s.Suggest(context.Background(), Request{Prompt: "help"})
	assert.True(t, errors.Is(err, ErrUpstream))
}

func TestSuggestRequiresPrompt(t *testing.T) {
	s := NewSuggesterWithConfig(openai.DefaultConfig("sk-test"), "gpt-4o-mini")
	_, err := s.Suggest(context.Background(), Request{Prompt: " \n\t "})
	assert.True(t, errors.Is(err, ErrMissingPrompt))
}

func TestSanitizeCaps(t *testing.T) {
	req := Request{
		Prompt:  strings.Repeat("é", 400),
		Code:    strings.Repeat("A", 60),
		Context: make([]string, 12),
	}
	for i := range req.Context {
		req.Context[i] = strings.Repeat("x", 300)
	}
	clean := req.Sanitize()
	assert.Equal(t, MaxPromptLen, len([]rune(clean.Prompt)))
	assert.Len(t, clean.Code, MaxCodeLen)
	assert.Len(t, clean.Context, MaxContextItems)
	assert.Len(t, clean.Context[0], MaxContextLen)
}

func TestNewSuggesterWithoutKey(t *testing.T) {
	assert.Nil(t, NewSuggester("  ", ""))
}
