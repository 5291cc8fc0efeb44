package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// RESTStore talks to an Upstash-compatible REST endpoint.  Each command is
// sent as a JSON array in the body of a POST to the base URL and the answer
// is {"result": ...} or {"error": "..."}.
type RESTStore struct {
	baseURL string
	token   string
	hc      *http.Client
}

// NewRESTStore builds a client for baseURL authenticated with a bearer token.
// A nil http.Client selects one with a 15 second timeout.
func NewRESTStore(baseURL, token string, hc *http.Client) *RESTStore {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      hc,
	}
}

func (s *RESTStore) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := s.do(ctx, "get", key, "GET", key)
	if err != nil {
		return "", false, err
	}
	if res.Type == gjson.Null {
		return "", false, nil
	}
	return res.String(), true, nil
}

// Set maps OnlyIfAbsent to the NX flag of a single SET command; a null
// result means the key already existed.
func (s *RESTStore) Set(ctx context.Context, key, value string, opts SetOptions) (bool, error) {
	args := []any{"SET", key, value}
	if opts.TTL > 0 {
		args = append(args, "EX", strconv.FormatInt(ttlSeconds(opts.TTL), 10))
	}
	if opts.OnlyIfAbsent {
		args = append(args, "NX")
	}
	res, err := s.do(ctx, "set", key, args...)
	if err != nil {
		return false, err
	}
	if res.Type == gjson.Null {
		return false, nil
	}
	return true, nil
}

// Swap sends the compare-and-set script as one EVAL command.
func (s *RESTStore) Swap(ctx context.Context, key, old, value string, ttl time.Duration) (bool, error) {
	res, err := s.do(ctx, "swap", key, "EVAL", swapScript, "1", key, old, value, strconv.FormatInt(ttl.Milliseconds(), 10))
	if err != nil {
		return false, err
	}
	return res.Int() == 1, nil
}

func (s *RESTStore) Del(ctx context.Context, key string) error {
	_, err := s.do(ctx, "del", key, "DEL", key)
	return err
}

func (s *RESTStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	res, err := s.do(ctx, "ttl", key, "TTL", key)
	if err != nil {
		return 0, false, err
	}
	n := res.Int()
	if n <= 0 {
		return 0, false, nil
	}
	return time.Duration(n) * time.Second, true, nil
}

func (s *RESTStore) Ping(ctx context.Context) error {
	_, err := s.do(ctx, "ping", "", "PING")
	return err
}

// do posts one command and returns its "result" member.
func (s *RESTStore) do(ctx context.Context, op, key string, args ...any) (gjson.Result, error) {
	body, err := json.Marshal(args)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("encode %s command: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, unavailable(op, key, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return gjson.Result{}, unavailable(op, key, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, unavailable(op, key, err)
	}
	if msg := gjson.GetBytes(raw, "error"); msg.Exists() {
		return gjson.Result{}, unavailable(op, key, errors.New(msg.String()))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return gjson.Result{}, unavailable(op, key, fmt.Errorf("http %d", resp.StatusCode))
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, unavailable(op, key, errors.New("malformed response"))
	}
	return gjson.GetBytes(raw, "result"), nil
}
