package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/access-gate/internal/model"
	"github.com/iliyamo/access-gate/internal/store"
)

// Caps applied to every zone-input document before it is written or returned.
const (
	MaxZoneKeyLen   = 80
	MaxZoneValueLen = 6000
	MaxZoneEntries  = 800
	MaxZonePathLen  = 260
)

const zoneKeyPrefix = "zone_inputs:"

// ZoneRepo stores per-page free text for a code under
// zone_inputs:<CODE>:<path>.
type ZoneRepo struct {
	store store.Store
	now   func() time.Time
}

func NewZoneRepo(s store.Store) *ZoneRepo { return &ZoneRepo{store: s, now: time.Now} }

func zoneKey(code, path string) string { return zoneKeyPrefix + code + ":" + path }

// Load returns the cleaned data saved for code and path.  A missing or
// undecodable document yields an empty map.
func (r *ZoneRepo) Load(ctx context.Context, code, path string) (map[string]string, error) {
	raw, ok, err := r.store.Get(ctx, zoneKey(code, path))
	if err != nil {
		return nil, err
	}
	if !ok {
		return map[string]string{}, nil
	}
	var doc struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return map[string]string{}, nil
	}
	return CleanZoneData(doc.Data), nil
}

// Save replaces the document for code and path with the cleaned data.
func (r *ZoneRepo) Save(ctx context.Context, code, path string, data map[string]any) error {
	doc := model.ZoneInputs{UpdatedAt: r.now().UTC(), Data: CleanZoneData(data)}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = r.store.Set(ctx, zoneKey(code, path), string(payload), store.SetOptions{})
	return err
}

// CleanZoneData keeps at most MaxZoneEntries keys of 1..MaxZoneKeyLen
// characters, converting values to strings truncated to MaxZoneValueLen
// characters.  Keys are visited in sorted order so the kept subset is stable.
func CleanZoneData(raw map[string]any) map[string]string {
	out := make(map[string]string)
	if len(raw) == 0 {
		return out
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" || utf8.RuneCountInString(k) > MaxZoneKeyLen {
			continue
		}
		out[k] = truncateRunes(stringify(raw[k]), MaxZoneValueLen)
		if len(out) >= MaxZoneEntries {
			break
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, float64, json.Number:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
