package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/access-gate/internal/store"
)

func TestCleanZoneDataCaps(t *testing.T) {
	raw := map[string]any{
		"":        "dropped",
		"long":    strings.Repeat("x", 7000),
		"num":     float64(42),
		"flag":    true,
		"nothing": nil,
		"list":    []any{"a", "b"},
	}
	raw[strings.Repeat("k", 81)] = "dropped"
	raw[strings.Repeat("k", 80)] = "kept"
	out := CleanZoneData(raw)

	assert.NotContains(t, out, "")
	assert.NotContains(t, out, strings.Repeat("k", 81))
	assert.Equal(t, "kept", out[strings.Repeat("k", 80)])
	assert.Len(t, out["long"], MaxZoneValueLen)
	assert.Equal(t, "42", out["num"])
	assert.Equal(t, "true", out["flag"])
	assert.Equal(t, "", out["nothing"])
	assert.Equal(t, `["a","b"]`, out["list"])
}

func TestCleanZoneDataEntryLimit(t *testing.T) {
	raw := make(map[string]any, 1000)
	for i := 0; i < 1000; i++ {
		raw[fmt.Sprintf("field-%04d", i)] = "v"
	}
	out := CleanZoneData(raw)
	assert.Len(t, out, MaxZoneEntries)
	assert.Contains(t, out, "field-0000")
	assert.NotContains(t, out, "field-0999")
}

func TestZoneSaveLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewZoneRepo(store.NewMemoryStore())

	empty, err := repo.Load(ctx, "BS-AAAAA-BBBBB", "/module-1.html")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, repo.Save(ctx, "BS-AAAAA-BBBBB", "/module-1.html", map[string]any{"mission": "make it simple"}))

	got, err := repo.Load(ctx, "BS-AAAAA-BBBBB", "/module-1.html")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"mission": "make it simple"}, got)

	other, err := repo.Load(ctx, "BS-AAAAA-BBBBB", "/module-2.html")
	require.NoError(t, err)
	assert.Empty(t, other)
}
