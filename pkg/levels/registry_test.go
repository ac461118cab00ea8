package levels_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyprime/alertbar/pkg/levels"
	"github.com/happyprime/alertbar/pkg/model"
	"github.com/happyprime/alertbar/pkg/storage"
)

func newTestRegistry(t *testing.T) *levels.Registry {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	db, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return levels.NewRegistry(db, logger)
}

func addLevel(t *testing.T, r *levels.Registry, id, label string, rank int) {
	t.Helper()
	require.NoError(t, r.Create(t.Context(), &model.SeverityLevel{ID: id, Label: label, Rank: rank}))
}

func countDefaults(t *testing.T, r *levels.Registry) int {
	t.Helper()
	all, err := r.List(t.Context())
	require.NoError(t, err)
	n := 0
	for _, level := range all {
		if level.IsDefault {
			n++
		}
	}
	return n
}

func TestRegistry_DefaultUnset(t *testing.T) {
	r := newTestRegistry(t)

	def, err := r.Default(t.Context())
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestRegistry_SetDefault(t *testing.T) {
	r := newTestRegistry(t)
	ctx := t.Context()

	addLevel(t, r, "low", "Low", 1)
	addLevel(t, r, "high", "High", 3)

	require.NoError(t, r.SetDefault(ctx, "low"))
	def, err := r.Default(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "low", def.ID)

	require.NoError(t, r.SetDefault(ctx, "high"))
	def, err = r.Default(ctx)
	require.NoError(t, err)
	assert.Equal(t, "high", def.ID)

	assert.Equal(t, 1, countDefaults(t, r))
}

func TestRegistry_SetDefault_Unknown(t *testing.T) {
	r := newTestRegistry(t)
	assert.ErrorIs(t, r.SetDefault(t.Context(), "missing"), storage.ErrNotFound)
}

func TestRegistry_SingleDefaultUnderConcurrency(t *testing.T) {
	r := newTestRegistry(t)
	ctx := t.Context()

	ids := []string{"low", "medium", "high"}
	for i, id := range ids {
		addLevel(t, r, id, id, i+1)
	}

	var wg sync.WaitGroup
	for range 10 {
		for _, id := range ids {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = r.SetDefault(ctx, id)
			}()
		}
	}
	wg.Wait()

	assert.Equal(t, 1, countDefaults(t, r))
}

func TestRegistry_DeleteDefault(t *testing.T) {
	r := newTestRegistry(t)
	ctx := t.Context()

	addLevel(t, r, "low", "Low", 1)
	require.NoError(t, r.SetDefault(ctx, "low"))
	require.NoError(t, r.Delete(ctx, "low"))

	def, err := r.Default(ctx)
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestRegistry_LowestRank(t *testing.T) {
	r := newTestRegistry(t)
	ctx := t.Context()

	_, ok, err := r.LowestRank(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	addLevel(t, r, "high", "High", 3)
	addLevel(t, r, "low", "Low", 1)
	addLevel(t, r, "medium", "Medium", 2)

	min, ok, err := r.LowestRank(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, min)
}

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "levels.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRegistry_Seed(t *testing.T) {
	r := newTestRegistry(t)
	ctx := t.Context()

	path := writeSeedFile(t, `
levels:
  - id: low
    label: Low
    rank: 1
    default: true
  - id: high
    label: High
    rank: 3
`)

	require.NoError(t, r.Seed(ctx, path))

	all, err := r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	def, err := r.Default(ctx)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, "low", def.ID)

	// Seeding again is a no-op against a populated registry.
	require.NoError(t, r.Seed(ctx, path))
	all, err = r.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestRegistry_Seed_RejectsTwoDefaults(t *testing.T) {
	r := newTestRegistry(t)

	path := writeSeedFile(t, `
levels:
  - id: a
    label: A
    default: true
  - id: b
    label: B
    default: true
`)

	assert.Error(t, r.Seed(t.Context(), path))
}
