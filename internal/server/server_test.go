package server_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happyprime/alertbar/internal/server"
	"github.com/happyprime/alertbar/pkg/banner"
	"github.com/happyprime/alertbar/pkg/cache"
	"github.com/happyprime/alertbar/pkg/expiry"
	"github.com/happyprime/alertbar/pkg/levels"
	"github.com/happyprime/alertbar/pkg/model"
	"github.com/happyprime/alertbar/pkg/storage"
)

// fakeBackend records one-shot arms without firing them.
type fakeBackend struct {
	mu        sync.Mutex
	scheduled map[string]bool
	arms      int
}

func (b *fakeBackend) ScheduleAt(_ time.Time, task string, _ func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.scheduled[task] {
		return
	}
	b.scheduled[task] = true
	b.arms++
}

func (b *fakeBackend) Scheduled(task string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scheduled[task]
}

type fixture struct {
	srv     *server.Server
	store   *storage.SQLite
	backend *fakeBackend
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	store, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	registry := levels.NewRegistry(store, logger)
	set := expiry.NewTrackedSet()
	backend := &fakeBackend{scheduled: make(map[string]bool)}
	scheduler := expiry.NewScheduler(set, backend, 30*time.Second, func() {}, logger)
	svc := banner.NewService(store, cache.NewMemory(0), registry, scheduler, logger)
	sweeper := expiry.NewSweeper(store, registry, set, svc, logger)

	return &fixture{
		srv:     server.NewServer(svc, registry, scheduler, sweeper, logger),
		store:   store,
		backend: backend,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, "GET", "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestServer_Banner_None(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, "GET", "/api/v1/banner", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.True(t, snap.None)
}

func TestServer_Levels(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "low", Label: "Low", Rank: 1})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, "PUT", "/api/v1/levels/low/default", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "GET", "/api/v1/levels", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var all []model.SeverityLevel
	require.NoError(t, json.NewDecoder(w.Body).Decode(&all))
	require.Len(t, all, 1)
	assert.True(t, all[0].IsDefault)
}

func TestServer_SetDefault_UnknownLevel(t *testing.T) {
	f := setupServer(t)

	w := f.do(t, "PUT", "/api/v1/levels/missing/default", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_AlertLifecycle(t *testing.T) {
	f := setupServer(t)
	through := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	w := f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "high", Label: "High", Rank: 3})
	require.Equal(t, http.StatusCreated, w.Code)

	levelID := "high"
	w = f.do(t, "POST", "/api/v1/alerts", model.AlertRecord{
		ID:             "a",
		Title:          "Snow day",
		Body:           "Campus closed.",
		LevelID:        &levelID,
		DisplayThrough: &through,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(t, "GET", "/api/v1/banner", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snap model.Snapshot
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.Equal(t, "Snow day", snap.Heading)
	assert.Equal(t, "High", snap.LevelLabel)

	// Clearing the window drops the alert from the banner.
	w = f.do(t, "PUT", "/api/v1/alerts/a", map[string]any{"clear_display_through": true})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "GET", "/api/v1/banner", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.True(t, snap.None)

	w = f.do(t, "DELETE", "/api/v1/alerts/a", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "DELETE", "/api/v1/alerts/a", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_Banner_HomeSuppression(t *testing.T) {
	f := setupServer(t)
	through := time.Now().UTC().Add(time.Hour).Truncate(time.Second)

	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "low", Label: "Low", Rank: 1}).Code)
	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "high", Label: "High", Rank: 3}).Code)

	levelID := "low"
	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/alerts", model.AlertRecord{
			ID: "a", Title: "FYI", LevelID: &levelID, DisplayThrough: &through,
		}).Code)

	var snap model.Snapshot
	w := f.do(t, "GET", "/api/v1/banner", nil)
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.True(t, snap.None)

	w = f.do(t, "GET", "/api/v1/banner?home=1", nil)
	snap = model.Snapshot{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&snap))
	assert.False(t, snap.None)
	assert.Equal(t, "FYI", snap.Heading)
}

func TestServer_RequestEndArmsSweep(t *testing.T) {
	f := setupServer(t)
	through := time.Now().UTC().Add(10 * time.Second).Truncate(time.Second)

	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "high", Label: "High", Rank: 3}).Code)

	levelID := "high"
	// The create response's request-end hook sees an expiration inside
	// the lookahead window and arms the sweep.
	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/alerts", model.AlertRecord{
			ID: "a", LevelID: &levelID, DisplayThrough: &through,
		}).Code)
	assert.True(t, f.backend.Scheduled(expiry.TaskSweep))

	// Further requests never double-arm.
	f.do(t, "GET", "/api/v1/banner", nil)
	f.do(t, "GET", "/api/v1/banner", nil)
	assert.Equal(t, 1, f.backend.arms)
}

func TestServer_ManualSweep(t *testing.T) {
	f := setupServer(t)
	expired := time.Now().UTC().Add(-time.Minute).Truncate(time.Second)

	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "low", Label: "Low", Rank: 1}).Code)
	require.Equal(t, http.StatusNoContent,
		f.do(t, "PUT", "/api/v1/levels/low/default", nil).Code)
	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/levels", model.SeverityLevel{ID: "high", Label: "High", Rank: 3}).Code)

	levelID := "high"
	require.Equal(t, http.StatusCreated,
		f.do(t, "POST", "/api/v1/alerts", model.AlertRecord{
			ID: "x", LevelID: &levelID, DisplayThrough: &expired,
		}).Code)

	w := f.do(t, "POST", "/api/v1/sweep", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	got, err := f.store.GetAlert(t.Context(), "x")
	require.NoError(t, err)
	assert.Nil(t, got.DisplayThrough)
	require.NotNil(t, got.LevelID)
	assert.Equal(t, "low", *got.LevelID)
}
