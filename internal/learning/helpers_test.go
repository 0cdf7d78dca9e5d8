package learning

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// testClock is a settable clock shared by the store and the engine.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testEnv struct {
	store     *storage.SQLiteStorage
	engine    *Engine
	feedback  *FeedbackProcessor
	analytics *Analytics
	clock     *testClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &testClock{now: mustTime("2026-05-01T10:00:00Z")}
	store := storage.NewStorageAt(filepath.Join(t.TempDir(), "learning.db"), storage.Options{
		CacheTTL:    time.Minute,
		CacheSize:   128,
		BusyRetries: 10,
		Now:         clock.Now,
	})
	require.NoError(t, store.Init())
	t.Cleanup(func() { _ = store.Close() })

	cfg := DefaultConfig()
	cfg.LatencyBudget = 2 * time.Second

	engine, err := NewEngine(rules.Builtin(), store, cfg, WithClock(clock.Now))
	require.NoError(t, err)
	fb, err := NewFeedbackProcessor(store, cfg, WithClock(clock.Now))
	require.NoError(t, err)
	an, err := NewAnalytics(store, DefaultReportConfig(), WithClock(clock.Now))
	require.NoError(t, err)

	return &testEnv{store: store, engine: engine, feedback: fb, analytics: an, clock: clock}
}

// issue runs Recommend and records the result, returning the interaction id.
func (env *testEnv) issue(t *testing.T, req Request) (int64, Recommendation) {
	t.Helper()
	ctx := context.Background()

	rec, err := env.engine.Recommend(ctx, req)
	require.NoError(t, err)
	id, err := env.engine.RecordRecommendation(ctx, req, rec)
	require.NoError(t, err)
	return id, rec
}

func intPtr(v int) *int       { return &v }
func int64Ptr(v int64) *int64 { return &v }

// failingStore reports every operation as unavailable.
type failingStore struct{}

var errDiskFull = &storage.UnavailableError{Op: "test", Err: errors.New("disk full")}

func (failingStore) Init() error { return errDiskFull }
func (failingStore) RecordInteraction(context.Context, storage.Interaction) (int64, error) {
	return 0, errDiskFull
}
func (failingStore) GetInteraction(context.Context, int64) (*storage.Interaction, error) {
	return nil, errDiskFull
}
func (failingStore) ListInteractions(context.Context, string, time.Time) ([]storage.Interaction, error) {
	return nil, errDiskFull
}
func (failingStore) GetPattern(context.Context, storage.PatternKey) (*storage.Pattern, error) {
	return nil, errDiskFull
}
func (failingStore) ListPatterns(context.Context, string) ([]storage.Pattern, error) {
	return nil, errDiskFull
}
func (failingStore) AllPatterns(context.Context) ([]storage.Pattern, error) {
	return nil, errDiskFull
}
func (failingStore) UpsertPattern(context.Context, storage.PatternKey, func(*storage.Pattern) error) (storage.Pattern, error) {
	return storage.Pattern{}, errDiskFull
}
func (failingStore) GetPreference(context.Context, storage.PreferenceKey) (storage.Preference, error) {
	return storage.Preference{}, errDiskFull
}
func (failingStore) ListPreferences(context.Context, string) ([]storage.Preference, error) {
	return nil, errDiskFull
}
func (failingStore) UpsertPreference(context.Context, storage.PreferenceKey, func(*storage.Preference) error) (storage.Preference, error) {
	return storage.Preference{}, errDiskFull
}
func (failingStore) Update(context.Context, func(storage.Tx) error) error { return errDiskFull }
func (failingStore) EvictStale(context.Context, time.Duration) (storage.EvictionResult, error) {
	return storage.EvictionResult{}, errDiskFull
}
func (failingStore) Stats(context.Context) (storage.Stats, error) {
	return storage.Stats{}, errDiskFull
}
func (failingStore) Close() error { return nil }

// slowStore blocks pattern reads until the caller's context expires.
type slowStore struct{ failingStore }

func (slowStore) ListPatterns(ctx context.Context, _ string) ([]storage.Pattern, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
