package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, opts Options) *SQLiteStorage {
	t.Helper()
	s := NewStorageAt(filepath.Join(t.TempDir(), "learning.db"), opts)
	require.NoError(t, s.Init())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestInit(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "learning.db")
	s := NewStorageAt(dbPath, DefaultOptions())

	require.NoError(t, s.Init())
	defer s.Close()

	_, err := os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
	assert.Equal(t, dbPath, s.Path())
}

func TestInit_MigrationsAreIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "learning.db")

	first := NewStorageAt(dbPath, DefaultOptions())
	require.NoError(t, first.Init())
	require.NoError(t, first.Close())

	second := NewStorageAt(dbPath, DefaultOptions())
	require.NoError(t, second.Init())
	defer second.Close()

	var version int
	require.NoError(t, second.db.Load().QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, 2, version)
}

func TestRecordAndGetInteraction(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id, err := s.RecordInteraction(ctx, Interaction{
		Timestamp:          now,
		UserID:             "u1",
		ProjectFingerprint: "p1",
		Category:           "analyze_security",
		ContextFingerprint: "medium:go:gin",
		Dimension:          "persona-security",
		FlagsIssued:        []string{"--persona-security", "--focus security"},
		Source:             "learned",
		Confidence:         0.8,
	})
	require.NoError(t, err)
	assert.Positive(t, id)

	got, err := s.GetInteraction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "analyze_security", got.Category)
	assert.Equal(t, []string{"--persona-security", "--focus security"}, got.FlagsIssued)
	assert.Equal(t, "learned", got.Source)
	assert.True(t, got.Timestamp.Equal(now))
	assert.Nil(t, got.Outcome)
}

func TestGetInteraction_NotFound(t *testing.T) {
	s := newTestStorage(t, DefaultOptions())

	_, err := s.GetInteraction(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCompleteInteraction_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())

	id, err := s.RecordInteraction(ctx, Interaction{UserID: "u1", Category: "implement_api"})
	require.NoError(t, err)

	rating := 5
	execMs := int64(1200)
	err = s.Update(ctx, func(tx Tx) error {
		return tx.CompleteInteraction(id, Outcome{Success: true, Rating: &rating, ExecutionMs: &execMs})
	})
	require.NoError(t, err)

	err = s.Update(ctx, func(tx Tx) error {
		return tx.CompleteInteraction(id, Outcome{Success: false})
	})
	assert.ErrorIs(t, err, ErrAlreadyRecorded)

	got, err := s.GetInteraction(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.Outcome)
	assert.True(t, got.Outcome.Success)
	assert.Equal(t, 5, *got.Outcome.Rating)
	assert.Equal(t, int64(1200), *got.Outcome.ExecutionMs)

	err = s.Update(ctx, func(tx Tx) error {
		return tx.CompleteInteraction(999, Outcome{Success: true})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListInteractions_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := s.RecordInteraction(ctx, Interaction{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			UserID:    "u1",
			Category:  "implement_ui",
		})
		require.NoError(t, err)
	}
	_, err := s.RecordInteraction(ctx, Interaction{Timestamp: base, UserID: "u2", Category: "implement_ui"})
	require.NoError(t, err)

	list, err := s.ListInteractions(ctx, "u1", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Timestamp.After(list[1].Timestamp))
}

func TestPreference_DefaultWhenAbsent(t *testing.T) {
	s := newTestStorage(t, DefaultOptions())

	key := PreferenceKey{UserID: "u1", ProjectFingerprint: "p1", Dimension: "persona-security"}
	p, err := s.GetPreference(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, DefaultPreferenceWeight, p.Weight)
	assert.False(t, p.Stored)
}

func TestUpsertPreference_RejectsOutOfRange(t *testing.T) {
	s := newTestStorage(t, DefaultOptions())

	key := PreferenceKey{UserID: "u1", ProjectFingerprint: "p1", Dimension: "d"}
	_, err := s.UpsertPreference(context.Background(), key, func(p *Preference) error {
		p.Weight = 2.5
		return nil
	})
	assert.Error(t, err)

	p, err := s.GetPreference(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, p.Stored, "rejected write must not persist")
}

func TestUpsertPattern_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())
	key := PatternKey{Category: "implement_api", Fingerprint: "small:go:"}

	got, err := s.GetPattern(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got, "absence is cached")

	_, err = s.UpsertPattern(ctx, key, func(p *Pattern) error {
		p.SuccessRate = 0.7
		p.UsageCount++
		return nil
	})
	require.NoError(t, err)

	got, err = s.GetPattern(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.InDelta(t, 0.7, got.SuccessRate, 1e-9)

	list, err := s.ListPatterns(ctx, "implement_api")
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.UpsertPattern(ctx, PatternKey{Category: "implement_api", Fingerprint: "large:go:"}, func(p *Pattern) error {
		p.SuccessRate = 0.5
		p.UsageCount = 1
		return nil
	})
	require.NoError(t, err)

	list, err = s.ListPatterns(ctx, "implement_api")
	require.NoError(t, err)
	assert.Len(t, list, 2, "category listing is invalidated by writes")
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())
	key := PatternKey{Category: "improve_quality", Fingerprint: "x"}
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx Tx) error {
		if _, err := tx.UpsertPattern(key, func(p *Pattern) error {
			p.SuccessRate = 1
			p.UsageCount = 1
			return nil
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.GetPattern(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExecutionBaseline(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())

	for _, ms := range []int64{1000, 2000, 3000} {
		id, err := s.RecordInteraction(ctx, Interaction{UserID: "u1", Category: "analyze_general"})
		require.NoError(t, err)
		v := ms
		require.NoError(t, s.Update(ctx, func(tx Tx) error {
			return tx.CompleteInteraction(id, Outcome{Success: true, ExecutionMs: &v})
		}))
	}

	var mean float64
	var n int
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		var err error
		mean, n, err = tx.ExecutionBaseline("analyze_general", 50)
		return err
	}))
	assert.Equal(t, 3, n)
	assert.InDelta(t, 2000, mean, 1e-9)

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		var err error
		mean, n, err = tx.ExecutionBaseline("implement_ui", 50)
		return err
	}))
	assert.Zero(t, n)
	assert.Zero(t, mean)
}

func TestEvictStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStorage(t, Options{CacheTTL: time.Minute, CacheSize: 16, BusyRetries: 3, Now: fixedClock(now)})

	old := PatternKey{Category: "analyze_general", Fingerprint: "old"}
	recent := PatternKey{Category: "analyze_general", Fingerprint: "recent"}

	for key, age := range map[PatternKey]time.Duration{old: 91 * 24 * time.Hour, recent: 89 * 24 * time.Hour} {
		lastUsed := now.Add(-age)
		_, err := s.UpsertPattern(ctx, key, func(p *Pattern) error {
			p.SuccessRate = 0.9
			p.UsageCount = 5
			p.LastUsed = lastUsed
			return nil
		})
		require.NoError(t, err)
	}
	_, err := s.RecordInteraction(ctx, Interaction{Timestamp: now.Add(-100 * 24 * time.Hour), UserID: "u1", Category: "analyze_general"})
	require.NoError(t, err)

	// Warm the cache so eviction must purge it.
	got, err := s.GetPattern(ctx, old)
	require.NoError(t, err)
	require.NotNil(t, got)

	res, err := s.EvictStale(ctx, 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Patterns)
	assert.Equal(t, int64(1), res.Interactions)

	got, err = s.GetPattern(ctx, old)
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetPattern(ctx, recent)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())

	_, err := s.RecordInteraction(ctx, Interaction{UserID: "u1", Category: "implement_ui"})
	require.NoError(t, err)
	_, err = s.UpsertPreference(ctx, PreferenceKey{UserID: "u1", ProjectFingerprint: "p", Dimension: "d"}, func(p *Preference) error {
		p.Weight = 1.1
		return nil
	})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Interactions: 1, PendingFeedback: 1, Patterns: 0, Preferences: 1}, st)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, DefaultOptions())

	key := PatternKey{Category: "implement_ui", Fingerprint: "small:ts:react"}
	_, err := s.UpsertPattern(ctx, key, func(p *Pattern) error {
		p.SuccessRate = 0.7
		p.UsageCount = 4
		return nil
	})
	require.NoError(t, err)
	_, err = s.RecordInteraction(ctx, Interaction{UserID: "u1", Category: "implement_ui"})
	require.NoError(t, err)

	// warm the cache so Clear must purge it
	got, err := s.GetPattern(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, got)

	require.NoError(t, s.Clear(ctx))

	got, err = s.GetPattern(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, got)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, st)
}

func TestHashProject(t *testing.T) {
	h1 := HashProject("/home/me/project")
	h2 := HashProject("/home/me/project")

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
	assert.NotEqual(t, h1, HashProject("/home/me/other"))
}

// TestGracefulDegradation verifies behavior when the DB is unavailable.
func TestGracefulDegradation(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewStorageAt(filepath.Join(blocker, "learning.db"), DefaultOptions())
	err := s.Init()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)

	ctx := context.Background()
	_, err = s.RecordInteraction(ctx, Interaction{UserID: "u1"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.GetPattern(ctx, PatternKey{Category: "c"})
	assert.ErrorIs(t, err, ErrUnavailable)

	err = s.Update(ctx, func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)

	assert.NoError(t, s.Close())
}

func TestApplyMigration_RollsBackOnFailure(t *testing.T) {
	s := newTestStorage(t, DefaultOptions())
	db := s.db.Load()

	broken := migration{version: 99, name: "broken", up: func(tx *sql.Tx) error {
		if _, err := tx.Exec(`CREATE TABLE scratch (id INTEGER)`); err != nil {
			return err
		}
		_, err := tx.Exec(`ALTER TABLE missing ADD COLUMN x TEXT`)
		return err
	}}
	require.Error(t, applyMigration(db, broken))

	var tables int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'scratch'`).Scan(&tables))
	assert.Zero(t, tables, "partial migration must be rolled back")

	version, err := currentMigrationVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	fixed := migration{version: 99, name: "fixed", up: func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE TABLE scratch (id INTEGER)`)
		return err
	}}
	require.NoError(t, applyMigration(db, fixed))

	version, err = currentMigrationVersion(db)
	require.NoError(t, err)
	assert.Equal(t, 99, version)
}

func TestReadCache_DropsFillAfterInvalidation(t *testing.T) {
	c := newReadCache(16, time.Minute)

	gen := c.generation()
	c.remove("pattern\x00a\x00b")
	assert.False(t, c.putIf("pattern\x00a\x00b", 1, gen), "fill older than the write is dropped")
	_, ok := c.get("pattern\x00a\x00b")
	assert.False(t, ok)

	gen = c.generation()
	assert.True(t, c.putIf("pattern\x00a\x00b", 2, gen))
	v, ok := c.get("pattern\x00a\x00b")
	require.True(t, ok)
	assert.Equal(t, 2, v)

	gen = c.generation()
	c.purge()
	assert.False(t, c.putIf("pattern\x00a\x00b", 3, gen))
}

func TestReadCache_Disabled(t *testing.T) {
	c := newReadCache(0, 0)
	assert.False(t, c.putIf("k", 1, c.generation()))
	_, ok := c.get("k")
	assert.False(t, ok)
	c.remove("k")
	c.purge()
}

func TestClose_LaterOperationsUnavailable(t *testing.T) {
	ctx := context.Background()
	s := NewStorageAt(filepath.Join(t.TempDir(), "learning.db"), DefaultOptions())
	require.NoError(t, s.Init())

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "second close is a no-op")

	_, err := s.GetPattern(ctx, PatternKey{Category: "c", Fingerprint: "f"})
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = s.RecordInteraction(ctx, Interaction{UserID: "u1"})
	assert.ErrorIs(t, err, ErrUnavailable)

	err = s.Update(ctx, func(Tx) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestInit_RepeatedCallReportsFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewStorageAt(filepath.Join(blocker, "learning.db"), DefaultOptions())
	first := s.Init()
	require.Error(t, first)
	assert.ErrorIs(t, s.Init(), ErrUnavailable)
}
