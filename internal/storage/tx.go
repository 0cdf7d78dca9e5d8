package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqlTx implements Tx over one immediate-mode SQLite transaction.
type sqlTx struct {
	ctx     context.Context
	tx      *sql.Tx
	now     time.Time
	touched []string
	purge   bool
}

// Update runs fn inside one write transaction.
//
// Writers within the process are serialized by a mutex; writers in other
// processes are serialized by SQLite's write lock, taken at BEGIN. When the
// lock cannot be acquired the whole transaction is retried with backoff, so
// fn must be safe to run more than once. Keys written by fn are evicted
// from the read cache after commit, which also discards any cache fill
// that raced with the write.
func (s *SQLiteStorage) Update(ctx context.Context, fn func(Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn("update")
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < s.opts.BusyRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt*attempt) * 20 * time.Millisecond
			select {
			case <-ctx.Done():
				return unavailable("update", ctx.Err())
			case <-time.After(backoff):
			}
		}

		t, err := s.runTx(ctx, db, fn)
		if err == nil {
			if t.purge {
				s.cache.purge()
			} else {
				s.cache.remove(t.touched...)
			}
			return nil
		}
		if !isBusy(err) {
			return err
		}

		lastErr = err
		s.log.Debug("write transaction busy, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}

	s.log.Warn("write transaction gave up after retries",
		zap.Int("retries", s.opts.BusyRetries),
		zap.Error(lastErr))
	return unavailable("update", lastErr)
}

func (s *SQLiteStorage) runTx(ctx context.Context, db *sql.DB, fn func(Tx) error) (*sqlTx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin transaction", err)
	}

	t := &sqlTx{ctx: ctx, tx: tx, now: s.opts.Now()}
	if err := fn(t); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		return nil, unavailable("commit transaction", err)
	}
	return t, nil
}

// isBusy reports whether err came from SQLite lock contention.
func isBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}

func (t *sqlTx) GetInteraction(id int64) (*Interaction, error) {
	return getInteraction(t.ctx, t.tx, id)
}

func (t *sqlTx) CompleteInteraction(id int64, outcome Outcome) error {
	if outcome.RecordedAt.IsZero() {
		outcome.RecordedAt = t.now
	}
	return completeInteraction(t.ctx, t.tx, id, outcome)
}

func (t *sqlTx) GetPattern(key PatternKey) (*Pattern, error) {
	return getPattern(t.ctx, t.tx, key)
}

// UpsertPattern loads the current pattern (or a zero pattern for a new key),
// applies fn and writes the result back.
func (t *sqlTx) UpsertPattern(key PatternKey, fn func(*Pattern) error) (Pattern, error) {
	cur, err := getPattern(t.ctx, t.tx, key)
	if err != nil {
		return Pattern{}, err
	}

	p := Pattern{PatternKey: key, LastUsed: t.now}
	if cur != nil {
		p = *cur
	}
	if err := fn(&p); err != nil {
		return Pattern{}, err
	}
	p.PatternKey = key

	if err := writePattern(t.ctx, t.tx, p); err != nil {
		return Pattern{}, err
	}
	t.touched = append(t.touched, patternCacheKey(key), categoryCacheKey(key.Category))
	return p, nil
}

func (t *sqlTx) GetPreference(key PreferenceKey) (Preference, error) {
	return getPreference(t.ctx, t.tx, key)
}

func (t *sqlTx) UpsertPreference(key PreferenceKey, fn func(*Preference) error) (Preference, error) {
	p, err := getPreference(t.ctx, t.tx, key)
	if err != nil {
		return Preference{}, err
	}
	p.UpdatedAt = t.now
	if err := fn(&p); err != nil {
		return Preference{}, err
	}
	p.PreferenceKey = key

	if err := writePreference(t.ctx, t.tx, p); err != nil {
		return Preference{}, err
	}
	p.Stored = true
	t.touched = append(t.touched, preferenceCacheKey(key))
	return p, nil
}

func (t *sqlTx) ExecutionBaseline(category string, n int) (float64, int, error) {
	return executionBaseline(t.ctx, t.tx, category, n)
}
