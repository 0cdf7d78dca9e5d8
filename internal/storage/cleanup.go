package storage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// EvictStale removes patterns whose last use, and interactions whose
// timestamp, is older than maxAge. Preferences are never evicted.
func (s *SQLiteStorage) EvictStale(ctx context.Context, maxAge time.Duration) (EvictionResult, error) {
	if maxAge <= 0 {
		return EvictionResult{}, fmt.Errorf("max age must be positive, got %s", maxAge)
	}

	var res EvictionResult
	err := s.Update(ctx, func(tx Tx) error {
		t := tx.(*sqlTx)
		cutoff := formatTime(t.now.Add(-maxAge))

		r, err := t.tx.ExecContext(t.ctx, `DELETE FROM patterns WHERE last_used < ?`, cutoff)
		if err != nil {
			return unavailable("evict patterns", err)
		}
		if res.Patterns, err = r.RowsAffected(); err != nil {
			return unavailable("evict patterns", err)
		}

		r, err = t.tx.ExecContext(t.ctx, `DELETE FROM interactions WHERE timestamp < ?`, cutoff)
		if err != nil {
			return unavailable("evict interactions", err)
		}
		if res.Interactions, err = r.RowsAffected(); err != nil {
			return unavailable("evict interactions", err)
		}

		t.purge = true
		return nil
	})
	if err != nil {
		return EvictionResult{}, err
	}

	if res.Patterns > 0 || res.Interactions > 0 {
		s.log.Info("evicted stale learning data",
			zap.Int64("patterns", res.Patterns),
			zap.Int64("interactions", res.Interactions),
			zap.Duration("max_age", maxAge))
	}
	return res, nil
}

// Stats returns row counts across the three relations.
func (s *SQLiteStorage) Stats(ctx context.Context) (Stats, error) {
	db, err := s.conn("stats")
	if err != nil {
		return Stats{}, err
	}

	var st Stats
	err = db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM interactions),
			(SELECT COUNT(*) FROM interactions WHERE feedback_at IS NULL),
			(SELECT COUNT(*) FROM patterns),
			(SELECT COUNT(*) FROM preferences)
	`).Scan(&st.Interactions, &st.PendingFeedback, &st.Patterns, &st.Preferences)
	if err != nil {
		return Stats{}, unavailable("stats", err)
	}
	return st, nil
}

// Clear deletes every interaction, pattern and preference. The schema is kept.
func (s *SQLiteStorage) Clear(ctx context.Context) error {
	err := s.Update(ctx, func(tx Tx) error {
		t := tx.(*sqlTx)
		for _, table := range []string{"interactions", "patterns", "preferences"} {
			if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM "+table); err != nil {
				return unavailable("clear "+table, err)
			}
		}
		t.purge = true
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("cleared learning data")
	return nil
}
