package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const (
	// MinPreferenceWeight and MaxPreferenceWeight bound every stored weight.
	MinPreferenceWeight = 0.1
	MaxPreferenceWeight = 2.0
)

// GetPreference returns the stored preference, or the neutral default
// (weight 1.0, Stored false) when none exists.
func (s *SQLiteStorage) GetPreference(ctx context.Context, key PreferenceKey) (Preference, error) {
	db, err := s.conn("get preference")
	if err != nil {
		return Preference{}, err
	}

	ck := preferenceCacheKey(key)
	gen := s.cache.generation()
	if v, ok := s.cache.get(ck); ok {
		if p, ok := v.(Preference); ok {
			return p, nil
		}
	}

	p, err := getPreference(ctx, db, key)
	if err != nil {
		return Preference{}, err
	}
	s.cache.putIf(ck, p, gen)
	return p, nil
}

// ListPreferences returns all stored preferences of a user, highest weight first.
func (s *SQLiteStorage) ListPreferences(ctx context.Context, userID string) ([]Preference, error) {
	db, err := s.conn("list preferences")
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT user_id, project_fingerprint, dimension, weight, updated_at
		FROM preferences
		WHERE user_id = ?
		ORDER BY weight DESC, dimension, project_fingerprint
	`, userID)
	if err != nil {
		return nil, unavailable("list preferences", err)
	}
	defer rows.Close()

	var out []Preference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			return nil, unavailable("scan preference", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list preferences", err)
	}
	return out, nil
}

// UpsertPreference atomically mutates the preference for key in its own transaction.
func (s *SQLiteStorage) UpsertPreference(ctx context.Context, key PreferenceKey, fn func(*Preference) error) (Preference, error) {
	var out Preference
	err := s.Update(ctx, func(tx Tx) error {
		p, err := tx.UpsertPreference(key, fn)
		out = p
		return err
	})
	return out, err
}

func getPreference(ctx context.Context, q querier, key PreferenceKey) (Preference, error) {
	row := q.QueryRowContext(ctx, `
		SELECT user_id, project_fingerprint, dimension, weight, updated_at
		FROM preferences
		WHERE user_id = ? AND project_fingerprint = ? AND dimension = ?
	`, key.UserID, key.ProjectFingerprint, key.Dimension)

	p, err := scanPreference(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Preference{PreferenceKey: key, Weight: DefaultPreferenceWeight}, nil
	}
	if err != nil {
		return Preference{}, unavailable("get preference", err)
	}
	return p, nil
}

func writePreference(ctx context.Context, q querier, p Preference) error {
	if p.Weight < MinPreferenceWeight || p.Weight > MaxPreferenceWeight {
		return fmt.Errorf("preference %s: weight %v out of range", p.Dimension, p.Weight)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO preferences (user_id, project_fingerprint, dimension, weight, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, project_fingerprint, dimension) DO UPDATE SET
			weight = excluded.weight,
			updated_at = excluded.updated_at
	`, p.UserID, p.ProjectFingerprint, p.Dimension, p.Weight, formatTime(p.UpdatedAt))
	if err != nil {
		return unavailable("upsert preference", err)
	}
	return nil
}

func scanPreference(r rowScanner) (Preference, error) {
	var (
		p         Preference
		updatedAt string
	)
	if err := r.Scan(&p.UserID, &p.ProjectFingerprint, &p.Dimension, &p.Weight, &updatedAt); err != nil {
		return Preference{}, err
	}

	t, err := parseTime(updatedAt)
	if err != nil {
		return Preference{}, fmt.Errorf("parse updated_at: %w", err)
	}
	p.UpdatedAt = t
	p.Stored = true
	return p, nil
}
