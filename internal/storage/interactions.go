package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const interactionColumns = `
	id, timestamp, user_id, project_fingerprint, category, context_fingerprint,
	dimension, flags_issued, source, confidence,
	success, rating, execution_ms, actual_flags, feedback_at`

// RecordInteraction appends a new interaction. It needs no pattern or
// preference to exist and never touches learned state.
func (s *SQLiteStorage) RecordInteraction(ctx context.Context, in Interaction) (int64, error) {
	db, err := s.conn("record interaction")
	if err != nil {
		return 0, err
	}

	if in.Timestamp.IsZero() {
		in.Timestamp = s.opts.Now()
	}
	if in.Source == "" {
		in.Source = "static"
	}

	query := `
		INSERT INTO interactions (timestamp, user_id, project_fingerprint, category,
			context_fingerprint, dimension, flags_issued, source, confidence)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := db.ExecContext(ctx, query,
		formatTime(in.Timestamp),
		in.UserID,
		in.ProjectFingerprint,
		in.Category,
		in.ContextFingerprint,
		in.Dimension,
		flagsToJSON(in.FlagsIssued),
		in.Source,
		in.Confidence,
	)
	if err != nil {
		return 0, unavailable("record interaction", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("record interaction", err)
	}
	return id, nil
}

// GetInteraction loads one interaction by id.
func (s *SQLiteStorage) GetInteraction(ctx context.Context, id int64) (*Interaction, error) {
	db, err := s.conn("get interaction")
	if err != nil {
		return nil, err
	}
	return getInteraction(ctx, db, id)
}

// ListInteractions returns a user's interactions since a point in time, newest first.
func (s *SQLiteStorage) ListInteractions(ctx context.Context, userID string, since time.Time) ([]Interaction, error) {
	db, err := s.conn("list interactions")
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + interactionColumns + `
		FROM interactions
		WHERE user_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC, id DESC
	`

	rows, err := db.QueryContext(ctx, query, userID, formatTime(since))
	if err != nil {
		return nil, unavailable("list interactions", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, unavailable("scan interaction", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list interactions", err)
	}

	return out, nil
}

func getInteraction(ctx context.Context, q querier, id int64) (*Interaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE id = ?`, id)
	in, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("interaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("get interaction", err)
	}
	return in, nil
}

// completeInteraction writes the outcome exactly once.
func completeInteraction(ctx context.Context, q querier, id int64, o Outcome) error {
	var rating, execMs any
	if o.Rating != nil {
		rating = *o.Rating
	}
	if o.ExecutionMs != nil {
		execMs = *o.ExecutionMs
	}
	var actual any
	if len(o.ActualFlags) > 0 {
		actual = flagsToJSON(o.ActualFlags)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE interactions
		SET success = ?, rating = ?, execution_ms = ?, actual_flags = ?, feedback_at = ?
		WHERE id = ? AND feedback_at IS NULL
	`, boolToInt(o.Success), rating, execMs, actual, formatTime(o.RecordedAt), id)
	if err != nil {
		return unavailable("complete interaction", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("complete interaction", err)
	}
	if n == 1 {
		return nil
	}

	var exists int
	err = q.QueryRowContext(ctx, `SELECT 1 FROM interactions WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("interaction %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return unavailable("complete interaction", err)
	}
	return fmt.Errorf("interaction %d: %w", id, ErrAlreadyRecorded)
}

// executionBaseline averages execution_ms over the last n completed
// interactions of a category.
func executionBaseline(ctx context.Context, q querier, category string, n int) (float64, int, error) {
	if n <= 0 {
		return 0, 0, nil
	}

	var avg sql.NullFloat64
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT AVG(execution_ms), COUNT(execution_ms) FROM (
			SELECT execution_ms FROM interactions
			WHERE category = ? AND feedback_at IS NOT NULL AND execution_ms IS NOT NULL
			ORDER BY feedback_at DESC
			LIMIT ?
		)
	`, category, n).Scan(&avg, &count)
	if err != nil {
		return 0, 0, unavailable("execution baseline", err)
	}
	if !avg.Valid {
		return 0, 0, nil
	}
	return avg.Float64, count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInteraction(r rowScanner) (*Interaction, error) {
	var (
		in                 Interaction
		ts, flags          string
		success, rating    sql.NullInt64
		execMs             sql.NullInt64
		actual, feedbackAt sql.NullString
	)

	if err := r.Scan(
		&in.ID, &ts, &in.UserID, &in.ProjectFingerprint, &in.Category, &in.ContextFingerprint,
		&in.Dimension, &flags, &in.Source, &in.Confidence,
		&success, &rating, &execMs, &actual, &feedbackAt,
	); err != nil {
		return nil, err
	}

	var err error
	if in.Timestamp, err = parseTime(ts); err != nil {
		return nil, fmt.Errorf("parse timestamp: %w", err)
	}
	if in.FlagsIssued, err = jsonToFlags(flags); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if feedbackAt.Valid {
		o := &Outcome{Success: success.Valid && success.Int64 == 1}
		if rating.Valid {
			v := int(rating.Int64)
			o.Rating = &v
		}
		if execMs.Valid {
			v := execMs.Int64
			o.ExecutionMs = &v
		}
		if actual.Valid {
			if o.ActualFlags, err = jsonToFlags(actual.String); err != nil {
				return nil, fmt.Errorf("parse actual flags: %w", err)
			}
		}
		if o.RecordedAt, err = parseTime(feedbackAt.String); err != nil {
			return nil, fmt.Errorf("parse feedback time: %w", err)
		}
		in.Outcome = o
	}

	return &in, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
