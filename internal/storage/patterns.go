package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const patternColumns = `category, context_fingerprint, success_rate, usage_count, last_used, flags`

// GetPattern returns the pattern for key, or nil when absent.
// Results, including absence, are cached until the next write to key.
func (s *SQLiteStorage) GetPattern(ctx context.Context, key PatternKey) (*Pattern, error) {
	db, err := s.conn("get pattern")
	if err != nil {
		return nil, err
	}

	ck := patternCacheKey(key)
	gen := s.cache.generation()
	if v, ok := s.cache.get(ck); ok {
		if p, _ := v.(*Pattern); p != nil {
			return p.clone(), nil
		}
		return nil, nil
	}

	p, err := getPattern(ctx, db, key)
	if err != nil {
		return nil, err
	}
	s.cache.putIf(ck, p.clone(), gen)
	return p, nil
}

// ListPatterns returns every pattern learned for a category.
func (s *SQLiteStorage) ListPatterns(ctx context.Context, category string) ([]Pattern, error) {
	db, err := s.conn("list patterns")
	if err != nil {
		return nil, err
	}

	ck := categoryCacheKey(category)
	gen := s.cache.generation()
	if v, ok := s.cache.get(ck); ok {
		if ps, ok := v.([]Pattern); ok {
			return clonePatterns(ps), nil
		}
	}

	ps, err := queryPatterns(ctx, db, `SELECT `+patternColumns+`
		FROM patterns WHERE category = ?
		ORDER BY context_fingerprint`, category)
	if err != nil {
		return nil, err
	}
	s.cache.putIf(ck, clonePatterns(ps), gen)
	return ps, nil
}

// AllPatterns returns every stored pattern ordered by category and fingerprint.
func (s *SQLiteStorage) AllPatterns(ctx context.Context) ([]Pattern, error) {
	db, err := s.conn("all patterns")
	if err != nil {
		return nil, err
	}
	return queryPatterns(ctx, db, `SELECT `+patternColumns+`
		FROM patterns ORDER BY category, context_fingerprint`)
}

// UpsertPattern atomically mutates the pattern for key in its own transaction.
func (s *SQLiteStorage) UpsertPattern(ctx context.Context, key PatternKey, fn func(*Pattern) error) (Pattern, error) {
	var out Pattern
	err := s.Update(ctx, func(tx Tx) error {
		p, err := tx.UpsertPattern(key, fn)
		out = p
		return err
	})
	return out, err
}

func getPattern(ctx context.Context, q querier, key PatternKey) (*Pattern, error) {
	row := q.QueryRowContext(ctx, `SELECT `+patternColumns+`
		FROM patterns WHERE category = ? AND context_fingerprint = ?`,
		key.Category, key.Fingerprint)

	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get pattern", err)
	}
	return p, nil
}

func queryPatterns(ctx context.Context, q querier, query string, args ...any) ([]Pattern, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list patterns", err)
	}
	defer rows.Close()

	var out []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, unavailable("scan pattern", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list patterns", err)
	}
	return out, nil
}

func writePattern(ctx context.Context, q querier, p Pattern) error {
	if p.SuccessRate < 0 || p.SuccessRate > 1 {
		return fmt.Errorf("pattern %s/%s: success rate %v out of range", p.Category, p.Fingerprint, p.SuccessRate)
	}
	if p.UsageCount < 0 {
		return fmt.Errorf("pattern %s/%s: negative usage count", p.Category, p.Fingerprint)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO patterns (`+patternColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(category, context_fingerprint) DO UPDATE SET
			success_rate = excluded.success_rate,
			usage_count = excluded.usage_count,
			last_used = excluded.last_used,
			flags = excluded.flags
	`, p.Category, p.Fingerprint, p.SuccessRate, p.UsageCount, formatTime(p.LastUsed), flagsToJSON(p.Flags))
	if err != nil {
		return unavailable("upsert pattern", err)
	}
	return nil
}

func scanPattern(r rowScanner) (*Pattern, error) {
	var (
		p        Pattern
		lastUsed string
		flags    string
	)
	if err := r.Scan(&p.Category, &p.Fingerprint, &p.SuccessRate, &p.UsageCount, &lastUsed, &flags); err != nil {
		return nil, err
	}

	var err error
	if p.LastUsed, err = parseTime(lastUsed); err != nil {
		return nil, fmt.Errorf("parse last_used: %w", err)
	}
	if p.Flags, err = jsonToFlags(flags); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}
	return &p, nil
}

func (p *Pattern) clone() *Pattern {
	if p == nil {
		return nil
	}
	c := *p
	c.Flags = append([]string(nil), p.Flags...)
	return &c
}

func clonePatterns(ps []Pattern) []Pattern {
	if ps == nil {
		return nil
	}
	out := make([]Pattern, len(ps))
	for i := range ps {
		out[i] = *ps[i].clone()
	}
	return out
}
