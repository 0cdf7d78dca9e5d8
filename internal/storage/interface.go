/*
Package storage implements the persistent learning store.

It keeps three relations in SQLite: interactions, patterns and preferences.
Pattern and preference mutations run inside a single immediate-mode
transaction so concurrent feedback for the same key never loses an update.
Reads on the recommendation path go through a short-lived cache that is
invalidated on every write to the same key.

The database lives at ~/.autoflags/learning.db and uses modernc.org/sqlite
(a pure Go, CGo-free implementation).
*/
package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Storage defines the persistent store consumed by the learning engine.
type Storage interface {
	// Init opens the database and runs migrations.
	Init() error

	// RecordInteraction appends an interaction and returns its id.
	RecordInteraction(ctx context.Context, in Interaction) (int64, error)

	// GetInteraction loads one interaction by id.
	GetInteraction(ctx context.Context, id int64) (*Interaction, error)

	// ListInteractions returns a user's interactions since a point in time, newest first.
	ListInteractions(ctx context.Context, userID string, since time.Time) ([]Interaction, error)

	// GetPattern returns the pattern for key, or nil when absent.
	GetPattern(ctx context.Context, key PatternKey) (*Pattern, error)

	// ListPatterns returns every pattern learned for a category.
	ListPatterns(ctx context.Context, category string) ([]Pattern, error)

	// AllPatterns returns every stored pattern, uncached.
	AllPatterns(ctx context.Context) ([]Pattern, error)

	// UpsertPattern atomically mutates the pattern for key.
	UpsertPattern(ctx context.Context, key PatternKey, fn func(*Pattern) error) (Pattern, error)

	// GetPreference returns the stored preference or the neutral default.
	GetPreference(ctx context.Context, key PreferenceKey) (Preference, error)

	// ListPreferences returns all stored preferences of a user.
	ListPreferences(ctx context.Context, userID string) ([]Preference, error)

	// UpsertPreference atomically mutates the preference for key.
	UpsertPreference(ctx context.Context, key PreferenceKey, fn func(*Preference) error) (Preference, error)

	// Update runs fn inside one write transaction, retrying on lock contention.
	Update(ctx context.Context, fn func(Tx) error) error

	// EvictStale removes patterns and interactions unused for longer than maxAge.
	EvictStale(ctx context.Context, maxAge time.Duration) (EvictionResult, error)

	// Stats returns row counts for reporting.
	Stats(ctx context.Context) (Stats, error)

	// Close closes the database connection.
	Close() error
}

// Tx is the mutation surface available inside Update.
// Reads inside a Tx never hit the cache.
type Tx interface {
	GetInteraction(id int64) (*Interaction, error)
	CompleteInteraction(id int64, outcome Outcome) error
	GetPattern(key PatternKey) (*Pattern, error)
	UpsertPattern(key PatternKey, fn func(*Pattern) error) (Pattern, error)
	GetPreference(key PreferenceKey) (Preference, error)
	UpsertPreference(key PreferenceKey, fn func(*Preference) error) (Preference, error)

	// ExecutionBaseline returns the mean execution time of the last n
	// completed interactions of a category and how many contributed.
	ExecutionBaseline(category string, n int) (float64, int, error)
}

// Options tunes a SQLiteStorage.
type Options struct {
	// CacheTTL bounds how long a cached read may be served. Zero disables caching.
	CacheTTL time.Duration

	// CacheSize is the maximum number of cached keys.
	CacheSize int

	// BusyRetries is how many times a write transaction is retried on lock contention.
	BusyRetries int

	// Logger receives degradation warnings. Nil means no logging.
	Logger *zap.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// DefaultOptions returns the options used by NewStorage.
func DefaultOptions() Options {
	return Options{
		CacheTTL:    5 * time.Minute,
		CacheSize:   1024,
		BusyRetries: 5,
	}
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db       atomic.Pointer[sql.DB] // nil until Init succeeds and after Close
	dbPath   string
	enabled  bool // fixed at construction
	opts     Options
	log      *zap.Logger
	cache    *readCache
	mu       sync.Mutex // serializes writers within the process
	initOnce sync.Once
	initErr  error
}

// DefaultPath returns ~/.autoflags/learning.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".autoflags", "learning.db"), nil
}

// NewStorage creates a storage instance at the default path.
//
// If the home directory cannot be resolved the storage is created disabled:
// every operation then reports ErrUnavailable instead of panicking.
func NewStorage(logger *zap.Logger) *SQLiteStorage {
	opts := DefaultOptions()
	opts.Logger = logger

	path, err := DefaultPath()
	if err != nil {
		s := NewStorageAt("", opts)
		s.log.Warn("learning store disabled", zap.Error(err))
		s.enabled = false
		return s
	}
	return NewStorageAt(path, opts)
}

// NewStorageAt creates a storage instance for an explicit database path.
func NewStorageAt(path string, opts Options) *SQLiteStorage {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BusyRetries <= 0 {
		opts.BusyRetries = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLiteStorage{
		dbPath:  path,
		enabled: path != "",
		opts:    opts,
		log:     logger.Named("storage"),
		cache:   newReadCache(opts.CacheSize, opts.CacheTTL),
	}
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string { return s.dbPath }

// Init initializes the database and runs migrations.
//
// If initialization fails, storage stays disabled and subsequent operations
// report ErrUnavailable (graceful degradation).
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return unavailable("init", fmt.Errorf("storage disabled"))
	}

	s.initOnce.Do(func() {
		dbDir := filepath.Dir(s.dbPath)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			s.initErr = unavailable("create db directory", err)
			return
		}

		db, err := sql.Open("sqlite", s.dsn())
		if err != nil {
			s.initErr = unavailable("open database", err)
			s.log.Warn("failed to open database", zap.Error(err))
			return
		}

		if err := db.Ping(); err != nil {
			_ = db.Close()
			s.initErr = unavailable("ping database", err)
			s.log.Warn("failed to ping database", zap.Error(err))
			return
		}

		if err := s.runMigrations(db); err != nil {
			_ = db.Close()
			s.initErr = unavailable("run migrations", err)
			s.log.Warn("failed to run migrations", zap.Error(err))
			return
		}

		s.db.Store(db)
	})

	return s.initErr
}

// dsn builds the driver connection string. Pragmas are applied per
// connection; _txlock=immediate makes BEGIN take the write lock up front.
func (s *SQLiteStorage) dsn() string {
	return s.dbPath +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_txlock=immediate"
}

// conn returns the open database, or ErrUnavailable when it cannot serve op.
// Queries already running on a returned handle finish before Close returns.
func (s *SQLiteStorage) conn(op string) (*sql.DB, error) {
	db := s.db.Load()
	if !s.enabled || db == nil {
		return nil, unavailable(op, fmt.Errorf("storage not initialized"))
	}
	return db, nil
}

// Close closes the database connection. Later operations report ErrUnavailable.
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db := s.db.Swap(nil)
	if db == nil {
		return nil
	}
	s.cache.purge()

	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// HashProject creates a SHA256 fingerprint of a project path.
func HashProject(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:])
}

// timeLayout is fixed-width so stored timestamps compare lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
