package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"henkan/internal/logging"
	"henkan/internal/usagestats"
)

const defaultBusyTimeout = 5 * time.Second

// Store persists usage statistics. It implements usagestats.Backend.
type Store struct {
	db  *sql.DB
	log *logging.Logger
	now func() time.Time
}

var _ usagestats.Backend = (*Store)(nil)

// Option configures a Store.
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	log         *logging.Logger
}

// WithBusyTimeout sets how long a write waits for a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.busyTimeout = d
		}
	}
}

// WithLogger replaces the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Open opens or creates the SQLite database at the given path and runs migrations.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{busyTimeout: defaultBusyTimeout, log: logging.Component("store")}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d", path, o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := MigrateDB(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	o.log.Debug("store opened", "path", path)
	return &Store{db: db, log: o.log, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// DB exposes the underlying handle for migration tooling.
func (s *Store) DB() *sql.DB { return s.db }

// AddCounts adds counts to the persisted counters.
func (s *Store) AddCounts(ctx context.Context, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_counters (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			value = value + excluded.value,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixNano()
	for name, v := range counts {
		if _, err := stmt.ExecContext(ctx, name, v, now); err != nil {
			return fmt.Errorf("add counter %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.log.Debug("counters flushed", "count", len(counts))
	return nil
}

// AddTimings merges timings into the persisted aggregates.
func (s *Store) AddTimings(ctx context.Context, timings map[string]usagestats.Timing) error {
	if len(timings) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO usage_timings (name, count, total_ns, min_ns, max_ns, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			count = count + excluded.count,
			total_ns = total_ns + excluded.total_ns,
			min_ns = CASE WHEN count = 0 OR excluded.min_ns < min_ns THEN excluded.min_ns ELSE min_ns END,
			max_ns = MAX(max_ns, excluded.max_ns),
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	now := s.now().UnixNano()
	for name, t := range timings {
		if t.Count == 0 {
			continue
		}
		if _, err := stmt.ExecContext(ctx, name, t.Count, int64(t.Total), int64(t.Min), int64(t.Max), now); err != nil {
			return fmt.Errorf("add timing %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Count returns one counter, zero when it was never written.
func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	var v int64
	err := s.db.QueryRowContext(ctx, `SELECT value FROM usage_counters WHERE name = ?`, name).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", name, err)
	}
	return v, nil
}

// Counters returns every counter whose name starts with prefix, by name.
func (s *Store) Counters(ctx context.Context, prefix string) ([]Counter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, value, updated_at FROM usage_counters
		WHERE substr(name, 1, length(?)) = ?
		ORDER BY name ASC`, prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	var out []Counter
	for rows.Next() {
		var c Counter
		var updated int64
		if err := rows.Scan(&c.Name, &c.Value, &updated); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		c.UpdatedAt = time.Unix(0, updated)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return out, nil
}

// Timings returns every timing aggregate by name.
func (s *Store) Timings(ctx context.Context) ([]Timing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, count, total_ns, min_ns, max_ns, updated_at
		FROM usage_timings ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query timings: %w", err)
	}
	defer rows.Close()

	var out []Timing
	for rows.Next() {
		var t Timing
		var total, minNs, maxNs, updated int64
		if err := rows.Scan(&t.Name, &t.Count, &total, &minNs, &maxNs, &updated); err != nil {
			return nil, fmt.Errorf("scan timing: %w", err)
		}
		t.Total = time.Duration(total)
		t.Min = time.Duration(minNs)
		t.Max = time.Duration(maxNs)
		t.UpdatedAt = time.Unix(0, updated)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timings: %w", err)
	}
	return out, nil
}

// Reset deletes every counter and timing.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM usage_counters; DELETE FROM usage_timings;`); err != nil {
		return fmt.Errorf("reset usage stats: %w", err)
	}
	s.log.Info("usage stats reset")
	return nil
}
