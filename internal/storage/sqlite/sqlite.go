package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite driver

	"ventgate/internal/storage"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 200
)

// Store реализует storage.Store поверх SQLite.
type Store struct {
	db *sql.DB
}

// Open инициализирует соединение и выполняет миграции.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_journal=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			request_id TEXT,
			capability TEXT NOT NULL,
			status TEXT NOT NULL,
			error_kind TEXT,
			duration_ms INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_ts ON invocations(ts);`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_capability_ts ON invocations(capability, ts);`,
		`CREATE TABLE IF NOT EXISTS runtime_samples (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			pid INTEGER NOT NULL,
			cpu_percent REAL NOT NULL,
			rss_bytes INTEGER NOT NULL,
			threads INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runtime_samples_ts ON runtime_samples(ts);`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// SaveInvocation сохраняет запись о вызове.
func (s *Store) SaveInvocation(ctx context.Context, rec storage.InvocationRecord) error {
	ts := rec.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO invocations(request_id, capability, status, error_kind, duration_ms, ts) VALUES(?,?,?,?,?,?)`,
		rec.RequestID, rec.Capability, rec.Status, rec.ErrorKind, rec.DurationMS, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// QueryInvocations возвращает вызовы по фильтрам, новые первыми.
func (s *Store) QueryInvocations(ctx context.Context, q storage.InvocationQuery) ([]storage.InvocationRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}
	if limit > maxQueryLimit {
		limit = maxQueryLimit
	}

	from := q.From
	if from.IsZero() {
		from = time.Unix(0, 0)
	}
	to := q.To
	if to.IsZero() {
		to = time.Now()
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT request_id, capability, status, error_kind, duration_ms, ts
FROM invocations
WHERE ts >= ? AND ts <= ? AND (? = '' OR capability = ?)
ORDER BY ts DESC, id DESC
LIMIT ?`, from.UTC(), to.UTC(), q.Capability, q.Capability, limit)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	records := make([]storage.InvocationRecord, 0, limit)
	for rows.Next() {
		var rec storage.InvocationRecord
		var requestID, errorKind sql.NullString
		var ts string
		if err := rows.Scan(&requestID, &rec.Capability, &rec.Status, &errorKind, &rec.DurationMS, &ts); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		rec.RequestID = requestID.String
		rec.ErrorKind = errorKind.String
		parsedTS, err := parseSQLiteTS(ts)
		if err != nil {
			return nil, fmt.Errorf("parse invocation timestamp: %w", err)
		}
		rec.TS = parsedTS
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invocations: %w", err)
	}
	return records, nil
}

// SaveSample сохраняет снимок рантайма.
func (s *Store) SaveSample(ctx context.Context, sample storage.RuntimeSample) error {
	ts := sample.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO runtime_samples(pid, cpu_percent, rss_bytes, threads, ts) VALUES(?,?,?,?,?)`,
		sample.PID, sample.CPUPercent, int64(sample.RSSBytes), sample.Threads, ts.UTC())
	if err != nil {
		return fmt.Errorf("insert runtime sample: %w", err)
	}
	return nil
}

// LatestSample возвращает последний снимок рантайма.
func (s *Store) LatestSample(ctx context.Context) (storage.RuntimeSample, error) {
	row := s.db.QueryRowContext(ctx, `SELECT pid, cpu_percent, rss_bytes, threads, ts FROM runtime_samples ORDER BY ts DESC, id DESC LIMIT 1`)
	var sample storage.RuntimeSample
	var rss int64
	var ts string
	if err := row.Scan(&sample.PID, &sample.CPUPercent, &rss, &sample.Threads, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.RuntimeSample{}, fmt.Errorf("latest runtime sample: %w", storage.ErrNotFound)
		}
		return storage.RuntimeSample{}, fmt.Errorf("query latest runtime sample: %w", err)
	}
	sample.RSSBytes = uint64(rss)
	parsedTS, err := parseSQLiteTS(ts)
	if err != nil {
		return storage.RuntimeSample{}, fmt.Errorf("parse sample timestamp: %w", err)
	}
	sample.TS = parsedTS
	return sample, nil
}

// Prune удаляет записи старше before.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"invocations", "runtime_samples"} {
		res, err := s.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE ts < ?`, before.UTC())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		total += n
	}
	return total, nil
}

func parseSQLiteTS(v string) (time.Time, error) {
	layouts := []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02 15:04:05",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported sqlite time format: %q", v)
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}
