package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"sentinelshop/internal/cart"
	"sentinelshop/internal/logger"
)

// Database connection pool configuration
const (
	maxOpenConns    = 10
	maxIdleConns    = 2
	connMaxLifetime = time.Hour
	connMaxIdleTime = time.Minute * 15
	queryTimeout    = time.Second * 10
)

const snapshotTableSchema = `
    CREATE TABLE IF NOT EXISTS checkout_snapshots (
        session_id TEXT PRIMARY KEY,
        items_json TEXT NOT NULL DEFAULT '{}',
        total REAL NOT NULL DEFAULT 0,
        item_count INTEGER NOT NULL DEFAULT 0,
        created_at TEXT NOT NULL,
        created_unix INTEGER NOT NULL
    );
    CREATE INDEX IF NOT EXISTS idx_snapshots_created ON checkout_snapshots(created_unix);`

type SQLiteStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteStore opens (creating if needed) the snapshot database at path.
func NewSQLiteStore(path string, ttl time.Duration) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("snapshot database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrap(err, "failed to create snapshot directory")
		}
	}

	db, err := openWithRetry(path, 3)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// every connection would get its own empty database
		db.SetMaxOpenConns(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, snapshotTableSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create snapshot table")
	}

	return &SQLiteStore{db: db, ttl: ttl, now: time.Now}, nil
}

func openWithRetry(dataSourceName string, maxRetries int) (*sql.DB, error) {
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err := sql.Open("sqlite", dataSourceName)
		if err != nil {
			lastErr = err
			logger.LogWarn("Snapshot database open attempt %d failed: %v", attempt, err)
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
			continue
		}

		// Configure connection pool
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxIdleConns)
		db.SetConnMaxLifetime(connMaxLifetime)
		db.SetConnMaxIdleTime(connMaxIdleTime)

		ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
		err = db.PingContext(ctx)
		cancel()
		if err != nil {
			lastErr = err
			logger.LogWarn("Snapshot database ping attempt %d failed: %v", attempt, err)
			db.Close()
			time.Sleep(time.Duration(attempt) * 100 * time.Millisecond)
			continue
		}

		if err := enablePragmas(db); err != nil {
			logger.LogWarn("Failed to enable some database optimizations: %v", err)
		}

		logger.LogInfo("Snapshot database ready at %s (attempt %d)", dataSourceName, attempt)
		return db, nil
	}

	return nil, errors.Wrapf(lastErr, "failed to open snapshot database after %d attempts", maxRetries)
}

func enablePragmas(conn *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA temp_store = MEMORY",
	}

	var lastErr error
	for _, pragma := range pragmas {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		_, err := conn.ExecContext(ctx, pragma)
		cancel()

		if err != nil {
			logger.LogWarn("Failed to execute %s: %v", pragma, err)
			lastErr = err
		}
	}
	return lastErr
}

func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	itemsJSON, err := json.Marshal(rec.Items)
	if err != nil {
		return errors.Wrap(err, "failed to encode snapshot items")
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO checkout_snapshots (session_id, items_json, total, item_count, created_at, created_unix)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(session_id) DO UPDATE SET
            items_json = excluded.items_json,
            total = excluded.total,
            item_count = excluded.item_count,
            created_at = excluded.created_at,
            created_unix = excluded.created_unix`,
		rec.SessionID, string(itemsJSON), rec.Total, rec.Count,
		rec.Timestamp.UTC().Format(time.RFC3339Nano), rec.Timestamp.UnixNano())
	if err != nil {
		return errors.Wrapf(err, "failed to save snapshot %s", rec.SessionID)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var (
		itemsJSON string
		createdAt string
		rec       = Record{SessionID: sessionID}
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT items_json, total, item_count, created_at
        FROM checkout_snapshots WHERE session_id = ?`, sessionID).
		Scan(&itemsJSON, &rec.Total, &rec.Count, &createdAt)
	if err == sql.ErrNoRows {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, errors.Wrapf(err, "failed to load snapshot %s", sessionID)
	}

	rec.Timestamp, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, errors.Wrapf(err, "invalid timestamp on snapshot %s", sessionID)
	}
	if expired(rec.Timestamp, s.ttl, s.now()) {
		return Record{}, ErrNotFound
	}

	rec.Items = make(map[string]cart.Line)
	if err := json.Unmarshal([]byte(itemsJSON), &rec.Items); err != nil {
		return Record{}, errors.Wrapf(err, "failed to decode snapshot %s", sessionID)
	}
	return rec, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, before time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM checkout_snapshots WHERE created_unix < ?`, before.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge snapshots")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count purged snapshots")
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
