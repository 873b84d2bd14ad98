package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/taskmate/tmbot/internal/domain"
	"github.com/taskmate/tmbot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store on a local SQLite file. Expiry is enforced
// on read and by PurgeExpired.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

var (
	_ Store  = (*SQLiteStore)(nil)
	_ Purger = (*SQLiteStore)(nil)
)

// NewSQLite opens (and creates if needed) the database at dbPath.
func NewSQLite(dbPath string, opts ...Option) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: sqlite path is required", ErrInvalidConfig)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection. WAL lets the
	// scanner read while the bot writes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	s := &SQLiteStore{db: db, opts: o}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		chat_id INTEGER PRIMARY KEY,
		data TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);

	CREATE TABLE IF NOT EXISTS deliveries (
		chat_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		event_key TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (chat_id, category, event_key)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) nowMillis() int64 {
	return s.opts.now().UnixMilli()
}

// PutSession upserts the session row with a new expiry.
func (s *SQLiteStore) PutSession(ctx context.Context, chatID int64, sess *domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	query := `
	INSERT INTO sessions (chat_id, data, expires_at) VALUES (?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		data = excluded.data,
		expires_at = excluded.expires_at`

	expires := s.opts.now().Add(ttl).UnixMilli()
	return shared.RetrySQLite(ctx, "put session", func() error {
		_, err := s.db.ExecContext(ctx, query, chatID, string(data), expires)
		return err
	})
}

// GetSession returns nil for missing or expired rows.
func (s *SQLiteStore) GetSession(ctx context.Context, chatID int64) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT data FROM sessions WHERE chat_id = ? AND expires_at > ?`, chatID, s.nowMillis())

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}
	return &sess, nil
}

// TouchSession extends a live session. Expired rows are left alone.
func (s *SQLiteStore) TouchSession(ctx context.Context, chatID int64, ttl time.Duration) error {
	now := s.opts.now()
	return shared.RetrySQLite(ctx, "touch session", func() error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE sessions SET expires_at = ? WHERE chat_id = ? AND expires_at > ?`,
			now.Add(ttl).UnixMilli(), chatID, now.UnixMilli())
		return err
	})
}

// DeleteSession removes the session row.
func (s *SQLiteStore) DeleteSession(ctx context.Context, chatID int64) error {
	return shared.RetrySQLite(ctx, "delete session", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE chat_id = ?`, chatID)
		return err
	})
}

// ListSessions returns all unexpired sessions.
func (s *SQLiteStore) ListSessions(ctx context.Context) (map[int64]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, data FROM sessions WHERE expires_at > ?`, s.nowMillis())
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*domain.Session)
	for rows.Next() {
		var chatID int64
		var data string
		if err := rows.Scan(&chatID, &data); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		var sess domain.Session
		if err := json.Unmarshal([]byte(data), &sess); err != nil {
			s.opts.logger.Warn("Skipping unreadable session", "chat_id", chatID, "error", err)
			continue
		}
		out[chatID] = &sess
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return out, nil
}

// PurgeExpired deletes sessions whose expiry has passed.
func (s *SQLiteStore) PurgeExpired(ctx context.Context) (int64, error) {
	var deleted int64
	err := shared.RetrySQLite(ctx, "purge sessions", func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, s.nowMillis())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

// WasDelivered checks for a ledger row.
func (s *SQLiteStore) WasDelivered(ctx context.Context, chatID int64, category domain.Category, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM deliveries WHERE chat_id = ? AND category = ? AND event_key = ?`,
		chatID, string(category), key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check delivered: %w", err)
	}
	return true, nil
}

// MarkDelivered inserts a ledger row, ignoring duplicates.
func (s *SQLiteStore) MarkDelivered(ctx context.Context, chatID int64, category domain.Category, key string) error {
	return s.MarkDeliveredBulk(ctx, chatID, category, []string{key})
}

// MarkDeliveredBulk inserts all keys in one transaction.
func (s *SQLiteStore) MarkDeliveredBulk(ctx context.Context, chatID int64, category domain.Category, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	now := s.nowMillis()
	return shared.RetrySQLite(ctx, "mark delivered", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR IGNORE INTO deliveries (chat_id, category, event_key, created_at) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, k := range keys {
			if _, err := stmt.ExecContext(ctx, chatID, string(category), k, now); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ClearAll deletes every ledger row for the chat.
func (s *SQLiteStore) ClearAll(ctx context.Context, chatID int64) error {
	return shared.RetrySQLite(ctx, "clear ledger", func() error {
		_, err := s.db.ExecContext(ctx, `DELETE FROM deliveries WHERE chat_id = ?`, chatID)
		return err
	})
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
