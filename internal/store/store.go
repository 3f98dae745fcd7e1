package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Baughn/emul/internal/history"
)

// Store is the single durable home for everything the bot must not forget
// across restarts: the admin roster, the channel list and the message log.
// SQLite keeps one writer at a time, so the pool is pinned to one connection.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	channel_name TEXT PRIMARY KEY COLLATE NOCASE
);
CREATE TABLE IF NOT EXISTS admins (
	nick TEXT PRIMARY KEY COLLATE NOCASE
);
CREATE TABLE IF NOT EXISTS message_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_name TEXT NOT NULL COLLATE NOCASE,
	timestamp INTEGER NOT NULL,
	nick TEXT NOT NULL,
	message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_message_log_channel_time
	ON message_log (channel_name, timestamp DESC);
`

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// exec1 runs a statement and reports whether it changed a row. INSERT OR
// IGNORE and DELETE both map "already in the requested state" to zero rows.
func (s *Store) exec1(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) AddAdmin(ctx context.Context, nick string) (bool, error) {
	return s.exec1(ctx, `INSERT OR IGNORE INTO admins (nick) VALUES (?)`, nick)
}

func (s *Store) RemoveAdmin(ctx context.Context, nick string) (bool, error) {
	return s.exec1(ctx, `DELETE FROM admins WHERE nick = ?`, nick)
}

func (s *Store) AddChannel(ctx context.Context, name string) (bool, error) {
	return s.exec1(ctx, `INSERT OR IGNORE INTO channels (channel_name) VALUES (?)`, name)
}

func (s *Store) RemoveChannel(ctx context.Context, name string) (bool, error) {
	return s.exec1(ctx, `DELETE FROM channels WHERE channel_name = ?`, name)
}

func (s *Store) list(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Admins(ctx context.Context) ([]string, error) {
	return s.list(ctx, `SELECT nick FROM admins ORDER BY nick`)
}

func (s *Store) Channels(ctx context.Context) ([]string, error) {
	return s.list(ctx, `SELECT channel_name FROM channels ORDER BY channel_name`)
}

// EnsureInitialAdmin seeds the admin table with the configured bootstrap nick,
// but only when the table is empty. Once someone has been added or removed on
// purpose the seed never fires again.
func (s *Store) EnsureInitialAdmin(ctx context.Context, nick string) (bool, error) {
	if nick == "" {
		return false, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins`).Scan(&n); err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	return s.AddAdmin(ctx, nick)
}

// LogMessage appends one line to the durable message log.
func (s *Store) LogMessage(ctx context.Context, m history.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO message_log (channel_name, timestamp, nick, message) VALUES (?, ?, ?, ?)`,
		m.Channel, m.Time.Unix(), m.Nick, m.Text)
	return err
}

// RecentMessages returns the newest limit lines for a channel in
// chronological order.
func (s *Store) RecentMessages(ctx context.Context, channel string, limit int) ([]history.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT nick, message, timestamp FROM message_log
		 WHERE channel_name = ?
		 ORDER BY timestamp DESC, id DESC LIMIT ?`, channel, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []history.Message
	for rows.Next() {
		var m history.Message
		var ts int64
		if err := rows.Scan(&m.Nick, &m.Text, &ts); err != nil {
			return nil, err
		}
		m.Channel = channel
		m.Time = time.Unix(ts, 0)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// query runs newest-first for the index, callers want oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// PruneMessagesBefore removes log lines older than the cutoff and reports how
// many went away. Driven by the nightly retention job.
func (s *Store) PruneMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM message_log WHERE timestamp < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
