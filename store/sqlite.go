package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/chatanyllm/chatanyllm/messages"
	"github.com/chatanyllm/chatanyllm/pkg/slogx"
	"github.com/chatanyllm/chatanyllm/provider"
	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS conversations (
	id         TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_updated_at ON conversations (updated_at DESC);

CREATE TABLE IF NOT EXISTS api_keys (
	provider TEXT PRIMARY KEY,
	key      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS endpoints (
	provider TEXT PRIMARY KEY,
	url      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const metaKeyCurrent = "current_conversation"
const metaKeySettings = "settings"

// SQLite is the Store implementation backed by a single sqlite database
// file. It is safe for concurrent use; sqlite serializes writers, so the
// pool is capped at one connection.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) SaveConversation(ctx context.Context, conv messages.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("encode conversation: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		conv.ID, data, time.Time(conv.UpdatedAt).UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save conversation: %w", err)
	}
	return nil
}

func (s *SQLite) Conversation(ctx context.Context, id string) (messages.Conversation, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM conversations WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return messages.Conversation{}, ErrNotFound
	}
	if err != nil {
		return messages.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	var conv messages.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		slog.Warn("dropping undecodable conversation", slog.String("id", id), slogx.Error(err))
		return messages.Conversation{}, ErrNotFound
	}
	return conv, nil
}

func (s *SQLite) Conversations(ctx context.Context) ([]messages.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM conversations ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []messages.Conversation
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		var conv messages.Conversation
		if err := json.Unmarshal(data, &conv); err != nil {
			slog.Warn("skipping undecodable conversation", slog.String("id", id), slogx.Error(err))
			continue
		}
		out = append(out, conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

func (s *SQLite) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

func (s *SQLite) SetCurrentConversation(ctx context.Context, id string) error {
	return s.setMeta(ctx, metaKeyCurrent, id)
}

func (s *SQLite) CurrentConversation(ctx context.Context) (string, error) {
	id, err := s.meta(ctx, metaKeyCurrent)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrNotFound
	}
	return id, nil
}

func (s *SQLite) SetAPIKey(ctx context.Context, name provider.Name, key string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_keys (provider, key) VALUES (?, ?)
		 ON CONFLICT (provider) DO UPDATE SET key = excluded.key`,
		name.String(), key)
	if err != nil {
		return fmt.Errorf("save api key: %w", err)
	}
	return nil
}

func (s *SQLite) APIKey(ctx context.Context, name provider.Name) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT key FROM api_keys WHERE provider = ?`, name.String()).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load api key: %w", err)
	}
	return key, nil
}

func (s *SQLite) SetEndpoint(ctx context.Context, name provider.Name, url string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO endpoints (provider, url) VALUES (?, ?)
		 ON CONFLICT (provider) DO UPDATE SET url = excluded.url`,
		name.String(), url)
	if err != nil {
		return fmt.Errorf("save endpoint: %w", err)
	}
	return nil
}

func (s *SQLite) Endpoint(ctx context.Context, name provider.Name) (string, error) {
	var url string
	err := s.db.QueryRowContext(ctx, `SELECT url FROM endpoints WHERE provider = ?`, name.String()).Scan(&url)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load endpoint: %w", err)
	}
	return url, nil
}

func (s *SQLite) SaveSettings(ctx context.Context, set messages.Settings) error {
	data, err := json.Marshal(set)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return s.setMeta(ctx, metaKeySettings, string(data))
}

func (s *SQLite) Settings(ctx context.Context) (messages.Settings, error) {
	raw, err := s.meta(ctx, metaKeySettings)
	if err != nil {
		return messages.Settings{}, err
	}
	if raw == "" {
		return messages.DefaultSettings(), nil
	}
	var set messages.Settings
	if err := json.Unmarshal([]byte(raw), &set); err != nil {
		slog.Warn("stored settings undecodable, using defaults", slogx.Error(err))
		return messages.DefaultSettings(), nil
	}
	return set, nil
}

func (s *SQLite) setMeta(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value)
	if err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

func (s *SQLite) meta(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}
