package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"mychat/config"
	"mychat/model"
)

const currentIDKey = "current_conversation_id"

// Store persists conversations and the current selection in SQLite and the
// API configuration in <dataDir>/config.toml. It implements model.Persistence.
type Store struct {
	db      *sql.DB
	dataDir string
	log     zerolog.Logger
}

// Open opens (creating if needed) the conversation database in dataDir.
func Open(dataDir string, log zerolog.Logger) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dsn := "file:" + config.DatabasePath(dataDir) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers; SQLite allows only one anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{
		db:      db,
		dataDir: dataDir,
		log:     log.With().Str("component", "storage").Logger(),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return s, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		position INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		is_streaming INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (conversation_id, seq)
	);
	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DataDir() string {
	return s.dataDir
}

// LoadConfig returns the stored API configuration, or the defaults if none
// is stored or it cannot be read.
func (s *Store) LoadConfig(ctx context.Context) model.APIConfig {
	cfg, err := config.LoadAPIConfig(s.dataDir)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load api config, using defaults")
	}
	return cfg
}

func (s *Store) SaveConfig(ctx context.Context, cfg model.APIConfig) error {
	return config.SaveAPIConfig(s.dataDir, cfg)
}

// LoadConversations returns every stored conversation in saved order. Read
// failures are logged and yield an empty list.
func (s *Store) LoadConversations(ctx context.Context) []model.Conversation {
	convs, err := s.loadConversations(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load conversations")
		return []model.Conversation{}
	}
	return convs
}

func (s *Store) loadConversations(ctx context.Context) ([]model.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, title, created_at, updated_at
	FROM conversations
	ORDER BY position
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	convs := []model.Conversation{}
	index := map[string]int{}
	for rows.Next() {
		var c model.Conversation
		var created, updated string
		if err := rows.Scan(&c.ID, &c.Title, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		if c.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("conversation %s: %w", c.ID, err)
		}
		if c.UpdatedAt, err = parseTime(updated); err != nil {
			return nil, fmt.Errorf("conversation %s: %w", c.ID, err)
		}
		c.Messages = []model.Message{}
		index[c.ID] = len(convs)
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	msgRows, err := s.db.QueryContext(ctx, `
	SELECT conversation_id, id, role, content, timestamp, is_streaming
	FROM messages
	ORDER BY conversation_id, seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var convID, role string
		var m model.Message
		var ts string
		if err := msgRows.Scan(&convID, &m.ID, &role, &m.Content, &ts, &m.IsStreaming); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		i, ok := index[convID]
		if !ok {
			continue
		}
		m.Role = model.Role(role)
		if m.Timestamp, err = parseTime(ts); err != nil {
			return nil, fmt.Errorf("message %s: %w", m.ID, err)
		}
		convs[i].Messages = append(convs[i].Messages, m)
	}

	return convs, msgRows.Err()
}

// Instants are stored as RFC 3339 text with nanoseconds and the UTC offset.
func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

// SaveConversations replaces the stored set with convs in one transaction.
func (s *Store) SaveConversations(ctx context.Context, convs []model.Conversation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM conversations`); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}

	convStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO conversations (id, title, position, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer convStmt.Close()

	msgStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO messages (conversation_id, id, seq, role, content, timestamp, is_streaming)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer msgStmt.Close()

	for pos, c := range convs {
		if _, err := convStmt.ExecContext(ctx, c.ID, c.Title, pos, formatTime(c.CreatedAt), formatTime(c.UpdatedAt)); err != nil {
			return fmt.Errorf("failed to save conversation %s: %w", c.ID, err)
		}
		for seq, m := range c.Messages {
			if _, err := msgStmt.ExecContext(ctx, c.ID, m.ID, seq, string(m.Role), m.Content, formatTime(m.Timestamp), m.IsStreaming); err != nil {
				return fmt.Errorf("failed to save message %s: %w", m.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit conversations: %w", err)
	}
	return nil
}

// LoadCurrentID returns the stored selection, or "" when there is none.
func (s *Store) LoadCurrentID(ctx context.Context) string {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM app_state WHERE key = ?`, currentIDKey).Scan(&id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.log.Error().Err(err).Msg("failed to load current conversation id")
	}
	return id
}

// SaveCurrentID stores id; an empty id clears the selection.
func (s *Store) SaveCurrentID(ctx context.Context, id string) error {
	var err error
	if id == "" {
		_, err = s.db.ExecContext(ctx, `DELETE FROM app_state WHERE key = ?`, currentIDKey)
	} else {
		_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, currentIDKey, id)
	}
	if err != nil {
		return fmt.Errorf("failed to save current conversation id: %w", err)
	}
	return nil
}

// Clear removes every stored conversation, the selection and the API config.
func (s *Store) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"messages", "conversations", "app_state"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	if err := os.Remove(config.UserConfigPath(s.dataDir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove api config: %w", err)
	}
	return nil
}
