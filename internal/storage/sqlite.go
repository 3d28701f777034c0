package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tazhate/kalendarbot/internal/domain"

	_ "github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			chat_id INTEGER PRIMARY KEY,
			username TEXT NOT NULL,
			cookies TEXT NOT NULL DEFAULT '[]',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS preferences (
			chat_id INTEGER PRIMARY KEY,
			theme TEXT NOT NULL DEFAULT 'light'
		)`,
		// Morning digest opt-out
		`ALTER TABLE preferences ADD COLUMN digest INTEGER NOT NULL DEFAULT 1`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_username ON sessions(username)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// Ignore "duplicate column" errors for ALTER TABLE
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("exec migration: %w", err)
			}
		}
	}
	return nil
}

// === Sessions ===

func (s *Storage) SaveSession(ss *domain.StoredSession) error {
	cookies, err := json.Marshal(ss.Cookies)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO sessions (chat_id, username, cookies, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(chat_id) DO UPDATE SET username = excluded.username, cookies = excluded.cookies, updated_at = CURRENT_TIMESTAMP`,
		ss.ChatID, ss.Username, string(cookies),
	)
	if err != nil {
		return fmt.Errorf("save session %d: %w", ss.ChatID, err)
	}
	ss.UpdatedAt = time.Now()
	return nil
}

func (s *Storage) GetSession(chatID int64) (*domain.StoredSession, error) {
	ss := &domain.StoredSession{}
	var cookies string
	err := s.db.QueryRow(
		`SELECT chat_id, username, cookies, updated_at FROM sessions WHERE chat_id = ?`,
		chatID,
	).Scan(&ss.ChatID, &ss.Username, &cookies, &ss.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cookies), &ss.Cookies); err != nil {
		return nil, fmt.Errorf("unmarshal cookies of %d: %w", chatID, err)
	}
	return ss, nil
}

// ListSessions returns every stored login
func (s *Storage) ListSessions() ([]*domain.StoredSession, error) {
	rows, err := s.db.Query(`SELECT chat_id, username, cookies, updated_at FROM sessions ORDER BY chat_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.StoredSession
	for rows.Next() {
		ss := &domain.StoredSession{}
		var cookies string
		if err := rows.Scan(&ss.ChatID, &ss.Username, &cookies, &ss.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(cookies), &ss.Cookies); err != nil {
			return nil, fmt.Errorf("unmarshal cookies of %d: %w", ss.ChatID, err)
		}
		sessions = append(sessions, ss)
	}
	return sessions, rows.Err()
}

func (s *Storage) DeleteSession(chatID int64) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE chat_id = ?`, chatID)
	return err
}

// === Preferences ===

// GetPreferences returns the chat's settings, defaults when none are stored.
func (s *Storage) GetPreferences(chatID int64) (*domain.Preferences, error) {
	p := &domain.Preferences{ChatID: chatID}
	var theme string
	err := s.db.QueryRow(
		`SELECT theme, digest FROM preferences WHERE chat_id = ?`,
		chatID,
	).Scan(&theme, &p.Digest)
	if err == sql.ErrNoRows {
		p.Theme = domain.ThemeLight
		p.Digest = true
		return p, nil
	}
	if err != nil {
		return nil, err
	}
	p.Theme = domain.Theme(theme)
	return p, nil
}

func (s *Storage) SetTheme(chatID int64, theme domain.Theme) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (chat_id, theme) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET theme = excluded.theme`,
		chatID, string(theme),
	)
	return err
}

func (s *Storage) SetDigest(chatID int64, on bool) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (chat_id, digest) VALUES (?, ?)
		 ON CONFLICT(chat_id) DO UPDATE SET digest = excluded.digest`,
		chatID, on,
	)
	return err
}
