// Package sqlite persists the deck configuration as a versioned JSON blob.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"deckpair/internal/domain"
)

// configKey versions the stored blob; a future shape change gets a new key
// plus a migration read of the old one.
const configKey = "deck_config_v1"

type DeckStore struct {
	db *sql.DB
}

func NewDeckStore(dbPath string) (*DeckStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite: empty db path")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: creating dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DeckStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS profiles (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("sqlite: migrate profiles: %w", err)
	}
	return nil
}

func (s *DeckStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the stored configuration, or the defaults when nothing has
// been saved yet.
func (s *DeckStore) Load(ctx context.Context) (domain.DeckConfig, error) {
	const query = `SELECT value FROM profiles WHERE key = ? LIMIT 1;`

	var raw string
	err := s.db.QueryRowContext(ctx, query, configKey).Scan(&raw)
	if err == sql.ErrNoRows {
		return domain.DefaultDeckConfig(), nil
	}
	if err != nil {
		return domain.DeckConfig{}, fmt.Errorf("sqlite: load config: %w", err)
	}

	var cfg domain.DeckConfig
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return domain.DeckConfig{}, fmt.Errorf("sqlite: decode config: %w", err)
	}
	return cfg, nil
}

func (s *DeckStore) Save(ctx context.Context, cfg domain.DeckConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("sqlite: encode config: %w", err)
	}

	const query = `
INSERT INTO profiles (key, value, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`

	if _, err := s.db.ExecContext(ctx, query, configKey, string(raw), time.Now().UTC()); err != nil {
		return fmt.Errorf("sqlite: save config: %w", err)
	}
	return nil
}

// ExportJSON returns the configuration as a portable JSON document.
func (s *DeckStore) ExportJSON(ctx context.Context) ([]byte, error) {
	cfg, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("sqlite: export config: %w", err)
	}
	return raw, nil
}

// ImportJSON validates and stores a configuration document produced by
// ExportJSON. The stored config is untouched when validation fails.
func (s *DeckStore) ImportJSON(ctx context.Context, raw []byte) (domain.DeckConfig, error) {
	if err := ValidateShape(raw); err != nil {
		return domain.DeckConfig{}, err
	}
	var cfg domain.DeckConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return domain.DeckConfig{}, fmt.Errorf("sqlite: import config: %w", err)
	}
	if err := s.Save(ctx, cfg); err != nil {
		return domain.DeckConfig{}, err
	}
	return cfg, nil
}

// ValidateShape rejects documents missing the two top-level sections, so a
// bad import cannot wipe a working deck.
func ValidateShape(raw []byte) error {
	var doc struct {
		SoundButtons   *json.RawMessage `json:"soundButtons"`
		PlatformConfig *json.RawMessage `json:"platformConfig"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("sqlite: invalid config document: %w", err)
	}
	if doc.SoundButtons == nil || len(*doc.SoundButtons) == 0 || (*doc.SoundButtons)[0] != '[' {
		return fmt.Errorf("sqlite: config document: soundButtons must be an array")
	}
	if doc.PlatformConfig == nil || len(*doc.PlatformConfig) == 0 || (*doc.PlatformConfig)[0] != '{' {
		return fmt.Errorf("sqlite: config document: platformConfig must be an object")
	}
	return nil
}
