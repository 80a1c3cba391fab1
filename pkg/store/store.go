// Package store persists per-guild channel links and per-user voice
// selections in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Server is a guild the bot has seen. Empty channel ids mean "not linked".
type Server struct {
	ID           string
	VoiceChannel string
	TextChannel  string
}

// User is a member's voice preference, scoped to one guild.
type User struct {
	ID       string
	ServerID string
	Voice    string
}

type Store struct {
	db           *sql.DB
	defaultVoice string
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS servers (id TEXT PRIMARY KEY, voice_channel TEXT, text_channel TEXT);`,
	`CREATE TABLE IF NOT EXISTS users (id TEXT, server_id TEXT, voice TEXT NOT NULL, PRIMARY KEY (id, server_id));`,
}

// Open opens (creating if needed) the database at dbPath and migrates the
// schema. Users created implicitly get defaultVoice.
func Open(dbPath, defaultVoice string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps :memory: shared
	db.SetMaxOpenConns(1)

	s := &Store{db: db, defaultVoice: defaultVoice}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureServer creates an empty row for guildID if there is none.
func (s *Store) EnsureServer(ctx context.Context, guildID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO servers (id, voice_channel, text_channel) VALUES (?, '', '') ON CONFLICT(id) DO NOTHING", guildID)
	return err
}

// GetServer returns the row for guildID, creating it first if missing.
func (s *Store) GetServer(ctx context.Context, guildID string) (*Server, error) {
	if err := s.EnsureServer(ctx, guildID); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx,
		"SELECT id, COALESCE(voice_channel, ''), COALESCE(text_channel, '') FROM servers WHERE id=?", guildID)
	var srv Server
	if err := row.Scan(&srv.ID, &srv.VoiceChannel, &srv.TextChannel); err != nil {
		return nil, err
	}
	return &srv, nil
}

func (s *Store) SetTextChannel(ctx context.Context, guildID, channelID string) error {
	return s.setServerColumn(ctx, guildID, "text_channel", channelID)
}

func (s *Store) SetVoiceChannel(ctx context.Context, guildID, channelID string) error {
	return s.setServerColumn(ctx, guildID, "voice_channel", channelID)
}

// ClearVoiceChannel unlinks both channels, used when the bot leaves voice.
func (s *Store) ClearVoiceChannel(ctx context.Context, guildID string) error {
	if err := s.EnsureServer(ctx, guildID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE servers SET voice_channel='', text_channel='' WHERE id=?", guildID)
	return err
}

// column is always one of the literals above, never caller input.
func (s *Store) setServerColumn(ctx context.Context, guildID, column, value string) error {
	if err := s.EnsureServer(ctx, guildID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, "UPDATE servers SET "+column+"=? WHERE id=?", value, guildID)
	return err
}

// GetUser returns the preference of userID in guildID, creating it with the
// default voice if missing.
func (s *Store) GetUser(ctx context.Context, userID, guildID string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, server_id, voice FROM users WHERE id=? AND server_id=?", userID, guildID)
	var u User
	err := row.Scan(&u.ID, &u.ServerID, &u.Voice)
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, server_id, voice) VALUES (?, ?, ?) ON CONFLICT(id, server_id) DO NOTHING",
		userID, guildID, s.defaultVoice); err != nil {
		return nil, err
	}
	return &User{ID: userID, ServerID: guildID, Voice: s.defaultVoice}, nil
}

// SetVoice stores selector for userID in guildID. The caller validates it.
func (s *Store) SetVoice(ctx context.Context, userID, guildID, selector string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, server_id, voice) VALUES (?, ?, ?) ON CONFLICT(id, server_id) DO UPDATE SET voice=excluded.voice",
		userID, guildID, selector)
	return err
}
