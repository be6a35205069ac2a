// Package storage provides SQLite implementation of the Directory interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kotae/internal/models"
)

// SQLiteStorage implements Directory using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		workspace_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT,
		real_name TEXT,
		display_name TEXT,
		PRIMARY KEY (workspace_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS channels (
		workspace_id TEXT NOT NULL,
		channel_id TEXT NOT NULL,
		channel_name TEXT NOT NULL,
		topic TEXT,
		purpose TEXT,
		is_archived INTEGER NOT NULL DEFAULT 0,
		member_count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (workspace_id, channel_id)
	);

	CREATE INDEX IF NOT EXISTS idx_channels_name ON channels(workspace_id, channel_name);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertUser inserts or updates a user row.
func (s *SQLiteStorage) UpsertUser(ctx context.Context, workspaceID string, user *models.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (workspace_id, user_id, user_name, real_name, display_name)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (workspace_id, user_id) DO UPDATE SET
		   user_name = excluded.user_name,
		   real_name = excluded.real_name,
		   display_name = excluded.display_name`,
		workspaceID, user.ID, user.UserName, user.RealName, user.DisplayName,
	)
	return err
}

// UpsertChannel inserts or updates a channel row.
func (s *SQLiteStorage) UpsertChannel(ctx context.Context, workspaceID string, ch *models.Channel) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channels (workspace_id, channel_id, channel_name, topic, purpose, is_archived, member_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (workspace_id, channel_id) DO UPDATE SET
		   channel_name = excluded.channel_name,
		   topic = excluded.topic,
		   purpose = excluded.purpose,
		   is_archived = excluded.is_archived,
		   member_count = excluded.member_count`,
		workspaceID, ch.ID, ch.Name, ch.Topic, ch.Purpose, ch.IsArchived, ch.MemberCount,
	)
	return err
}

// ChannelName returns the channel's name, or "" when the channel is unknown.
func (s *SQLiteStorage) ChannelName(ctx context.Context, workspaceID, channelID string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT channel_name FROM channels WHERE workspace_id = ? AND channel_id = ?`,
		workspaceID, channelID,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

// Users returns directory rows for the given user ids, scoped to the workspace.
// Unknown ids are absent from the result.
func (s *SQLiteStorage) Users(ctx context.Context, workspaceID string, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]interface{}, 0, len(ids)+1)
	args = append(args, workspaceID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, user_name, real_name, display_name
		 FROM users WHERE workspace_id = ? AND user_id IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		var userName, realName, displayName sql.NullString
		if err := rows.Scan(&u.ID, &userName, &realName, &displayName); err != nil {
			return nil, err
		}
		u.UserName = userName.String
		u.RealName = realName.String
		u.DisplayName = displayName.String
		users = append(users, u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of directory users in the workspace.
func (s *SQLiteStorage) CountUsers(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE workspace_id = ?`, workspaceID,
	).Scan(&count)
	return count, err
}

// CountChannels returns the number of directory channels in the workspace.
func (s *SQLiteStorage) CountChannels(ctx context.Context, workspaceID string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE workspace_id = ?`, workspaceID,
	).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
