// Package conversation stores multi-turn conversation history so follow-up
// questions can carry thread context into the answer prompt.
package conversation

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/models"
)

// DefaultHistoryLimit caps retrieved history at ten turns, two messages each.
const DefaultHistoryLimit = 20

// Tracker persists conversation turns in SQLite. History is append-only;
// clearing a thread is the only delete path.
type Tracker struct {
	db           *sql.DB
	historyLimit int
	logger       *zap.Logger
}

// NewTracker opens or creates the conversation database at dbPath and
// initializes the schema. Parent directories are created if they do not
// exist. historyLimit caps retrieved history when callers pass no limit of
// their own; zero or less falls back to DefaultHistoryLimit.
func NewTracker(dbPath string, historyLimit int, logger *zap.Logger) (*Tracker, error) {
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

	schema := `
	CREATE TABLE IF NOT EXISTS conversation_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		workspace_id TEXT NOT NULL,
		thread_ts TEXT NOT NULL,
		channel_id TEXT,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_thread
		ON conversation_history (workspace_id, thread_ts, created_at);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Tracker{db: db, historyLimit: historyLimit, logger: logger}, nil
}

// Append records one turn in a thread. Returns false without writing when
// the role is not "user" or "assistant".
func (t *Tracker) Append(ctx context.Context, workspaceID, threadTS, channelID, role, content string) bool {
	if role != models.RoleUser && role != models.RoleAssistant {
		t.logger.Error("invalid conversation role", zap.String("role", role))
		return false
	}

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO conversation_history (workspace_id, thread_ts, channel_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		workspaceID, threadTS, channelID, role, content, time.Now())
	if err != nil {
		t.logger.Error("failed to store conversation turn",
			zap.String("thread_ts", threadTS), zap.Error(err))
		return false
	}
	t.logger.Debug("stored conversation turn",
		zap.String("thread_ts", threadTS), zap.String("role", role))
	return true
}

// History returns a thread's turns in chronological order. A limit of zero
// or less uses the tracker's configured history limit.
func (t *Tracker) History(ctx context.Context, workspaceID, threadTS string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		limit = t.historyLimit
	}

	rows, err := t.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM conversation_history
		WHERE workspace_id = ? AND thread_ts = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		workspaceID, threadTS, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		if err := rows.Scan(&turn.Role, &turn.Content, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// BuildPrompt prefixes a new question with the thread's history. With no
// history the question comes back unchanged.
func (t *Tracker) BuildPrompt(ctx context.Context, workspaceID, threadTS, question string) string {
	turns, err := t.History(ctx, workspaceID, threadTS, 0)
	if err != nil {
		t.logger.Warn("failed to load conversation history",
			zap.String("thread_ts", threadTS), zap.Error(err))
		return question
	}
	if len(turns) == 0 {
		return question
	}

	parts := []string{"Previous conversation:"}
	for _, turn := range turns {
		label := "Assistant"
		if turn.Role == models.RoleUser {
			label = "User"
		}
		parts = append(parts, fmt.Sprintf("%s: %s", label, turn.Content))
	}
	parts = append(parts, fmt.Sprintf("\nNew question: %s", question))
	return strings.Join(parts, "\n")
}

// Clear deletes a thread's history. Clearing a thread that has none is not
// an error.
func (t *Tracker) Clear(ctx context.Context, workspaceID, threadTS string) error {
	res, err := t.db.ExecContext(ctx, `
		DELETE FROM conversation_history
		WHERE workspace_id = ? AND thread_ts = ?`,
		workspaceID, threadTS)
	if err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		t.logger.Info("cleared conversation thread",
			zap.String("thread_ts", threadTS), zap.Int64("deleted", n))
	}
	return nil
}

// Recent lists the most recently active threads, optionally restricted to
// one channel.
func (t *Tracker) Recent(ctx context.Context, workspaceID, channelID string, limit int) ([]models.ThreadSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT thread_ts, channel_id, MAX(created_at) AS last_updated
		FROM conversation_history
		WHERE workspace_id = ?`
	args := []interface{}{workspaceID}
	if channelID != "" {
		query += " AND channel_id = ?"
		args = append(args, channelID)
	}
	query += `
		GROUP BY thread_ts, channel_id
		ORDER BY last_updated DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent threads: %w", err)
	}
	defer rows.Close()

	var threads []models.ThreadSummary
	for rows.Next() {
		var ts models.ThreadSummary
		var channel sql.NullString
		// MAX() loses the column's declared type, so the driver hands the
		// timestamp back as text.
		var lastUpdated string
		if err := rows.Scan(&ts.ThreadTS, &channel, &lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan thread summary: %w", err)
		}
		ts.ChannelID = channel.String
		if parsed, err := time.Parse("2006-01-02 15:04:05.999999999-07:00", lastUpdated); err == nil {
			ts.LastUpdated = parsed
		}
		threads = append(threads, ts)
	}
	return threads, rows.Err()
}

// Close closes the underlying database.
func (t *Tracker) Close() error {
	return t.db.Close()
}
