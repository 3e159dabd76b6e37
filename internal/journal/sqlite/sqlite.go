// Package sqlite stores the delivery journal in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/journal"
)

// Journal is a journal.Journal backed by SQLite.
type Journal struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the database at path in WAL mode.
func Open(log *slog.Logger, path string) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	j := &Journal{db: db, logger: log.With(slog.String("component", "journal"), slog.String("driver", "sqlite"))}
	if err := j.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal migration failed: %w", err)
	}
	return j, nil
}

func (j *Journal) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS mirror_journal (
		id          TEXT PRIMARY KEY,
		channel_id  INTEGER NOT NULL,
		message_id  INTEGER NOT NULL,
		attachments INTEGER NOT NULL DEFAULT 0,
		dropped     INTEGER NOT NULL DEFAULT 0,
		endpoints   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		skipped     INTEGER NOT NULL DEFAULT 0,
		errors      TEXT NOT NULL DEFAULT '[]',
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_mirror_journal_created ON mirror_journal(created_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Record inserts one entry.
func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	if e.Errors == nil {
		e.Errors = []string{}
	}
	errs, err := json.Marshal(e.Errors)
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO mirror_journal (id, channel_id, message_id, attachments, dropped, endpoints, failed, skipped, errors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), int64(e.ChannelID), e.MessageID, e.Attachments, e.Dropped, e.Endpoints, e.Failed, e.Skipped, string(errs), e.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, channel_id, message_id, attachments, dropped, endpoints, failed, skipped, errors, created_at
		 FROM mirror_journal ORDER BY created_at DESC LIMIT ?`, journal.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var items []journal.Entry
	for rows.Next() {
		var (
			e         journal.Entry
			id        string
			channelID int64
			errs      string
			created   int64
		)
		if err := rows.Scan(&id, &channelID, &e.MessageID, &e.Attachments, &e.Dropped, &e.Endpoints, &e.Failed, &e.Skipped, &errs, &created); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse journal id: %w", err)
		}
		e.ChannelID = channel.ChannelID(channelID)
		e.CreatedAt = time.Unix(0, created).UTC()
		if err := json.Unmarshal([]byte(errs), &e.Errors); err != nil {
			return nil, fmt.Errorf("decode journal errors: %w", err)
		}
		if len(e.Errors) == 0 {
			e.Errors = nil
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// Ping checks that the database file is reachable.
func (j *Journal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
