// Package postgres stores the delivery journal in PostgreSQL.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/memohai/tgmirror/internal/channel"
	"github.com/memohai/tgmirror/internal/journal"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Journal is a journal.Journal backed by a pgx pool.
type Journal struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to dsn, applies pending migrations and returns a Journal.
func Open(ctx context.Context, log *slog.Logger, dsn string) (*Journal, error) {
	if log == nil {
		log = slog.Default()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	j := &Journal{pool: pool, logger: log.With(slog.String("component", "journal"), slog.String("driver", "postgres"))}
	if err := j.Migrate(); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

// Migrate applies the embedded schema migrations.
func (j *Journal) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := pgxmigrate.WithInstance(stdlib.OpenDBFromPool(j.pool), &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	version, dirty, _ := m.Version()
	j.logger.Info("journal schema ready", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}

// Record inserts one entry.
func (j *Journal) Record(ctx context.Context, e journal.Entry) error {
	errs, err := json.Marshal(nonNil(e.Errors))
	if err != nil {
		return fmt.Errorf("encode errors: %w", err)
	}
	_, err = j.pool.Exec(ctx, `
INSERT INTO mirror_journal (id, channel_id, message_id, attachments, dropped, endpoints, failed, skipped, errors, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10)`,
		e.ID.String(), int64(e.ChannelID), e.MessageID, e.Attachments, e.Dropped, e.Endpoints, e.Failed, e.Skipped, string(errs), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	rows, err := j.pool.Query(ctx, `
SELECT id::text, channel_id, message_id, attachments, dropped, endpoints, failed, skipped, errors, created_at
FROM mirror_journal
ORDER BY created_at DESC
LIMIT $1`, journal.ClampLimit(limit))
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
			errs      []byte
		)
		if err := rows.Scan(&id, &channelID, &e.MessageID, &e.Attachments, &e.Dropped, &e.Endpoints, &e.Failed, &e.Skipped, &errs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse journal id: %w", err)
		}
		e.ChannelID = channel.ChannelID(channelID)
		if len(errs) > 0 {
			if err := json.Unmarshal(errs, &e.Errors); err != nil {
				return nil, fmt.Errorf("decode journal errors: %w", err)
			}
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

// Ping checks database connectivity.
func (j *Journal) Ping(ctx context.Context) error {
	return j.pool.Ping(ctx)
}

// Close releases the pool.
func (j *Journal) Close() error {
	j.pool.Close()
	return nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
