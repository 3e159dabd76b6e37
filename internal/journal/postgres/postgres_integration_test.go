package postgres_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/tgmirror/internal/journal"
	"github.com/memohai/tgmirror/internal/journal/postgres"
)

func setupJournalIntegrationTest(t *testing.T) *postgres.Journal {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	j, err := postgres.Open(context.Background(), logger, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot open journal: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournalRecordAndRecent(t *testing.T) {
	j := setupJournalIntegrationTest(t)
	ctx := context.Background()

	// migrations are idempotent
	if err := j.Migrate(); err != nil {
		t.Fatalf("re-migrate: %v", err)
	}

	entry := journal.Entry{
		ID:          uuid.New(),
		ChannelID:   -1001765404638,
		MessageID:   77,
		Attachments: 2,
		Endpoints:   3,
		Failed:      1,
		Errors:      []string{"dispatch to https://discord.com/api/webhooks/1/***: endpoint rejected payload"},
		CreatedAt:   time.Now().UTC().Add(time.Hour),
	}
	if err := j.Record(ctx, entry); err != nil {
		t.Fatalf("record: %v", err)
	}
	items, err := j.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 1 || items[0].ID != entry.ID {
		t.Fatalf("newest entry not returned first: %+v", items)
	}
	got := items[0]
	if got.ChannelID != entry.ChannelID || got.Failed != 1 || len(got.Errors) != 1 {
		t.Fatalf("entry fields lost: %+v", got)
	}
}
