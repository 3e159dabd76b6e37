package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/memohai/tgmirror/internal/journal"
)

func TestJournalRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	j, err := Open(nil, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer j.Close()

	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := journal.Entry{
			ID:          uuid.New(),
			ChannelID:   -1001514642130,
			MessageID:   100 + i,
			Attachments: i,
			Endpoints:   2,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			e.Skipped = true
			e.Errors = []string{"fetch photo: file not found"}
		}
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	items, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(items))
	}
	if items[0].MessageID != 102 || items[1].MessageID != 101 {
		t.Fatalf("entries not newest first: %d, %d", items[0].MessageID, items[1].MessageID)
	}
	if !items[0].Skipped || len(items[0].Errors) != 1 || !items[0].CreatedAt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("entry fields lost: %+v", items[0])
	}
	if items[1].Errors != nil || items[1].ChannelID != -1001514642130 {
		t.Fatalf("unexpected entry: %+v", items[1])
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 2; i++ {
		j, err := Open(nil, path)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}
