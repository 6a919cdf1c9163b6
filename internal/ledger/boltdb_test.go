package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/netspeed/speedlog/internal/domain"
)

func newTestStore(t *testing.T) *BoltDBStore {
	t.Helper()
	store, err := NewBoltDBStore(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("NewBoltDBStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestBoltDBStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	entry, err := store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Fatalf("expected nil entry for unseen digest, got %+v", entry)
	}

	ingestedAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	err = store.Put(ctx, &domain.UploadEntry{
		Digest:     "abc",
		Path:       "/logs/speed.log",
		SizeBytes:  1024,
		Records:    7,
		UploadID:   "u-1",
		IngestedAt: ingestedAt,
	})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	entry, err = store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry == nil {
		t.Fatalf("expected entry after Put")
	}
	if entry.Records != 7 || entry.Path != "/logs/speed.log" || entry.UploadID != "u-1" {
		t.Errorf("unexpected entry %+v", entry)
	}
	if !entry.IngestedAt.Equal(ingestedAt) {
		t.Errorf("expected IngestedAt=%v, got %v", ingestedAt, entry.IngestedAt)
	}

	entries, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if err := store.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	entry, err = store.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if entry != nil {
		t.Errorf("expected entry to be deleted")
	}
}

func TestBoltDBStore_PutRequiresDigest(t *testing.T) {
	store := newTestStore(t)
	if err := store.Put(context.Background(), &domain.UploadEntry{Path: "x"}); err == nil {
		t.Errorf("expected error for empty digest")
	}
}
