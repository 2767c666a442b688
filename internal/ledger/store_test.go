package ledger

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if rec, _ := store.Get(ctx, "missing"); rec != nil {
		t.Fatalf("expected nil for missing token")
	}

	record := Record{
		TokenID:  "8",
		Owner:    "0xabc",
		AssetURL: "https://testnets.opensea.io/assets/0xabc/8",
		MintedAt: time.Now(),
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, _ := store.Get(ctx, "8")
	if got == nil || got.AssetURL != record.AssetURL {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.Save(ctx, Record{}); err != ErrMissingTokenID {
		t.Fatalf("expected ErrMissingTokenID, got %v", err)
	}
}

func TestMemoryStoreListNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Unix(1_700_000_000, 0)

	for i, id := range []string{"1", "2", "3"} {
		_ = store.Save(ctx, Record{TokenID: id, MintedAt: base.Add(time.Duration(i) * time.Minute)})
	}

	got, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].TokenID != "3" || got[1].TokenID != "2" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestFileStorePersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mints.json")

	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}

	ctx := context.Background()
	record := Record{
		TokenID:  "8",
		Owner:    "0xabc",
		AssetURL: "resp",
		TxHash:   "0xdead",
		MintedAt: time.Unix(0, 0).UTC(),
	}
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}

	store2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("re-open store: %v", err)
	}

	got, _ := store2.Get(ctx, "8")
	if got == nil || got.AssetURL != "resp" || got.TxHash != "0xdead" {
		t.Fatalf("unexpected record: %+v", got)
	}

	all, _ := store2.List(ctx, 0)
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
}
