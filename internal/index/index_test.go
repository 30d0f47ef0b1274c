package index

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"photosort/internal/formats"
	"photosort/internal/scanner"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return store
}

func testEntries(folder string) []scanner.Entry {
	mod := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return []scanner.Entry{
		{Path: filepath.Join(folder, "a.jpg"), Name: "a.jpg", Size: 1024, ModTime: mod, Kind: formats.KindStandard},
		{Path: filepath.Join(folder, "b.nef"), Name: "b.nef", Size: 20 << 20, ModTime: mod, Kind: formats.KindRAW},
	}
}

func TestReplaceFolderRoundtrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	folder := "/photos/2026-08"

	if err := store.ReplaceFolder(ctx, folder, testEntries(folder)); err != nil {
		t.Fatalf("ReplaceFolder failed: %v", err)
	}

	got, err := store.Folder(ctx, folder)
	if err != nil {
		t.Fatalf("Folder failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Name != "a.jpg" || got[1].Name != "b.nef" {
		t.Errorf("entries out of order: %s, %s", got[0].Name, got[1].Name)
	}
	if got[1].Kind != formats.KindRAW {
		t.Errorf("kind = %v, want KindRAW", got[1].Kind)
	}
	if got[0].Size != 1024 {
		t.Errorf("size = %d, want 1024", got[0].Size)
	}
	if got[0].ModTime.Unix() != time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC).Unix() {
		t.Errorf("mod time mismatch: %v", got[0].ModTime)
	}
}

func TestReplaceFolderReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	folder := "/photos/shoot"

	if err := store.ReplaceFolder(ctx, folder, testEntries(folder)); err != nil {
		t.Fatalf("first ReplaceFolder failed: %v", err)
	}
	replacement := []scanner.Entry{
		{Path: filepath.Join(folder, "only.png"), Name: "only.png", Size: 10, ModTime: time.Now(), Kind: formats.KindStandard},
	}
	if err := store.ReplaceFolder(ctx, folder, replacement); err != nil {
		t.Fatalf("second ReplaceFolder failed: %v", err)
	}

	got, err := store.Folder(ctx, folder)
	if err != nil {
		t.Fatalf("Folder failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "only.png" {
		t.Errorf("stale rows survived replacement: %v", got)
	}
}

func TestReplaceFolderIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.ReplaceFolder(ctx, "/a", testEntries("/a")); err != nil {
		t.Fatalf("ReplaceFolder /a failed: %v", err)
	}
	if err := store.ReplaceFolder(ctx, "/b", testEntries("/b")); err != nil {
		t.Fatalf("ReplaceFolder /b failed: %v", err)
	}
	if err := store.ReplaceFolder(ctx, "/a", nil); err != nil {
		t.Fatalf("clearing /a failed: %v", err)
	}

	gotB, err := store.Folder(ctx, "/b")
	if err != nil {
		t.Fatalf("Folder /b failed: %v", err)
	}
	if len(gotB) != 2 {
		t.Errorf("clearing /a touched /b: %d entries, want 2", len(gotB))
	}

	count, err := store.FileCount(ctx)
	if err != nil {
		t.Fatalf("FileCount failed: %v", err)
	}
	if count != 2 {
		t.Errorf("FileCount = %d, want 2", count)
	}
}

func TestMeta(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	got, err := store.Meta(ctx, "last_folder")
	if err != nil {
		t.Fatalf("Meta on empty store failed: %v", err)
	}
	if got != "" {
		t.Errorf("Meta = %q, want empty", got)
	}

	if err := store.SetMeta(ctx, "last_folder", "/photos/2026-08"); err != nil {
		t.Fatalf("SetMeta failed: %v", err)
	}
	if err := store.SetMeta(ctx, "last_folder", "/photos/2026-09"); err != nil {
		t.Fatalf("SetMeta upsert failed: %v", err)
	}

	got, err = store.Meta(ctx, "last_folder")
	if err != nil {
		t.Fatalf("Meta failed: %v", err)
	}
	if got != "/photos/2026-09" {
		t.Errorf("Meta = %q, want /photos/2026-09", got)
	}
}
