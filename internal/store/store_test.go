package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "store.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPutGetEntryRoundTrip(t *testing.T) {
	db := openTestDB(t)

	entry := models.DatabaseEntry{
		ComicID:      1,
		Title:        "round trip",
		Status:       models.StateCompleted,
		Folder:       "/tmp/round trip",
		Timestamp:    time.Now().Truncate(time.Second),
		ManifestHash: "deadbeef",
	}
	if err := db.PutEntry(entry); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}

	got, err := db.GetEntry(1)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Title != entry.Title || got.Status != entry.Status || got.ManifestHash != entry.ManifestHash {
		t.Errorf("GetEntry = %+v, want fields matching %+v", got, entry)
	}
	if !got.Timestamp.Equal(entry.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, entry.Timestamp)
	}
}

func TestGetEntryMissingReturnsNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetEntry(999)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteEntryIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.PutEntry(models.DatabaseEntry{ComicID: 5}); err != nil {
		t.Fatalf("PutEntry: %v", err)
	}
	if err := db.DeleteEntry(5); err != nil {
		t.Fatalf("first DeleteEntry: %v", err)
	}
	if err := db.DeleteEntry(5); err != nil {
		t.Fatalf("second DeleteEntry on an already-missing key should not error: %v", err)
	}

	_, err := db.GetEntry(5)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("GetEntry after delete = %v, want ErrNotFound", err)
	}
}

func TestListEntriesReturnsOnlyComicEntries(t *testing.T) {
	db := openTestDB(t)

	for _, id := range []int64{1, 2, 3} {
		if err := db.PutEntry(models.DatabaseEntry{ComicID: id, Title: "comic"}); err != nil {
			t.Fatalf("PutEntry(%d): %v", id, err)
		}
	}
	if err := db.SetPageState("some-query-hash", 4); err != nil {
		t.Fatalf("SetPageState: %v", err)
	}

	entries, err := db.ListEntries()
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3 (page state must not leak into ListEntries)", len(entries))
	}
}

func TestPageStateDefaultsToOne(t *testing.T) {
	db := openTestDB(t)

	page, err := db.GetPageState("never-seen")
	if err != nil {
		t.Fatalf("GetPageState: %v", err)
	}
	if page != 1 {
		t.Errorf("page = %d, want 1 for an unseen query hash", page)
	}

	if err := db.SetPageState("never-seen", 7); err != nil {
		t.Fatalf("SetPageState: %v", err)
	}
	page, err = db.GetPageState("never-seen")
	if err != nil {
		t.Fatalf("GetPageState after set: %v", err)
	}
	if page != 7 {
		t.Errorf("page = %d, want 7 after SetPageState", page)
	}
}

func TestManifestHashIsDeterministicAndOrderSensitive(t *testing.T) {
	names := []string{"0001.jpg", "0002.jpg"}
	sizes := []int64{100, 200}

	a := ManifestHash(names, sizes)
	b := ManifestHash(names, sizes)
	if a != b {
		t.Errorf("ManifestHash is not deterministic: %s != %s", a, b)
	}

	reversed := ManifestHash([]string{"0002.jpg", "0001.jpg"}, []int64{200, 100})
	if a == reversed {
		t.Error("ManifestHash should depend on ordering since callers are responsible for sorting")
	}

	differentSize := ManifestHash(names, []int64{100, 201})
	if a == differentSize {
		t.Error("ManifestHash should change when a file size changes")
	}
}
