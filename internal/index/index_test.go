package index

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"

	"wnacg-downloader/internal/models"
)

func openTestIndex(t *testing.T) bleve.Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), "search.bleve")
	i, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatalf("OpenOrCreateIndex: %v", err)
	}
	t.Cleanup(func() { i.Close() })
	return i
}

func TestOpenOrCreateIndexCreatesThenReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")

	idx, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatalf("OpenOrCreateIndex (create): %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatalf("OpenOrCreateIndex (reopen): %v", err)
	}
	defer reopened.Close()
}

func TestIndexItemAndSearchRoundTrip(t *testing.T) {
	idx := openTestIndex(t)

	comic := models.Comic{
		ID:       501,
		Title:    "Spring Festival Adventure",
		Category: "adventure",
		Tags:     []models.Tag{{Name: "comedy"}, {Name: "romance"}},
		Intro:    "a story about a festival",
	}
	item := ItemFromComic(comic, "/downloads/Spring Festival Adventure")

	if err := IndexItem(idx, item); err != nil {
		t.Fatalf("IndexItem: %v", err)
	}

	result, err := Search(idx, `title:"Spring Festival Adventure"`)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 1 {
		t.Fatalf("Search total = %d, want 1", result.Total)
	}
	if result.Hits[0].ID != "501" {
		t.Errorf("Hits[0].ID = %q, want %q", result.Hits[0].ID, "501")
	}

	byTag, err := Search(idx, "tags:romance")
	if err != nil {
		t.Fatalf("Search by tag: %v", err)
	}
	if byTag.Total != 1 {
		t.Errorf("Search by tag total = %d, want 1", byTag.Total)
	}
}

func TestDeleteItemRemovesFromSearch(t *testing.T) {
	idx := openTestIndex(t)

	comic := models.Comic{ID: 77, Title: "Disposable Comic"}
	if err := IndexItem(idx, ItemFromComic(comic, "/downloads/Disposable Comic")); err != nil {
		t.Fatalf("IndexItem: %v", err)
	}

	if err := DeleteItem(idx, 77); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}

	result, err := Search(idx, `title:"Disposable Comic"`)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Total != 0 {
		t.Errorf("Search total after delete = %d, want 0", result.Total)
	}
}

func TestDeleteIndexRemovesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "search.bleve")
	idx, err := OpenOrCreateIndex(path)
	if err != nil {
		t.Fatalf("OpenOrCreateIndex: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if err := DeleteIndex(path); err != nil {
		t.Fatalf("DeleteIndex: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("index directory should be gone, stat err = %v", err)
	}
}
