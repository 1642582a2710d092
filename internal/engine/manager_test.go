package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/events"
	"wnacg-downloader/internal/index"
	"wnacg-downloader/internal/models"
	"wnacg-downloader/internal/siteclient"
	"wnacg-downloader/internal/store"
)

type noopSink struct{}

func (noopSink) DownloadTask(events.DownloadTaskEvent)   {}
func (noopSink) DownloadSpeed(events.DownloadSpeedEvent) {}

// newTestManager builds a DownloadManager backed by a temp-dir store and
// index, with no file logging, for use across engine package tests.
func newTestManager(t *testing.T, cfg models.Config) *DownloadManager {
	t.Helper()

	dir := t.TempDir()
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = dir
	}

	client, err := siteclient.New("")
	if err != nil {
		t.Fatalf("siteclient.New: %v", err)
	}

	db, err := store.Open(filepath.Join(dir, "store.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	idx, err := index.OpenOrCreateIndex(filepath.Join(dir, "search.bleve"))
	if err != nil {
		t.Fatalf("index.OpenOrCreateIndex: %v", err)
	}
	t.Cleanup(func() { idx.Close() })

	mgr := NewDownloadManager(cfg, client, db, idx, noopSink{})
	t.Cleanup(mgr.Stop)
	return mgr
}

func TestDownloadManagerSubmitIsIdempotent(t *testing.T) {
	mgr := newTestManager(t, models.Config{ComicConcurrency: 1, ImgConcurrency: 1})

	comic := models.Comic{ID: 42, Title: "idempotent-test"}
	mgr.Submit(comic)
	mgr.Submit(comic)

	snaps := mgr.List()
	if len(snaps) != 1 {
		t.Fatalf("len(List()) = %d, want 1 after two Submits of the same id", len(snaps))
	}
}

func TestDownloadManagerOperationsOnUnknownIDFail(t *testing.T) {
	mgr := newTestManager(t, models.Config{ComicConcurrency: 1, ImgConcurrency: 1})

	for name, op := range map[string]func(int64) error{
		"Pause":  mgr.Pause,
		"Resume": mgr.Resume,
		"Cancel": mgr.Cancel,
	} {
		if err := op(999); !errors.Is(err, apperrors.ErrNotFound) {
			t.Errorf("%s(999) = %v, want ErrNotFound", name, err)
		}
	}
}

func TestDownloadManagerPauseThenCancelUnblocksTask(t *testing.T) {
	// A zero-capacity comic semaphore keeps the task stuck in Pending
	// forever, so Pause/Cancel exercise the permit-acquisition select
	// deterministically instead of racing a pipeline that might complete
	// (or fail to start) before these calls land.
	mgr := newTestManager(t, models.Config{ComicConcurrency: 0, ImgConcurrency: 1})

	comic := models.Comic{ID: 7, Title: "pause-cancel-test"}
	mgr.Submit(comic)

	if err := mgr.Pause(7); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	waitForState(t, mgr, 7, models.StatePaused)

	if err := mgr.Cancel(7); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitForState(t, mgr, 7, models.StateCancelled)
}
