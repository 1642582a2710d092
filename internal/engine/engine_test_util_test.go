package engine

import (
	"testing"
	"time"

	"wnacg-downloader/internal/models"
)

// waitForState polls mgr.List() until comicID reports want within 5s,
// failing the test otherwise. Used instead of a fixed sleep so tests stay
// fast on a quiet machine and still tolerate scheduling jitter under load.
func waitForState(t *testing.T, mgr *DownloadManager, comicID int64, want models.DownloadTaskState) {
	t.Helper()
	waitForStateTimeout(t, mgr, comicID, want, 5*time.Second)
}

// waitForStateTimeout is waitForState with an explicit bound, for tests
// whose path includes retry backoff (e.g. a deliberately unreachable image
// host) and so needs more than the default 5s.
func waitForStateTimeout(t *testing.T, mgr *DownloadManager, comicID int64, want models.DownloadTaskState, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, s := range mgr.List() {
			if s.ComicID == comicID && s.State == want {
				return
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	for _, s := range mgr.List() {
		if s.ComicID == comicID {
			t.Fatalf("comic %d never reached state %v, last observed %v", comicID, want, s.State)
		}
	}
	t.Fatalf("comic %d not found in registry", comicID)
}
