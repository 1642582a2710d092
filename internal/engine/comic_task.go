package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/events"
	"wnacg-downloader/internal/helpers"
	"wnacg-downloader/internal/index"
	"wnacg-downloader/internal/models"
	"wnacg-downloader/internal/store"
)

const manifestFileName = "元数据.json"

// ComicDownloadTask drives one comic's lifecycle per SPEC_FULL.md §4.3: it
// acquires a comic permit, runs the downloadComic pipeline, and reacts to
// Pause/Resume/Cancel observed through its state cell.
type ComicDownloadTask struct {
	mgr   *DownloadManager
	comic models.Comic

	state *stateCell

	downloadedImgCount atomic.Int64
	totalImgCount      int64
}

func newComicDownloadTask(mgr *DownloadManager, comic models.Comic) *ComicDownloadTask {
	return &ComicDownloadTask{
		mgr:   mgr,
		comic: comic,
		state: newStateCell(models.StatePending),
	}
}

func (t *ComicDownloadTask) snapshot() TaskSnapshot {
	return TaskSnapshot{
		ComicID:    t.comic.ID,
		Title:      t.comic.Title,
		State:      t.state.Get(),
		Downloaded: t.downloadedImgCount.Load(),
		Total:      t.totalImgCount,
	}
}

func (t *ComicDownloadTask) emit(errMsg string) {
	t.mgr.sink.DownloadTask(events.DownloadTaskEvent{
		ComicID:    t.comic.ID,
		Title:      t.comic.Title,
		State:      t.state.Get(),
		Downloaded: t.downloadedImgCount.Load(),
		Total:      t.totalImgCount,
		Error:      errMsg,
	})
}

// setState transitions the task and emits the resulting event in one step,
// so no caller forgets to announce a transition.
func (t *ComicDownloadTask) setState(s models.DownloadTaskState, errMsg string) {
	t.state.Set(s)
	t.emit(errMsg)
}

func (t *ComicDownloadTask) pause()  { t.setState(models.StatePaused, "") }
func (t *ComicDownloadTask) cancel() { t.setState(models.StateCancelled, "") }

// resumeFromPaused transitions Paused -> Pending so the coordination loop
// re-acquires a permit from scratch. It only records and announces the
// transition and starts no new coordination loop, so callers on a terminal
// task must resubmit instead (see DownloadManager.Resume).
func (t *ComicDownloadTask) resumeFromPaused() { t.setState(models.StatePending, "") }

func (t *ComicDownloadTask) fail(err error) {
	t.setState(models.StateFailed, err.Error())
	t.persist(models.StateFailed, "", err.Error())
}

// process is the coordination loop described in SPEC_FULL.md §4.3: it races
// the pipeline, permit acquisition and state-changed notifications via
// cooperative select. The held comic permit, if any, is always released on
// return via defer; a panic in the loop or in the pipeline goroutine is
// recovered and turns the task Failed, so it cannot leak the permit.
func (t *ComicDownloadTask) process() {
	t.emit("")

	heldPermit := false
	var pipelineDone chan struct{}

	defer func() {
		if heldPermit {
			<-t.mgr.comicSem
		}
		if r := recover(); r != nil {
			log.WithField("comicId", t.comic.ID).Errorf("comic task panicked: %v", r)
			if !t.state.Get().IsTerminal() {
				t.setState(models.StateFailed, fmt.Sprintf("panic: %v", r))
			}
		}
	}()

	for {
		state := t.state.Get()
		if state.IsTerminal() {
			return
		}

		switch state {
		case models.StatePaused:
			if heldPermit {
				<-t.mgr.comicSem
				heldPermit = false
			}
			<-t.state.Changed()

		case models.StatePending:
			changed := t.state.Changed()
			select {
			case t.mgr.comicSem <- struct{}{}:
				heldPermit = true
				// A state change may have beaten the acquisition (e.g.
				// cancelled while waiting); only advance if still Pending.
				if t.state.Get() == models.StatePending {
					t.setState(models.StateDownloading, "")
				}
			case <-changed:
				// re-evaluate at the top of the loop
			}

		case models.StateDownloading:
			if !heldPermit {
				// Reached Downloading without a permit (e.g. a stale
				// notification); fall back to requesting one.
				t.state.Set(models.StatePending)
				continue
			}
			if pipelineDone == nil {
				pipelineDone = make(chan struct{})
				go func() {
					defer close(pipelineDone)
					defer func() {
						if r := recover(); r != nil {
							log.WithField("comicId", t.comic.ID).Errorf("comic pipeline panicked: %v", r)
							if !t.state.Get().IsTerminal() {
								t.setState(models.StateFailed, fmt.Sprintf("panic: %v", r))
							}
						}
					}()
					t.downloadComic()
				}()
			}
			changed := t.state.Changed()
			select {
			case <-pipelineDone:
				return
			case <-changed:
				// Paused or Cancelled observed. The pipeline goroutine
				// keeps running in the background: its image tasks watch
				// the same state cell and stop acquiring new image
				// permits (§4.4); downloadComic's own join step checks
				// for Cancelled before publishing a result.
			}
		}
	}
}

// downloadComic is the pipeline from SPEC_FULL.md §4.3 step 1-6.
func (t *ComicDownloadTask) downloadComic() {
	cfg := t.mgr.cfg
	title := helpers.FilterFilename(t.comic.Title)

	urls := make([]string, 0, len(t.comic.ImgList))
	for _, img := range t.comic.ImgList {
		if strings.HasSuffix(img.URL, "shoucang.jpg") {
			continue
		}
		urls = append(urls, "https:"+img.URL)
	}
	t.totalImgCount = int64(len(urls))

	tempDir := filepath.Join(cfg.DownloadDir, ".下载中-"+title)
	if !helpers.CheckAndMakeDir(tempDir) {
		t.fail(fmt.Errorf("%w: creating temp directory %s", apperrors.ErrIO, tempDir))
		return
	}

	format := models.DownloadFormat(cfg.DownloadFormat)
	if err := cleanStaleFiles(tempDir, format); err != nil {
		t.fail(err)
		return
	}

	manifestComic := t.comic
	manifestComic.IsDownloaded = nil
	manifestData, err := json.MarshalIndent(manifestComic, "", "  ")
	if err != nil {
		t.fail(fmt.Errorf("%w: marshalling manifest for comic %d: %s", apperrors.ErrIO, t.comic.ID, err))
		return
	}
	if err := os.WriteFile(filepath.Join(tempDir, manifestFileName), manifestData, 0o600); err != nil {
		t.fail(fmt.Errorf("%w: writing manifest for comic %d: %s", apperrors.ErrIO, t.comic.ID, err))
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(urls))
	for i, u := range urls {
		img := newImageDownloadTask(t, i, u, tempDir, format)
		go func() {
			defer wg.Done()
			img.run()
		}()
	}
	wg.Wait()

	if t.state.Get() == models.StateCancelled {
		// Abandoned per §4.3: no final directory, no store write.
		return
	}

	downloaded := t.downloadedImgCount.Load()
	if downloaded == t.totalImgCount {
		t.finish(tempDir, title)
		return
	}

	shortfall := fmt.Sprintf("downloaded %d/%d images", downloaded, t.totalImgCount)
	t.setState(models.StateFailed, shortfall)
	t.persist(models.StateFailed, tempDir, shortfall)
}

// finish renames the temp directory to its final name, marks the task
// Completed, persists the DatabaseEntry and indexes the comic for search.
func (t *ComicDownloadTask) finish(tempDir, title string) {
	finalDir := filepath.Join(t.mgr.cfg.DownloadDir, title)
	if err := os.RemoveAll(finalDir); err != nil {
		t.fail(fmt.Errorf("%w: removing stale final directory %s: %s", apperrors.ErrIO, finalDir, err))
		return
	}
	if err := os.Rename(tempDir, finalDir); err != nil {
		t.fail(fmt.Errorf("%w: renaming %s to %s: %s", apperrors.ErrIO, tempDir, finalDir, err))
		return
	}

	t.setState(models.StateCompleted, "")
	t.persist(models.StateCompleted, finalDir, "")

	item := index.ItemFromComic(t.comic, finalDir)
	if err := index.IndexItem(t.mgr.index, item); err != nil {
		log.WithError(err).Errorf("index: failed to index comic %d", t.comic.ID)
	}
}

func (t *ComicDownloadTask) persist(status models.DownloadTaskState, folder, errDetails string) {
	entry := models.DatabaseEntry{
		ComicID:      t.comic.ID,
		Title:        t.comic.Title,
		Status:       status,
		Folder:       folder,
		ErrorDetails: errDetails,
		Timestamp:    time.Now(),
	}
	if status == models.StateCompleted {
		names, sizes := collectManifestFiles(folder)
		entry.ManifestHash = store.ManifestHash(names, sizes)
	}
	if err := t.mgr.store.PutEntry(entry); err != nil {
		log.WithError(err).Errorf("store: failed to persist entry for comic %d", t.comic.ID)
	}
}

// cleanStaleFiles removes files whose extension doesn't match format's
// extension; a no-op for FormatOriginal, whose extension is unconstrained.
func cleanStaleFiles(dir string, format models.DownloadFormat) error {
	ext, ok := format.Extension()
	if !ok {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("%w: reading temp directory %s: %s", apperrors.ErrIO, dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestFileName {
			continue
		}
		if !strings.HasSuffix(e.Name(), "."+ext) {
			if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
				return fmt.Errorf("%w: removing stale file %s: %s", apperrors.ErrIO, e.Name(), err)
			}
		}
	}
	return nil
}

// collectManifestFiles lists a completed comic's image files, sorted by
// name, for ManifestHash. Read errors yield an empty list rather than
// failing the already-successful download.
func collectManifestFiles(dir string) ([]string, []int64) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.WithError(err).Warnf("store: failed to list %s for manifest hash", dir)
		return nil, nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || e.Name() == manifestFileName {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	sizes := make([]int64, len(names))
	for i, n := range names {
		if info, err := os.Stat(filepath.Join(dir, n)); err == nil {
			sizes[i] = info.Size()
		}
	}
	return names, sizes
}
