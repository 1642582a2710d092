// Package engine implements the download coordination core: DownloadManager
// owns two semaphores and a task registry; ComicDownloadTask and
// ImageDownloadTask each run a cooperative-select coordination loop that
// reacts to state-channel notifications from Pause/Resume/Cancel. Grounded
// on the teacher's worker-pool idiom (_examples/VangelRD-Scrapers/workerpool.go)
// generalized from one pool to two independently-sized pools, per SPEC_FULL.md §5.
package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"

	"wnacg-downloader/internal/apperrors"
	"wnacg-downloader/internal/events"
	"wnacg-downloader/internal/models"
	"wnacg-downloader/internal/siteclient"
	"wnacg-downloader/internal/store"
)

// TaskSnapshot is a point-in-time copy of a task's identity and progress,
// returned by List for the CLI's status and download commands (the list
// command reads the store instead).
type TaskSnapshot struct {
	ComicID    int64
	Title      string
	State      models.DownloadTaskState
	Downloaded int64
	Total      int64
}

// DownloadManager owns the comic- and image-level semaphores, the live task
// registry and the throughput counter. A DownloadManager is cheap to share:
// every field a task needs is reached through the manager pointer, so it
// behaves like the source's Arc-wrapped shared state.
type DownloadManager struct {
	mu    sync.RWMutex
	tasks map[int64]*ComicDownloadTask

	comicSem chan struct{}
	imgSem   chan struct{}

	bytesPerSec atomic.Uint64

	client *siteclient.Client
	store  *store.DB
	index  bleve.Index
	sink   events.Sink
	cfg    models.Config

	stopSpeed chan struct{}
	stopOnce  sync.Once
}

// NewDownloadManager builds a manager and starts its 1 Hz speed-emission loop.
func NewDownloadManager(cfg models.Config, client *siteclient.Client, db *store.DB, idx bleve.Index, sink events.Sink) *DownloadManager {
	m := &DownloadManager{
		tasks:     make(map[int64]*ComicDownloadTask),
		comicSem:  make(chan struct{}, cfg.ComicConcurrency),
		imgSem:    make(chan struct{}, cfg.ImgConcurrency),
		client:    client,
		store:     db,
		index:     idx,
		sink:      sink,
		cfg:       cfg,
		stopSpeed: make(chan struct{}),
	}
	go m.speedLoop()
	return m
}

// Stop halts the speed-emission loop. It does not cancel any in-flight task.
func (m *DownloadManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopSpeed) })
}

// speedLoop ticks strictly once per second regardless of task count,
// swapping bytesPerSec to zero and emitting the prior second's total.
func (m *DownloadManager) speedLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			n := m.bytesPerSec.Swap(0)
			m.sink.DownloadSpeed(events.DownloadSpeedEvent{BytesPerSec: n})
		case <-m.stopSpeed:
			return
		}
	}
}

// Submit inserts a new task for comic in Pending and schedules its
// coordination loop. Idempotent: a non-terminal existing task for the same
// id is left untouched.
func (m *DownloadManager) Submit(comic models.Comic) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tasks[comic.ID]; ok && !t.state.Get().IsTerminal() {
		return
	}

	t := newComicDownloadTask(m, comic)
	m.tasks[comic.ID] = t
	go t.process()
}

// Pause sets a task's state to Paused regardless of its current state.
func (m *DownloadManager) Pause(id int64) error {
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	t.pause()
	return nil
}

// Resume transitions a task back to Pending, or — if the task has already
// reached a terminal state — resubmits a fresh task from the stored comic
// snapshot, overwriting the registry entry in place.
func (m *DownloadManager) Resume(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	if t.state.Get().IsTerminal() {
		fresh := newComicDownloadTask(m, t.comic)
		m.tasks[id] = fresh
		go fresh.process()
		return nil
	}
	t.resumeFromPaused()
	return nil
}

// Cancel sets a task's state to Cancelled.
func (m *DownloadManager) Cancel(id int64) error {
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	t.cancel()
	return nil
}

// List returns a snapshot of every registered task.
func (m *DownloadManager) List() []TaskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TaskSnapshot, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.snapshot())
	}
	return out
}

func (m *DownloadManager) lookup(id int64) (*ComicDownloadTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}
