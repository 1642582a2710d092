package engine

import (
	"sync"

	"wnacg-downloader/internal/models"
)

// stateCell is a single-writer/multi-reader broadcast cell: a mutex-guarded
// value plus a "changed" channel that is closed and replaced on every Set.
// A reader that wants to wake on the next change takes a snapshot of the
// channel via Changed and selects on it; it is never sent a value, only
// closed, so any number of readers can wait on the same instant with no
// fan-out bookkeeping. This is the idiomatic Go equivalent of the original
// source's tokio::sync::watch channel, per SPEC_FULL.md §5.
type stateCell struct {
	mu      sync.Mutex
	value   models.DownloadTaskState
	changed chan struct{}
}

func newStateCell(initial models.DownloadTaskState) *stateCell {
	return &stateCell{value: initial, changed: make(chan struct{})}
}

// Get returns the current value.
func (c *stateCell) Get() models.DownloadTaskState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v and wakes every goroutine currently selecting on a channel
// returned by Changed. A Set to the value already held still wakes readers:
// callers that want idempotent no-ops should check Get first.
func (c *stateCell) Set(v models.DownloadTaskState) {
	c.mu.Lock()
	c.value = v
	old := c.changed
	c.changed = make(chan struct{})
	c.mu.Unlock()
	close(old)
}

// Changed returns the channel that will be closed on the next Set. Callers
// must re-fetch it after each wakeup to wait on the next change.
func (c *stateCell) Changed() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}
