// Package events defines the notifications DownloadManager emits as tasks
// progress, and the sinks that render them: a structured-log sink for
// unattended runs and a uilive-rendered progress display for interactive
// runs, grounded on the teacher's cmd_download_worker.go/cmd_images_worker.go
// uilive.Writer usage.
package events

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gosuri/uilive"
	log "github.com/sirupsen/logrus"

	"wnacg-downloader/internal/models"
)

// DownloadTaskEvent reports a ComicDownloadTask's state and progress.
type DownloadTaskEvent struct {
	ComicID    int64
	Title      string
	State      models.DownloadTaskState
	Downloaded int64
	Total      int64
	Error      string
}

// DownloadSpeedEvent reports the aggregate throughput over the prior second.
type DownloadSpeedEvent struct {
	BytesPerSec uint64
}

// Sink receives task and speed events. Implementations must be safe for
// concurrent use, since the manager emits from multiple task goroutines.
type Sink interface {
	DownloadTask(DownloadTaskEvent)
	DownloadSpeed(DownloadSpeedEvent)
}

// MultiSink fans a single emission out to every member sink, in order.
type MultiSink []Sink

func (m MultiSink) DownloadTask(e DownloadTaskEvent) {
	for _, s := range m {
		s.DownloadTask(e)
	}
}

func (m MultiSink) DownloadSpeed(e DownloadSpeedEvent) {
	for _, s := range m {
		s.DownloadSpeed(e)
	}
}

// LogSink writes one logrus line per event, for unattended/CI runs.
type LogSink struct{}

func (LogSink) DownloadTask(e DownloadTaskEvent) {
	entry := log.WithFields(log.Fields{
		"comicId":    e.ComicID,
		"title":      e.Title,
		"state":      e.State,
		"downloaded": e.Downloaded,
		"total":      e.Total,
	})
	if e.Error != "" {
		entry.WithField("error", e.Error).Error("download task")
		return
	}
	entry.Info("download task")
}

func (LogSink) DownloadSpeed(e DownloadSpeedEvent) {
	log.Debugf("download speed: %s", formatMBPerSec(e.BytesPerSec))
}

// formatMBPerSec renders a byte count as megabytes to two decimal places
// with a " MB/s" suffix, per SPEC_FULL.md §4.2's speed-emission format.
func formatMBPerSec(bytesPerSec uint64) string {
	return fmt.Sprintf("%.2f MB/s", float64(bytesPerSec)/1_048_576)
}

// UILiveSink renders one line per comic plus a trailing throughput summary
// line, repainted in place via gosuri/uilive.
type UILiveSink struct {
	writer *uilive.Writer

	mu    sync.Mutex
	tasks map[int64]DownloadTaskEvent
	speed uint64
}

// NewUILiveSink starts a uilive writer against os.Stdout.
func NewUILiveSink() *UILiveSink {
	w := uilive.New()
	w.Start()
	return &UILiveSink{writer: w, tasks: make(map[int64]DownloadTaskEvent)}
}

func (s *UILiveSink) DownloadTask(e DownloadTaskEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[e.ComicID] = e
	s.render()
}

func (s *UILiveSink) DownloadSpeed(e DownloadSpeedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = e.BytesPerSec
	s.render()
}

// render repaints every line; caller must hold s.mu.
func (s *UILiveSink) render() {
	ids := make([]int64, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		t := s.tasks[id]
		line := fmt.Sprintf("[%s] %s (%d/%d)", t.State, t.Title, t.Downloaded, t.Total)
		if t.Error != "" {
			line += ": " + t.Error
		}
		fmt.Fprintln(s.writer.Newline(), line)
	}
	fmt.Fprintf(s.writer, "throughput: %s\n", formatMBPerSec(s.speed))
	s.writer.Flush()
}

// Stop stops the underlying uilive writer, leaving the final frame in place.
func (s *UILiveSink) Stop() {
	s.writer.Stop()
}
