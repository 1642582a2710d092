package events

import (
	"sync"
	"testing"

	"wnacg-downloader/internal/models"
)

func TestFormatMBPerSec(t *testing.T) {
	cases := []struct {
		bytesPerSec uint64
		want        string
	}{
		{0, "0.00 MB/s"},
		{1_048_576, "1.00 MB/s"},
		{1_572_864, "1.50 MB/s"},
	}
	for _, c := range cases {
		if got := formatMBPerSec(c.bytesPerSec); got != c.want {
			t.Errorf("formatMBPerSec(%d) = %q, want %q", c.bytesPerSec, got, c.want)
		}
	}
}

// recordingSink counts how many times each event type lands, for asserting
// fan-out order and completeness without depending on log output format.
type recordingSink struct {
	mu     sync.Mutex
	tasks  []DownloadTaskEvent
	speeds []DownloadSpeedEvent
}

func (r *recordingSink) DownloadTask(e DownloadTaskEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, e)
}

func (r *recordingSink) DownloadSpeed(e DownloadSpeedEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.speeds = append(r.speeds, e)
}

func TestMultiSinkFansOutToEveryMember(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	m := MultiSink{a, b}

	m.DownloadTask(DownloadTaskEvent{ComicID: 1, State: models.StateDownloading})
	m.DownloadSpeed(DownloadSpeedEvent{BytesPerSec: 2048})

	for name, s := range map[string]*recordingSink{"a": a, "b": b} {
		if len(s.tasks) != 1 || s.tasks[0].ComicID != 1 {
			t.Errorf("sink %s tasks = %+v, want one event for comic 1", name, s.tasks)
		}
		if len(s.speeds) != 1 || s.speeds[0].BytesPerSec != 2048 {
			t.Errorf("sink %s speeds = %+v, want one event of 2048 bytes/sec", name, s.speeds)
		}
	}
}

func TestUILiveSinkDoesNotPanicOnEvents(t *testing.T) {
	s := NewUILiveSink()
	defer s.Stop()

	s.DownloadTask(DownloadTaskEvent{ComicID: 1, Title: "a", State: models.StateDownloading, Downloaded: 1, Total: 4})
	s.DownloadTask(DownloadTaskEvent{ComicID: 2, Title: "b", State: models.StateFailed, Error: "shortfall"})
	s.DownloadSpeed(DownloadSpeedEvent{BytesPerSec: 1_048_576})
}
