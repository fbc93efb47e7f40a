package tui

import (
	"sort"
	"sync"

	"github.com/handiism/factorio-mod-downloader/internal/download"
)

const maxLogs = 10

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   download.ProgressLevel
}

// Transfer is the latest progress of one mod being downloaded.
type Transfer struct {
	Mod          string
	Percent      float64
	DownloadedMB float64
	TotalMB      float64
	SpeedMBps    float64
}

// Snapshot is a copy of the tracker state taken for rendering.
type Snapshot struct {
	Logs       []LogEntry
	Active     []Transfer
	Downloaded int
	Skipped    int
	Failed     int
	Bytes      int64
}

// tracker collects manager events between UI ticks.
type tracker struct {
	mu      sync.Mutex
	verbose bool
	logs    []LogEntry
	active  map[string]Transfer
	snap    Snapshot

	// onComplete is called for every freshly downloaded mod.
	onComplete func(download.Event)
}

func newTracker(verbose bool) *tracker {
	return &tracker{verbose: verbose, active: make(map[string]Transfer)}
}

// Observe is the download.Manager event callback.
func (t *tracker) Observe(event download.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch event.Kind {
	case download.EventDownloading:
		t.active[event.Mod] = Transfer{
			Mod:          event.Mod,
			Percent:      event.Percent,
			DownloadedMB: event.DownloadedMB,
			TotalMB:      event.TotalMB,
			SpeedMBps:    event.SpeedMBps,
		}
	case download.EventComplete:
		delete(t.active, event.Mod)
		if event.Skipped {
			t.snap.Skipped++
		} else {
			t.snap.Downloaded++
			t.snap.Bytes += event.Bytes
			if t.onComplete != nil {
				t.onComplete(event)
			}
		}
	case download.EventError:
		delete(t.active, event.Mod)
		t.snap.Failed++
	}

	// Per-chunk progress is shown by the bars, not the log.
	if event.Kind == download.EventDownloading {
		return
	}
	if event.Level == download.LevelVerbose && !t.verbose {
		return
	}
	t.logs = append(t.logs, LogEntry{Message: event.Message, Level: event.Level})
	if len(t.logs) > maxLogs {
		t.logs = t.logs[len(t.logs)-maxLogs:]
	}
}

// Snapshot returns the current state with active transfers sorted by name.
func (t *tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := t.snap
	snap.Logs = append([]LogEntry(nil), t.logs...)
	snap.Active = make([]Transfer, 0, len(t.active))
	for _, transfer := range t.active {
		snap.Active = append(snap.Active, transfer)
	}
	sort.Slice(snap.Active, func(i, j int) bool { return snap.Active[i].Mod < snap.Active[j].Mod })
	return snap
}
