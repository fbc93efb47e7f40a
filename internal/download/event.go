package download

import "fmt"

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// EventKind identifies a lifecycle event.
type EventKind int

const (
	// EventAnalyzing is emitted when a mod's page has been read.
	EventAnalyzing EventKind = iota

	// EventDownloading reports transfer progress.
	EventDownloading

	// EventComplete is emitted when a mod is on disk, freshly downloaded
	// or skipped because it was already present.
	EventComplete

	// EventError is emitted when a mod could not be downloaded.
	EventError
)

// String returns the lower-case name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventAnalyzing:
		return "analyzing"
	case EventDownloading:
		return "downloading"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

const mib = 1 << 20

// Event represents a download progress update.
type Event struct {
	Kind EventKind
	Mod  string

	// Version is set on Analyzing and Complete events.
	Version string

	// Downloading fields.
	Percent      float64
	DownloadedMB float64
	TotalMB      float64
	SpeedMBps    float64

	// Complete fields.
	Skipped bool
	Path    string
	Bytes   int64

	// Error fields.
	Suggestion string

	Message string
	Level   ProgressLevel
}

func analyzingEvent(mod, version string) Event {
	return Event{
		Kind:    EventAnalyzing,
		Mod:     mod,
		Version: version,
		Message: fmt.Sprintf("Analyzing %s %s", mod, version),
		Level:   LevelVerbose,
	}
}

func downloadingEvent(mod string, fraction float64, downloaded, total int64, bytesPerSecond float64) Event {
	return Event{
		Kind:         EventDownloading,
		Mod:          mod,
		Percent:      fraction * 100,
		DownloadedMB: float64(downloaded) / mib,
		TotalMB:      float64(total) / mib,
		SpeedMBps:    bytesPerSecond / mib,
		Message:      fmt.Sprintf("Downloading %s: %.1f%%", mod, fraction*100),
		Level:        LevelVerbose,
	}
}

func completeEvent(mod, version, path string, bytes int64, skipped bool) Event {
	message := fmt.Sprintf("Downloaded: %s", mod)
	if skipped {
		message = fmt.Sprintf("Skipping existing: %s", mod)
	}
	return Event{
		Kind:    EventComplete,
		Mod:     mod,
		Version: version,
		Path:    path,
		Bytes:   bytes,
		Skipped: skipped,
		Message: message,
		Level:   LevelSuccess,
	}
}

func errorEvent(mod, message, suggestion string) Event {
	return Event{
		Kind:       EventError,
		Mod:        mod,
		Suggestion: suggestion,
		Message:    fmt.Sprintf("Error downloading %s: %s", mod, message),
		Level:      LevelError,
	}
}
