package model

// ModState is the position of a mod in the download state machine:
//
//	Pending -> Analyzing -> {Skipped | Downloading} -> {Complete | Failed}
type ModState string

const (
	// StatePending means the mod is queued.
	StatePending ModState = "Pending"

	// StateAnalyzing means the destination is being checked.
	StateAnalyzing ModState = "Analyzing"

	// StateSkipped means the artifact was already present.
	StateSkipped ModState = "Skipped"

	// StateDownloading means the transfer is in progress.
	StateDownloading ModState = "Downloading"

	// StateComplete means the artifact was downloaded.
	StateComplete ModState = "Complete"

	// StateFailed means the mod could not be downloaded.
	StateFailed ModState = "Failed"
)

// String returns the string representation of ModState.
func (s ModState) String() string {
	return string(s)
}

// IsTerminal returns true for Skipped, Complete and Failed.
func (s ModState) IsTerminal() bool {
	return s == StateSkipped || s == StateComplete || s == StateFailed
}

// CanTransition reports whether the state machine allows moving from s to next.
func (s ModState) CanTransition(next ModState) bool {
	switch s {
	case StatePending:
		return next == StateAnalyzing
	case StateAnalyzing:
		return next == StateSkipped || next == StateDownloading || next == StateFailed
	case StateDownloading:
		return next == StateComplete || next == StateFailed
	}
	return false
}
