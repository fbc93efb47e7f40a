package model

import "time"

// TransferOutcome is the result of transferring one artifact.
type TransferOutcome struct {
	// Success is true when the artifact was written and finalized.
	Success bool

	// BytesWritten is the final size of the artifact on success, or the
	// number of bytes written by the last attempt on failure.
	BytesWritten int64

	// Transferred counts the bytes received over the network by this
	// transfer. Bytes resumed from an earlier partial file are excluded.
	Transferred int64

	// Duration is the wall time spent in the transfer, retries included.
	Duration time.Duration

	// Attempts is the number of attempts made.
	Attempts int

	// Err is the last error when Success is false.
	Err error
}

// Error returns the failure message, or "" on success.
func (o TransferOutcome) Error() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// FailedMod pairs a mod name with the reason it failed.
type FailedMod struct {
	Name       string
	Error      string
	Suggestion string
}

// AggregateResult is the outcome of a whole download request.
//
// A request always completes: failures of individual mods are listed in
// Failed and earlier successes are kept.
type AggregateResult struct {
	// Success is true when no mod failed.
	Success bool

	// DownloadedNames lists the mods transferred by this request.
	DownloadedNames []string

	// SkippedNames lists the mods that were already present on disk.
	SkippedNames []string

	// Failed lists the mods that could not be downloaded.
	Failed []FailedMod

	// TotalBytes counts freshly transferred bytes only.
	TotalBytes int64

	// Duration is the wall time of the request.
	Duration time.Duration
}

// Merge combines the results of independent requests.
//
// Durations are not summed: the merged duration is the longest one, which
// matches wall time when the requests ran concurrently.
func Merge(results ...AggregateResult) AggregateResult {
	merged := AggregateResult{Success: true}
	for _, r := range results {
		merged.DownloadedNames = append(merged.DownloadedNames, r.DownloadedNames...)
		merged.SkippedNames = append(merged.SkippedNames, r.SkippedNames...)
		merged.Failed = append(merged.Failed, r.Failed...)
		merged.TotalBytes += r.TotalBytes
		if r.Duration > merged.Duration {
			merged.Duration = r.Duration
		}
	}
	merged.Success = len(merged.Failed) == 0
	return merged
}

// PartialTransferState describes an incomplete artifact on disk.
type PartialTransferState struct {
	FilePath     string
	BytesWritten int64
	SourceURL    string
}
