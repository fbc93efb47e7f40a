package failure

// Verdict is the outcome of one attempt as seen by a retry loop.
type Verdict int

const (
	// Success means the attempt worked.
	Success Verdict = iota

	// Retry means the attempt failed and another attempt is allowed.
	Retry

	// Fatal means the attempt failed and no further attempt is allowed.
	Fatal
)

// String implements fmt.Stringer.
func (v Verdict) String() string {
	switch v {
	case Success:
		return "success"
	case Retry:
		return "retry"
	default:
		return "fatal"
	}
}

// Decide classifies the error of attempt (1-based) out of maxAttempts.
//
// Network failures are retried until the budget is spent. Parsing failures
// are retried once. Validation and Filesystem failures are never retried.
func Decide(err error, attempt, maxAttempts int) (Verdict, Record) {
	if err == nil {
		return Success, Record{}
	}

	rec := Classify(err)
	if !rec.Retryable || attempt >= maxAttempts {
		return Fatal, rec
	}
	if rec.Category == Parsing && attempt > 1 {
		return Fatal, rec
	}
	return Retry, rec
}
