// Package failure classifies errors into the categories that drive retry
// decisions.
//
// Every failure maps to one of four categories:
//
//   - Network: connection failures, timeouts, truncated transfers (retryable)
//   - Validation: malformed input such as a bad URL or version (fail fast)
//   - Filesystem: permission denied, disk full, other OS I/O errors (fail fast)
//   - Parsing: a catalog page is missing expected structure (retryable once)
//
// Components that know the category of a failure return a typed *Error:
//
//	return failure.New(failure.Parsing, "could not find mod name in page", "")
//
// Anything else is classified from the error chain:
//
//	rec := failure.Classify(err)
//	if !rec.Retryable {
//	    return err
//	}
//
// Decide turns a classified error into a three-way verdict so retry loops
// never inspect errors themselves.
package failure
