package failure

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strconv"
	"syscall"

	"github.com/Masterminds/semver/v3"
)

// Category is the class of a failure.
type Category int

const (
	Network Category = iota
	Validation
	Filesystem
	Parsing
)

// String returns the lower-case name of the category.
func (c Category) String() string {
	switch c {
	case Network:
		return "network"
	case Validation:
		return "validation"
	case Filesystem:
		return "filesystem"
	case Parsing:
		return "parsing"
	default:
		return "unknown"
	}
}

// Retryable reports whether failures of this category may be retried.
func (c Category) Retryable() bool {
	return c == Network || c == Parsing
}

// Error is an error with a known category.
type Error struct {
	Category   Category
	Message    string
	Suggestion string
	Err        error
}

// New creates an Error without a cause.
func New(category Category, message, suggestion string) *Error {
	return &Error{Category: category, Message: message, Suggestion: suggestion}
}

// Wrap creates an Error caused by err.
func Wrap(category Category, err error, message, suggestion string) *Error {
	return &Error{Category: category, Message: message, Suggestion: suggestion, Err: err}
}

// Error implements error.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap returns the cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Record is the classification of one failure.
type Record struct {
	Category   Category
	Retryable  bool
	Message    string
	Suggestion string
}

// Classify maps err to a Record. A nil error yields the zero Record.
func Classify(err error) Record {
	if err == nil {
		return Record{}
	}

	category, suggestion := categorize(err)
	if suggestion == "" {
		suggestion = defaultSuggestion(category, err)
	}
	return Record{
		Category:   category,
		Retryable:  category.Retryable(),
		Message:    err.Error(),
		Suggestion: suggestion,
	}
}

func categorize(err error) (Category, string) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Category, typed.Suggestion
	}
	if isNetwork(err) {
		return Network, ""
	}
	if isValidation(err) {
		return Validation, ""
	}
	if isFilesystem(err) {
		return Filesystem, ""
	}
	return Parsing, ""
}

func isNetwork(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.ECONNABORTED,
		syscall.EPIPE, syscall.ETIMEDOUT, syscall.EHOSTUNREACH, syscall.ENETUNREACH,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Op != "parse"
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isValidation(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return true
	}
	var escapeErr url.EscapeError
	if errors.As(err, &escapeErr) {
		return true
	}
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return true
	}
	return errors.Is(err, semver.ErrInvalidSemVer)
}

func isFilesystem(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	for _, errno := range []syscall.Errno{
		syscall.ENOSPC, syscall.EROFS, syscall.EDQUOT, syscall.ENOTDIR, syscall.EISDIR,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return true
	}
	var linkErr *os.LinkError
	if errors.As(err, &linkErr) {
		return true
	}
	var syscallErr *os.SyscallError
	return errors.As(err, &syscallErr)
}

func defaultSuggestion(category Category, err error) string {
	switch category {
	case Network:
		if errors.Is(err, context.DeadlineExceeded) {
			return "The server is taking too long to respond. Try again later."
		}
		return "Check your internet connection and try again"
	case Filesystem:
		if errors.Is(err, syscall.ENOSPC) {
			return "Free up disk space and try again"
		}
		return "Check file permissions and ensure you have write access to the output directory"
	case Parsing:
		return "The mod page might be temporarily unavailable. Try again later."
	case Validation:
		return "Check the mod URL or name and try again"
	}
	return ""
}
