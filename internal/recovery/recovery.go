package recovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/sirupsen/logrus"
)

// PartSuffix is appended to the destination path of an incomplete download.
const PartSuffix = ".part"

// RangeChecker asks a server about byte-range support.
type RangeChecker interface {
	Head(ctx context.Context, url string) (http.Header, error)
	RangeStatus(ctx context.Context, url string) (int, error)
}

// Manager inspects, finalizes and removes partial downloads.
type Manager struct {
	checker RangeChecker
	log     logrus.FieldLogger
}

// NewManager creates a Manager.
func NewManager(checker RangeChecker, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{checker: checker, log: log}
}

// PartialPath returns the partial-file path for dest.
func PartialPath(dest string) string {
	return dest + PartSuffix
}

// GetResumeOffset returns the size of the partial file of dest, or 0.
func (m *Manager) GetResumeOffset(dest string) int64 {
	info, err := os.Stat(PartialPath(dest))
	if err != nil || !info.Mode().IsRegular() {
		return 0
	}
	return info.Size()
}

// Inspect describes the partial file of dest, if one exists and is non-empty.
func (m *Manager) Inspect(dest, url string) (model.PartialTransferState, bool) {
	size := m.GetResumeOffset(dest)
	if size == 0 {
		return model.PartialTransferState{}, false
	}
	return model.PartialTransferState{
		FilePath:     PartialPath(dest),
		BytesWritten: size,
		SourceURL:    url,
	}, true
}

// CanResume reports whether a download of url into dest may continue from
// the existing partial file.
//
// The partial file must be non-empty and readable, and the server must
// support byte ranges.
func (m *Manager) CanResume(ctx context.Context, dest, url string) bool {
	if m.GetResumeOffset(dest) == 0 || !readable(PartialPath(dest)) {
		return false
	}
	return m.SupportsRanges(ctx, url)
}

// SupportsRanges reports whether the server honours byte ranges for url.
//
// An Accept-Ranges header answers directly. Without one, a single-byte
// ranged request must come back as 206 Partial Content.
func (m *Manager) SupportsRanges(ctx context.Context, url string) bool {
	if m.checker == nil {
		return false
	}
	log := m.log.WithField("url", url)

	header, err := m.checker.Head(ctx, url)
	if err != nil {
		log.WithError(err).Debug("HEAD request failed, probing range support")
	} else {
		switch strings.ToLower(strings.TrimSpace(header.Get("Accept-Ranges"))) {
		case "bytes":
			return true
		case "none":
			return false
		}
	}

	status, err := m.checker.RangeStatus(ctx, url)
	if err != nil {
		log.WithError(err).Warn("Could not determine range support")
		return false
	}
	return status == http.StatusPartialContent
}

// Finalize moves a completed partial file to its final name, replacing any
// stale file there.
func (m *Manager) Finalize(partial, final string) error {
	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return failure.Wrap(failure.Filesystem, err, "creating output directory", "")
	}
	if err := os.Remove(final); err != nil && !os.IsNotExist(err) {
		return failure.Wrap(failure.Filesystem, err, "removing stale "+filepath.Base(final), "")
	}
	if err := os.Rename(partial, final); err != nil {
		return failure.Wrap(failure.Filesystem, err, fmt.Sprintf("renaming %s", filepath.Base(partial)), "")
	}
	return nil
}

// CleanupPartial removes the partial file of dest. Failures are logged only.
func (m *Manager) CleanupPartial(dest string) {
	err := os.Remove(PartialPath(dest))
	if err != nil && !os.IsNotExist(err) {
		m.log.WithError(err).WithField("file", PartialPath(dest)).Warn("Could not remove partial file")
	}
}

func readable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1)
	_, err = f.Read(buf)
	return err == nil || err == io.EOF
}
