package recovery

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	acceptRanges string
	headErr      error
	rangeStatus  int
	rangeErr     error
	ranges       int
}

func (f *fakeChecker) Head(context.Context, string) (http.Header, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	h := http.Header{}
	if f.acceptRanges != "" {
		h.Set("Accept-Ranges", f.acceptRanges)
	}
	return h, nil
}

func (f *fakeChecker) RangeStatus(context.Context, string) (int, error) {
	f.ranges++
	return f.rangeStatus, f.rangeErr
}

func newManager(checker RangeChecker) *Manager {
	logger, _ := test.NewNullLogger()
	return NewManager(checker, logger)
}

func writePartial(t *testing.T, dest string, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(PartialPath(dest), make([]byte, n), 0644))
}

func TestSupportsRanges(t *testing.T) {
	tests := []struct {
		name    string
		checker *fakeChecker
		want    bool
		ranges  int
	}{
		{"header bytes", &fakeChecker{acceptRanges: "bytes"}, true, 0},
		{"header none", &fakeChecker{acceptRanges: "none", rangeStatus: http.StatusPartialContent}, false, 0},
		{"range 206", &fakeChecker{rangeStatus: http.StatusPartialContent}, true, 1},
		{"range 200", &fakeChecker{rangeStatus: http.StatusOK}, false, 1},
		{"head fails, range 206", &fakeChecker{headErr: errors.New("boom"), rangeStatus: http.StatusPartialContent}, true, 1},
		{"range fails", &fakeChecker{rangeErr: errors.New("boom")}, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newManager(tt.checker).SupportsRanges(context.Background(), "https://storage.test/a.zip")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ranges, tt.checker.ranges)
		})
	}
}

func TestCanResume(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a_1.0.0.zip")
	m := newManager(&fakeChecker{acceptRanges: "bytes"})

	assert.False(t, m.CanResume(context.Background(), dest, "u"), "no partial file")

	writePartial(t, dest, 0)
	assert.False(t, m.CanResume(context.Background(), dest, "u"), "empty partial file")

	writePartial(t, dest, 42)
	assert.True(t, m.CanResume(context.Background(), dest, "u"))
	assert.Equal(t, int64(42), m.GetResumeOffset(dest))

	state, ok := m.Inspect(dest, "u")
	require.True(t, ok)
	assert.Equal(t, PartialPath(dest), state.FilePath)
	assert.Equal(t, int64(42), state.BytesWritten)

	noRanges := newManager(&fakeChecker{acceptRanges: "none"})
	assert.False(t, noRanges.CanResume(context.Background(), dest, "u"))
}

func TestFinalize_ReplacesStaleFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "a_1.0.0.zip")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0644))
	require.NoError(t, os.WriteFile(PartialPath(dest), []byte("fresh"), 0644))

	m := newManager(nil)
	require.NoError(t, m.Finalize(PartialPath(dest), dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
	assert.NoFileExists(t, PartialPath(dest))
}

func TestFinalize_MissingPartialIsFilesystemError(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.zip")

	err := newManager(nil).Finalize(PartialPath(dest), dest)
	require.Error(t, err)
	assert.Equal(t, failure.Filesystem, failure.Classify(err).Category)
}

func TestCleanupPartial(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "a.zip")
	writePartial(t, dest, 3)

	m := newManager(nil)
	m.CleanupPartial(dest)
	assert.NoFileExists(t, PartialPath(dest))

	// Removing again is a no-op.
	m.CleanupPartial(dest)
}
