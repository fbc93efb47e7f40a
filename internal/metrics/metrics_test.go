package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/download"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	r := NewRecorder()

	r.Observe(download.Event{Kind: download.EventAnalyzing, Mod: "A"})
	r.Observe(download.Event{Kind: download.EventDownloading, Mod: "A"})
	r.Observe(download.Event{Kind: download.EventComplete, Mod: "A", Bytes: 1500})
	r.Observe(download.Event{Kind: download.EventComplete, Mod: "B", Skipped: true})
	r.Observe(download.Event{Kind: download.EventError, Mod: "C"})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.modsTotal.WithLabelValues(ResultDownloaded)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.modsTotal.WithLabelValues(ResultSkipped)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.modsTotal.WithLabelValues(ResultFailed)))
	assert.Zero(t, testutil.ToFloat64(r.bytesTotal), "artifact sizes are not received bytes")
	assert.Equal(t, 2.0, testutil.ToFloat64(r.eventsTotal.WithLabelValues("complete")))
	assert.Equal(t, 4, testutil.CollectAndCount(r.eventsTotal))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.Observe(download.Event{Kind: download.EventComplete, Mod: "A", Bytes: 42})
	r.RecordResult(model.AggregateResult{Duration: 3 * time.Second, TotalBytes: 42})

	path := filepath.Join(t.TempDir(), "fmd.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, "fmd_bytes_downloaded_total 42"))
	assert.True(t, strings.Contains(text, "fmd_invocation_duration_seconds_count 1"))
	assert.True(t, strings.Contains(text, `fmd_mods_total{result="downloaded"} 1`))
}
