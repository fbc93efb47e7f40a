package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/failure"
	fmdhttp "github.com/handiism/factorio-mod-downloader/internal/http"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/recovery"
	"github.com/sirupsen/logrus"
)

// Chunk size bounds.
const (
	MinChunkSize = 64 << 10
	MaxChunkSize = 4 << 20
)

// DefaultProgressInterval is the minimum time between progress reports.
const DefaultProgressInterval = 200 * time.Millisecond

// ProgressFunc receives transfer progress. fraction is 0 when total is
// unknown. bytesPerSecond is the average since the transfer started,
// retries and backoff included, over freshly received bytes.
type ProgressFunc func(fraction float64, downloaded, total int64, bytesPerSecond float64)

// Streamer opens an artifact body starting at a byte offset.
type Streamer interface {
	Stream(ctx context.Context, url string, offset int64) (*fmdhttp.Stream, error)
}

// Options tunes an Engine.
type Options struct {
	// RetryDelay is the pause before the second attempt.
	RetryDelay time.Duration

	// RetryExponent multiplies the delay after every failed attempt.
	// Values below 1 mean a constant delay.
	RetryExponent float64

	// ProgressInterval throttles progress reports.
	ProgressInterval time.Duration
}

// Engine downloads artifacts.
type Engine struct {
	client   Streamer
	recovery *recovery.Manager
	log      logrus.FieldLogger
	opts     Options
	wait     func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(client Streamer, rec *recovery.Manager, log logrus.FieldLogger, opts Options) *Engine {
	if opts.RetryExponent < 1 {
		opts.RetryExponent = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = DefaultProgressInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{
		client:   client,
		recovery: rec,
		log:      log,
		opts:     opts,
		wait:     sleep,
		now:      time.Now,
	}
}

// ChunkSize returns the read size for an artifact of total bytes: about 1%
// of the total, clamped to [MinChunkSize, MaxChunkSize].
func ChunkSize(total int64) int {
	if total <= 0 {
		return MinChunkSize
	}
	size := total / 100
	if size < MinChunkSize {
		return MinChunkSize
	}
	if size > MaxChunkSize {
		return MaxChunkSize
	}
	return int(size)
}

// Transfer downloads url to dest.
//
// maxRetries is the total number of attempts; values below 1 mean one
// attempt. The outcome carries the last error when the transfer fails.
func (e *Engine) Transfer(ctx context.Context, url, dest string, resume bool, maxRetries int, onProgress ProgressFunc) model.TransferOutcome {
	start := e.now()
	if maxRetries < 1 {
		maxRetries = 1
	}
	log := e.log.WithField("file", filepath.Base(dest))
	p := &progress{started: start, interval: e.opts.ProgressInterval, onProgress: onProgress, now: e.now}

	var outcome model.TransferOutcome
	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		written, err := e.attempt(ctx, url, dest, resume, p)
		outcome.BytesWritten = written
		outcome.Transferred = p.fresh
		if err == nil {
			outcome.Success = true
			outcome.Err = nil
			outcome.Duration = e.now().Sub(start)
			return outcome
		}
		outcome.Err = err

		if ctx.Err() != nil {
			log.WithField("bytes", written).Info("Transfer cancelled, partial file kept")
			outcome.Duration = e.now().Sub(start)
			return outcome
		}

		verdict, rec := failure.Decide(err, attempt, maxRetries)
		if verdict == failure.Fatal {
			log.WithFields(logrus.Fields{
				"attempt":  attempt,
				"category": rec.Category,
			}).WithError(err).Error("Transfer failed")
			outcome.Duration = e.now().Sub(start)
			return outcome
		}

		log.WithFields(logrus.Fields{
			"attempt":  attempt,
			"of":       maxRetries,
			"category": rec.Category,
		}).WithError(err).Warn("Transfer failed, retrying")

		if !resume {
			e.recovery.CleanupPartial(dest)
		}
		if err := e.wait(ctx, e.retryDelay(attempt)); err != nil {
			outcome.Err = err
			outcome.Duration = e.now().Sub(start)
			return outcome
		}
	}
}

func (e *Engine) retryDelay(attempt int) time.Duration {
	factor := math.Pow(e.opts.RetryExponent, float64(attempt-1))
	return time.Duration(float64(e.opts.RetryDelay) * factor)
}

// attempt performs one download pass and returns the size of the partial
// (or finalized) file.
func (e *Engine) attempt(ctx context.Context, url, dest string, resume bool, p *progress) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, failure.Wrap(failure.Filesystem, err, "creating output directory", "")
	}

	var offset int64
	if resume && e.recovery.CanResume(ctx, dest, url) {
		offset = e.recovery.GetResumeOffset(dest)
	}

	stream, err := e.client.Stream(ctx, url, offset)
	if err != nil && offset > 0 && fmdhttp.IsStatus(err, http.StatusRequestedRangeNotSatisfiable) {
		e.log.WithField("offset", offset).Info("Partial file does not match the remote file, restarting")
		offset = 0
		stream, err = e.client.Stream(ctx, url, 0)
	}
	if err != nil {
		return offset, err
	}
	defer stream.Body.Close()

	if offset > 0 && stream.Start == 0 {
		e.log.Info("Server ignored the range request, restarting from the beginning")
	}

	flags := os.O_CREATE | os.O_WRONLY
	if stream.Start > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	partial := recovery.PartialPath(dest)
	file, err := os.OpenFile(partial, flags, 0644)
	if err != nil {
		return stream.Start, failure.Wrap(failure.Filesystem, err, "opening partial file", "")
	}
	defer file.Close()

	written, err := e.copy(ctx, file, stream, p)
	if err != nil {
		return written, err
	}
	if err := file.Close(); err != nil {
		return written, failure.Wrap(failure.Filesystem, err, "closing partial file", "")
	}
	if err := e.recovery.Finalize(partial, dest); err != nil {
		return written, err
	}
	return written, nil
}

// progress spans all attempts of one transfer.
type progress struct {
	started    time.Time
	interval   time.Duration
	onProgress ProgressFunc
	now        func() time.Time
	lastReport time.Time

	// fresh counts bytes received from the network by any attempt.
	fresh int64
}

func (p *progress) report(written, total int64, force bool) {
	if p.onProgress == nil {
		return
	}
	now := p.now()
	if !force && now.Sub(p.lastReport) < p.interval {
		return
	}
	p.lastReport = now

	var fraction float64
	switch {
	case force:
		fraction = 1
	case total > 0:
		fraction = float64(written) / float64(total)
	}
	if total <= 0 && force {
		total = written
	}
	var speed float64
	if elapsed := now.Sub(p.started).Seconds(); elapsed > 0 {
		speed = float64(p.fresh) / elapsed
	}
	p.onProgress(fraction, written, total, speed)
}

func (e *Engine) copy(ctx context.Context, file *os.File, stream *fmdhttp.Stream, p *progress) (int64, error) {
	written := stream.Start
	total := stream.Total
	buf := make([]byte, ChunkSize(total))

	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := stream.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return written, failure.Wrap(failure.Filesystem, werr, "writing partial file", "")
			}
			written += int64(n)
			p.fresh += int64(n)
			p.report(written, total, false)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return written, ctxErr
			}
			return written, failure.Wrap(failure.Network, err, "reading body", "")
		}
	}

	if total > 0 && written < total {
		return written, fmt.Errorf("received %d of %d bytes: %w", written, total, io.ErrUnexpectedEOF)
	}
	p.report(written, total, true)
	return written, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
