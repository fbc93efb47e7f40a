package download

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/handiism/factorio-mod-downloader/internal/config"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/http"
	ioutils "github.com/handiism/factorio-mod-downloader/internal/io"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/handiism/factorio-mod-downloader/internal/recovery"
	"github.com/handiism/factorio-mod-downloader/internal/resolve"
	"github.com/handiism/factorio-mod-downloader/internal/transfer"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Manager coordinates mod downloads.
type Manager struct {
	settings   *config.Settings
	provider   portal.Provider
	httpClient *http.Client
	log        logrus.FieldLogger

	states map[string]model.ModState
	mu     sync.RWMutex

	// destLocks serializes concurrent requests that need the same artifact.
	destLocks map[string]*sync.Mutex
	destMu    sync.Mutex

	onEvent func(Event)
	eventMu sync.Mutex
}

// NewManager creates a new download Manager.
func NewManager(settings *config.Settings, provider portal.Provider, httpClient *http.Client, log logrus.FieldLogger, onEvent func(Event)) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		settings:   settings,
		provider:   provider,
		httpClient: httpClient,
		log:        log,
		states:     make(map[string]model.ModState),
		destLocks:  make(map[string]*sync.Mutex),
		onEvent:    onEvent,
	}
}

// invocation is the state owned by one DownloadMod or Plan call.
type invocation struct {
	log      *logrus.Entry
	resolver *resolve.Resolver
	engine   *transfer.Engine
}

func (m *Manager) newInvocation(input string) *invocation {
	log := m.log.WithFields(logrus.Fields{"run": uuid.NewString(), "request": input})

	resolver := resolve.New(m.provider, log, resolve.Options{
		OptionalDepth: m.settings.OptionalDepth,
		MaxDepth:      m.settings.MaxDepth,
		PageRetries:   m.settings.PageRetries,
		RetryDelay:    m.settings.RetryDelayDuration(),
		Excluded:      m.settings.Excluded(),
		StorageURL:    m.settings.StorageURL,
		OnResolved: func(ref model.ModReference) {
			m.setState(ref.Name, model.StatePending)
			m.setState(ref.Name, model.StateAnalyzing)
			m.emit(analyzingEvent(ref.Name, ref.Version))
		},
	})
	engine := transfer.NewEngine(m.httpClient, recovery.NewManager(m.httpClient, log), log, transfer.Options{
		RetryDelay:    m.settings.RetryDelayDuration(),
		RetryExponent: m.settings.RetryExponent,
	})
	return &invocation{log: log, resolver: resolver, engine: engine}
}

// Plan resolves input without downloading anything.
//
// Sizes are looked up with HEAD requests; a size that cannot be determined
// is left at 0.
func (m *Manager) Plan(ctx context.Context, input string) (model.DownloadList, error) {
	inv := m.newInvocation(input)

	list, err := m.resolve(ctx, inv, input)
	if err != nil {
		return nil, err
	}

	for i := range list {
		size, err := m.httpClient.GetFileSize(ctx, list[i].DownloadURL)
		if err != nil {
			inv.log.WithField("mod", list[i].Name).WithError(err).Debug("Could not determine size")
			continue
		}
		list[i].Size = size
	}
	return list, nil
}

func (m *Manager) resolve(ctx context.Context, inv *invocation, input string) (model.DownloadList, error) {
	ref, err := portal.ParseModRef(input)
	if err != nil {
		return nil, err
	}

	pageURL := ref.URL
	if pageURL == "" {
		pageURL = portal.ModPageURL(m.settings.MirrorPageURL, m.settings.CatalogURL, ref.Name)
	}

	tree, err := inv.resolver.ResolveVersion(ctx, pageURL, ref.Version, m.settings.IncludeOptional)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		inv.log.WithField("mod", ref.Name).Info("Mod is reserved, nothing to download")
	}
	return resolve.Flatten(tree, m.settings.Excluded()), nil
}

// DownloadMod resolves input and downloads every mod of its dependency
// tree that is not already present.
//
// The result lists every mod that failed; earlier successes are kept.
func (m *Manager) DownloadMod(ctx context.Context, input string) (result model.AggregateResult) {
	start := time.Now()
	inv := m.newInvocation(input)

	defer func() {
		if r := recover(); r != nil {
			inv.log.WithField("panic", r).Error("Download aborted")
			result.Failed = append(result.Failed, model.FailedMod{Name: input, Error: fmt.Sprint(r)})
		}
		result.Success = len(result.Failed) == 0
		result.Duration = time.Since(start)
		inv.log.WithFields(logrus.Fields{
			"downloaded": len(result.DownloadedNames),
			"skipped":    len(result.SkippedNames),
			"failed":     len(result.Failed),
			"bytes":      result.TotalBytes,
			"duration":   result.Duration.Round(time.Millisecond),
		}).Info("Download finished")
	}()

	list, err := m.resolve(ctx, inv, input)
	if err != nil {
		rec := failure.Classify(err)
		name := input
		if ref, perr := portal.ParseModRef(input); perr == nil {
			name = ref.Name
			m.setState(name, model.StateFailed)
		}
		inv.log.WithError(err).Error("Could not resolve mod")
		result.Failed = append(result.Failed, model.FailedMod{Name: name, Error: rec.Message, Suggestion: rec.Suggestion})
		m.emit(errorEvent(name, rec.Message, rec.Suggestion))
		return result
	}

	if err := ioutils.EnsureDir(m.settings.OutputDir); err != nil {
		rec := failure.Classify(failure.Wrap(failure.Filesystem, err, "creating output directory", ""))
		for _, mod := range list {
			m.fail(&result, mod.Name, rec)
		}
		return result
	}

	for _, mod := range list {
		if err := ctx.Err(); err != nil {
			m.fail(&result, mod.Name, failure.Classify(err))
			continue
		}
		m.downloadOne(ctx, inv, mod, &result)
	}
	return result
}

func (m *Manager) downloadOne(ctx context.Context, inv *invocation, mod model.ModReference, result *model.AggregateResult) {
	log := inv.log.WithFields(logrus.Fields{"mod": mod.Name, "version": mod.Version})
	dest := filepath.Join(m.settings.OutputDir, mod.FileName())

	unlock := m.lockDestination(dest)
	defer unlock()

	if ioutils.FileExists(dest) {
		log.Info("Already downloaded, skipping")
		m.setState(mod.Name, model.StateSkipped)
		result.SkippedNames = append(result.SkippedNames, mod.Name)
		m.emit(completeEvent(mod.Name, mod.Version, dest, 0, true))
		return
	}

	m.setState(mod.Name, model.StateDownloading)
	m.emit(downloadingEvent(mod.Name, 0, 0, mod.Size, 0))

	outcome := inv.engine.Transfer(ctx, mod.DownloadURL, dest, m.settings.Resume, m.settings.MaxRetries,
		func(fraction float64, downloaded, total int64, bytesPerSecond float64) {
			m.emit(downloadingEvent(mod.Name, fraction, downloaded, total, bytesPerSecond))
		})

	if !outcome.Success {
		m.fail(result, mod.Name, failure.Classify(outcome.Err))
		return
	}

	log.WithFields(logrus.Fields{
		"bytes":    outcome.BytesWritten,
		"attempts": outcome.Attempts,
	}).Info("Downloaded")
	m.setState(mod.Name, model.StateComplete)
	result.DownloadedNames = append(result.DownloadedNames, mod.Name)
	result.TotalBytes += outcome.Transferred
	m.emit(completeEvent(mod.Name, mod.Version, dest, outcome.BytesWritten, false))
}

// lockDestination blocks until no other request of this Manager works on
// dest. Requests sharing a dependency wait for the first transfer and then
// find the artifact present.
func (m *Manager) lockDestination(dest string) func() {
	m.destMu.Lock()
	lock, ok := m.destLocks[dest]
	if !ok {
		lock = &sync.Mutex{}
		m.destLocks[dest] = lock
	}
	m.destMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func (m *Manager) fail(result *model.AggregateResult, name string, rec failure.Record) {
	m.setState(name, model.StateFailed)
	result.Failed = append(result.Failed, model.FailedMod{Name: name, Error: rec.Message, Suggestion: rec.Suggestion})
	m.emit(errorEvent(name, rec.Message, rec.Suggestion))
}

// DownloadBatch runs DownloadMod for every input, at most
// settings.MaxConcurrentMods at a time, and merges the results.
func (m *Manager) DownloadBatch(ctx context.Context, inputs []string) model.AggregateResult {
	start := time.Now()

	limit := m.settings.MaxConcurrentMods
	if limit < 1 {
		limit = 1
	}
	if limit > config.MaxConcurrentModsLimit {
		limit = config.MaxConcurrentModsLimit
	}

	var g errgroup.Group
	g.SetLimit(limit)

	results := make([]model.AggregateResult, len(inputs))
	for i, input := range inputs {
		g.Go(func() error {
			results[i] = m.DownloadMod(ctx, input)
			return nil
		})
	}
	_ = g.Wait()

	merged := model.Merge(results...)
	merged.Duration = time.Since(start)
	return merged
}

// States returns a snapshot of the state of every mod seen so far.
func (m *Manager) States() map[string]model.ModState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]model.ModState, len(m.states))
	for name, state := range m.states {
		states[name] = state
	}
	return states
}

// setState moves name to next. Pending starts a new lifecycle; any other
// move must be allowed by the state machine.
func (m *Manager) setState(name string, next model.ModState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.states[name]
	if next == model.StatePending || !ok || current.CanTransition(next) {
		m.states[name] = next
		return
	}
	m.log.WithFields(logrus.Fields{"mod": name, "from": current, "to": next}).Debug("Ignoring state change")
}

// emit delivers event to the observer. Calls are serialized so observers
// need no locking of their own.
func (m *Manager) emit(event Event) {
	if m.onEvent == nil {
		return
	}
	m.eventMu.Lock()
	defer m.eventMu.Unlock()
	m.onEvent(event)
}
