package resolve

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/handiism/factorio-mod-downloader/internal/failure"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/handiism/factorio-mod-downloader/internal/portal"
	"github.com/sirupsen/logrus"
)

// DefaultStorageURL is the mod artifact storage.
const DefaultStorageURL = "https://mods-storage.re146.dev"

// Options tunes a Resolver.
type Options struct {
	// OptionalDepth is the number of tree levels, counting the root as
	// level 0, whose optional dependencies are followed when optional
	// dependencies are requested. Negative means every level.
	OptionalDepth int

	// MaxDepth bounds the recursion. Dependencies deeper than MaxDepth are
	// not resolved.
	MaxDepth int

	// PageRetries is the attempt budget for reading one page.
	PageRetries int

	// RetryDelay is the pause between page attempts.
	RetryDelay time.Duration

	// Excluded names are never resolved.
	Excluded model.NameSet

	// StorageURL is the base URL of the artifact storage.
	StorageURL string

	// OnResolved is called once per mod when its name and version are known.
	OnResolved func(model.ModReference)
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		OptionalDepth: 1,
		MaxDepth:      10,
		PageRetries:   2,
		RetryDelay:    time.Second,
		StorageURL:    DefaultStorageURL,
	}
}

// Resolver builds dependency trees from catalog pages.
type Resolver struct {
	provider portal.Provider
	opts     Options
	log      logrus.FieldLogger
	wait     func(ctx context.Context, d time.Duration) error
}

// New creates a Resolver.
func New(provider portal.Provider, log logrus.FieldLogger, opts Options) *Resolver {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	if opts.PageRetries <= 0 {
		opts.PageRetries = 1
	}
	if opts.StorageURL == "" {
		opts.StorageURL = DefaultStorageURL
	}
	opts.StorageURL = strings.TrimRight(opts.StorageURL, "/")
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		provider: provider,
		opts:     opts,
		log:      log,
		wait:     sleep,
	}
}

// Resolve returns the dependency tree of the mod at rootURL.
//
// The error is non-nil only when the root page cannot be read. A nil tree
// with a nil error means the root is on the exclusion list.
func (r *Resolver) Resolve(ctx context.Context, rootURL string, includeOptional bool) (*model.DependencyNode, error) {
	return r.ResolveVersion(ctx, rootURL, "", includeOptional)
}

// ResolveVersion is Resolve with the root pinned to version. An empty version
// selects the latest one. Dependencies always resolve to their latest version.
func (r *Resolver) ResolveVersion(ctx context.Context, rootURL, version string, includeOptional bool) (*model.DependencyNode, error) {
	s := &session{
		Resolver:        r,
		includeOptional: includeOptional,
		visitedURLs:     make(map[string]struct{}),
		visitedNames:    make(map[string]struct{}),
	}
	return s.visit(ctx, rootURL, version, 0, false)
}

// session holds the state of one Resolve call.
type session struct {
	*Resolver
	includeOptional bool
	visitedURLs     map[string]struct{}
	visitedNames    map[string]struct{}
}

func (s *session) visit(ctx context.Context, pageURL, pinned string, depth int, optional bool) (*model.DependencyNode, error) {
	if _, ok := s.visitedURLs[pageURL]; ok {
		return nil, nil
	}
	s.visitedURLs[pageURL] = struct{}{}

	s.log.WithField("url", pageURL).Info("Analyzing mod")

	name, version, err := s.readPage(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	if s.opts.Excluded.Has(name) {
		s.log.WithField("mod", name).Info("Skipping reserved mod, download it manually if needed")
		return nil, nil
	}
	if _, ok := s.visitedNames[name]; ok {
		return nil, nil
	}
	s.visitedNames[name] = struct{}{}

	if pinned != "" {
		version = pinned
	}

	ref := model.ModReference{
		Name:        name,
		Version:     version,
		SourceURL:   pageURL,
		DownloadURL: s.DownloadURL(name, version),
		Optional:    optional,
	}
	s.log.WithFields(logrus.Fields{"mod": name, "version": version}).Info("Loaded mod")
	if s.opts.OnResolved != nil {
		s.opts.OnResolved(ref)
	}

	node := &model.DependencyNode{Mod: ref}
	if depth >= s.opts.MaxDepth {
		s.log.WithFields(logrus.Fields{"mod": name, "depth": depth}).Warn("Maximum dependency depth reached, not following dependencies")
		return node, nil
	}

	followOptional := s.includeOptional && (s.opts.OptionalDepth < 0 || depth < s.opts.OptionalDepth)
	deps, err := s.readDependencies(ctx, name, followOptional)
	if err != nil {
		s.log.WithFields(logrus.Fields{"mod": name, "error": err}).Warn("Could not load dependencies")
		return node, nil
	}

	for _, dep := range deps {
		if s.opts.Excluded.Has(dep.Name) {
			s.log.WithFields(logrus.Fields{"mod": name, "dependency": dep.Name}).Info("Skipping reserved dependency")
			continue
		}
		if _, ok := s.visitedURLs[dep.URL]; ok {
			s.log.WithFields(logrus.Fields{"mod": name, "dependency": dep.Name}).Debug("Dependency already analyzed")
			continue
		}

		child, err := s.visit(ctx, dep.URL, "", depth+1, optional || dep.Optional)
		if err != nil {
			s.log.WithFields(logrus.Fields{"mod": name, "dependency": dep.Name, "error": err}).Warn("Error resolving dependency")
			continue
		}
		if child != nil {
			node.Children = append(node.Children, child)
		}
	}

	return node, nil
}

func (s *session) readPage(ctx context.Context, pageURL string) (name, version string, err error) {
	err = s.retry(ctx, pageURL, func() error {
		doc, err := s.provider.FetchPage(ctx, pageURL)
		if err != nil {
			return err
		}
		if name, err = s.provider.GetName(doc); err != nil {
			return err
		}
		version, err = s.provider.GetLatestVersion(doc)
		return err
	})
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", pageURL, err)
	}
	return name, version, nil
}

func (s *session) readDependencies(ctx context.Context, name string, includeOptional bool) ([]portal.Dependency, error) {
	var deps []portal.Dependency
	err := s.retry(ctx, name+" dependencies", func() error {
		var err error
		deps, err = s.provider.GetRequiredDependencies(ctx, name, includeOptional)
		return err
	})
	return deps, err
}

func (r *Resolver) retry(ctx context.Context, what string, fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err != nil && ctx.Err() != nil {
			return err
		}
		verdict, rec := failure.Decide(err, attempt, r.opts.PageRetries)
		switch verdict {
		case failure.Success:
			return nil
		case failure.Fatal:
			return err
		}

		r.log.WithFields(logrus.Fields{
			"target":   what,
			"attempt":  attempt,
			"category": rec.Category,
		}).Debug("Retrying page")
		if err := r.wait(ctx, r.opts.RetryDelay); err != nil {
			return err
		}
	}
}

// DownloadURL returns the storage URL of a mod artifact with a fresh
// anti-cache token.
func (r *Resolver) DownloadURL(name, version string) string {
	return fmt.Sprintf("%s/%s/%s.zip?anticache=%s",
		r.opts.StorageURL, url.PathEscape(name), url.PathEscape(version), AntiCacheToken())
}

// AntiCacheToken returns a random token that defeats edge caches.
func AntiCacheToken() string {
	const low = 1_000_000_000_000_000_000
	return fmt.Sprintf("0.%d", low+rand.Uint64N(9*low))
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
