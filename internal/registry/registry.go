// Package registry keeps a record of downloaded mods in a JSON file.
//
// The file is shared by every process of the user. Save takes an advisory
// file lock next to it, re-reads the file and applies only the changes made
// through this Registry, so concurrent processes never drop each other's
// entries.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/handiism/factorio-mod-downloader/internal/config"
	ioutils "github.com/handiism/factorio-mod-downloader/internal/io"
)

// FileName is the registry file name inside the application directory.
const FileName = "mod_registry.json"

const lockRetryDelay = 100 * time.Millisecond

// Entry describes one downloaded mod.
type Entry struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	FilePath     string    `json:"file_path"`
	DownloadDate time.Time `json:"download_date"`
	Size         int64     `json:"size"`
}

// Registry is the in-memory view of a registry file.
type Registry struct {
	path    string
	entries map[string]Entry

	// changes holds the names added or removed since the last Save. A nil
	// value marks a removal.
	changes map[string]*Entry
	mu      sync.RWMutex
}

// DefaultPath returns the registry location in the application directory.
func DefaultPath() string {
	return filepath.Join(config.AppDir(), FileName)
}

// Open loads the registry at path. A missing file yields an empty registry.
func Open(path string) (*Registry, error) {
	entries, err := readEntries(path)
	if err != nil {
		return nil, err
	}
	return &Registry{path: path, entries: entries, changes: make(map[string]*Entry)}, nil
}

func readEntries(path string) (map[string]Entry, error) {
	entries := make(map[string]Entry)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing registry %s: %w", path, err)
	}
	return entries, nil
}

// Path returns the file the registry is stored in.
func (r *Registry) Path() string {
	return r.path
}

// Add records a download, replacing any earlier entry of the same mod.
func (r *Registry) Add(name, version, filePath string, size int64) Entry {
	entry := Entry{
		Name:         name,
		Version:      version,
		FilePath:     filePath,
		DownloadDate: time.Now().UTC().Truncate(time.Second),
		Size:         size,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = entry
	r.changes[name] = &entry
	return entry
}

// Get returns the entry of name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	return entry, ok
}

// List returns every entry sorted by name.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		list = append(list, entry)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Remove deletes the entry of name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return false
	}
	delete(r.entries, name)
	r.changes[name] = nil
	return true
}

var versionDigit = regexp.MustCompile(`\d`)

// ParseFileName splits "<name>_<version>.zip" on the last underscore.
func ParseFileName(fileName string) (name, version string, ok bool) {
	base, found := strings.CutSuffix(fileName, ".zip")
	if !found {
		return "", "", false
	}
	idx := strings.LastIndex(base, "_")
	if idx <= 0 || idx == len(base)-1 {
		return "", "", false
	}
	name, version = base[:idx], base[idx+1:]
	if !versionDigit.MatchString(version) {
		return "", "", false
	}
	return name, version, true
}

// ScanDir lists the mod archives in dir without recording them. Entries
// carry no download date.
func ScanDir(dir string) ([]Entry, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", dir, err)
	}

	var found []Entry
	for _, file := range files {
		if !file.Type().IsRegular() {
			continue
		}
		name, version, ok := ParseFileName(file.Name())
		if !ok {
			continue
		}
		info, err := file.Info()
		if err != nil {
			continue
		}
		found = append(found, Entry{
			Name:     name,
			Version:  version,
			FilePath: filepath.Join(dir, file.Name()),
			Size:     info.Size(),
		})
	}
	return found, nil
}

// Scan adds every mod archive found in dir and returns the added entries.
func (r *Registry) Scan(dir string) ([]Entry, error) {
	files, err := ScanDir(dir)
	if err != nil {
		return nil, err
	}
	found := make([]Entry, 0, len(files))
	for _, file := range files {
		found = append(found, r.Add(file.Name, file.Version, file.FilePath, file.Size))
	}
	return found, nil
}

// Save merges the changes made since Open or the last Save into the file
// while holding the file lock. Entries written by other processes in the
// meantime are kept, and the in-memory view is refreshed from the result.
func (r *Registry) Save(ctx context.Context) error {
	if err := ioutils.EnsureDir(filepath.Dir(r.path)); err != nil {
		return err
	}

	fileLock := flock.New(r.path + ".lock")
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err == nil && locked {
		defer fileLock.Unlock()
	}
	if err != nil {
		return fmt.Errorf("locking registry: %w", err)
	}

	merged, err := readEntries(r.path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for name, change := range r.changes {
		if change == nil {
			delete(merged, name)
			continue
		}
		merged[name] = *change
	}

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return err
	}
	if err := ioutils.WriteFileAtomic(r.path, data, 0644); err != nil {
		return err
	}

	r.entries = merged
	r.changes = make(map[string]*Entry)
	return nil
}
