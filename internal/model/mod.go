package model

import (
	"fmt"
	"strings"

	ioutils "github.com/handiism/factorio-mod-downloader/internal/io"
)

// ModReference identifies one downloadable mod artifact.
//
// Identity is Name, which is assigned by the catalog and compared
// case-sensitively. A ModReference is created by the resolver once a
// catalog page has been parsed and is not modified afterwards.
type ModReference struct {
	// Name is the catalog name of the mod.
	Name string

	// Version is the release that will be downloaded.
	Version string

	// SourceURL is the catalog page the reference was read from.
	SourceURL string

	// DownloadURL is the storage URL of the artifact.
	DownloadURL string

	// Optional is true when the mod was reached through an optional dependency.
	Optional bool

	// Size is the artifact size in bytes, or 0 when unknown.
	Size int64
}

// FileName returns the on-disk name of the artifact, "<name>_<version>.zip".
func (r ModReference) FileName() string {
	return ioutils.SanitizeFileName(fmt.Sprintf("%s_%s.zip", r.Name, r.Version))
}

// String implements fmt.Stringer.
func (r ModReference) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// DependencyNode is one node of a dependency tree.
//
// Children are ordered as the catalog lists them. Trees are owned by the
// resolution call that built them and are never mutated after creation.
type DependencyNode struct {
	Mod      ModReference
	Children []*DependencyNode
}

// Size returns the number of nodes in the tree rooted at n.
func (n *DependencyNode) Size() int {
	if n == nil {
		return 0
	}
	size := 1
	for _, child := range n.Children {
		size += child.Size()
	}
	return size
}

// DownloadList is an ordered sequence of mods to download.
//
// Dependencies precede every mod that needs them and each name appears at
// most once.
type DownloadList []ModReference

// Names returns the mod names in list order.
func (l DownloadList) Names() []string {
	names := make([]string, len(l))
	for i, ref := range l {
		names[i] = ref.Name
	}
	return names
}

// Index returns the position of name in the list, or -1.
func (l DownloadList) Index(name string) int {
	for i, ref := range l {
		if ref.Name == name {
			return i
		}
	}
	return -1
}

// EstimatedSize sums the known artifact sizes of the list.
func (l DownloadList) EstimatedSize() int64 {
	var total int64
	for _, ref := range l {
		total += ref.Size
	}
	return total
}

// NameSet is a set of mod names.
type NameSet map[string]struct{}

// NewNameSet creates a NameSet holding names. Blank names are ignored.
func NewNameSet(names ...string) NameSet {
	set := make(NameSet, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	return set
}

// Has reports whether name is in the set. A nil set is empty.
func (s NameSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Add inserts name into the set.
func (s NameSet) Add(name string) {
	s[name] = struct{}{}
}
