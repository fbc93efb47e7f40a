package portal

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/handiism/factorio-mod-downloader/internal/failure"
)

const refSuggestion = "Use a mod name (flib), a pinned version (flib@0.12.4) or a mod portal URL"

var modNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_\- .]*$`)

// ModRef is a user-supplied reference to a mod.
type ModRef struct {
	// Name is the catalog name.
	Name string

	// Version is the pinned version, or "" for the latest one.
	Version string

	// URL is the page URL given by the user, or "" when a bare name was used.
	URL string
}

// Pinned reports whether a specific version was requested.
func (r ModRef) Pinned() bool {
	return r.Version != ""
}

// String implements fmt.Stringer.
func (r ModRef) String() string {
	if r.Version == "" {
		return r.Name
	}
	return r.Name + "@" + r.Version
}

// ParseModRef parses a mod id, "id@version", "id@latest" or any URL
// containing "/mod/<id>".
//
// Pinned versions must parse as semantic versions. Every failure is a
// validation error.
func ParseModRef(input string) (ModRef, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return ModRef{}, failure.New(failure.Validation, "empty mod reference", refSuggestion)
	}

	if strings.Contains(input, "://") {
		return parseModURL(input)
	}

	name, version, _ := strings.Cut(input, "@")
	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if err := validateName(name, input); err != nil {
		return ModRef{}, err
	}
	if strings.EqualFold(version, "latest") {
		version = ""
	}
	if version != "" {
		if _, err := semver.NewVersion(version); err != nil {
			return ModRef{}, failure.Wrap(failure.Validation, err, "invalid version in "+input, refSuggestion)
		}
	}
	return ModRef{Name: name, Version: version}, nil
}

func parseModURL(input string) (ModRef, error) {
	if _, err := url.Parse(input); err != nil {
		return ModRef{}, failure.Wrap(failure.Validation, err, "invalid mod URL", refSuggestion)
	}

	idx := strings.LastIndex(input, "/mod/")
	if idx < 0 {
		return ModRef{}, failure.New(failure.Validation, "no /mod/<id> in "+input, refSuggestion)
	}
	rest := input[idx+len("/mod/"):]
	if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
		rest = rest[:cut]
	}
	name, err := url.PathUnescape(rest)
	if err != nil {
		return ModRef{}, failure.Wrap(failure.Validation, err, "invalid mod id in "+input, refSuggestion)
	}
	if err := validateName(name, input); err != nil {
		return ModRef{}, err
	}
	return ModRef{Name: name, URL: input}, nil
}

func validateName(name, input string) error {
	if !modNamePattern.MatchString(name) {
		return failure.New(failure.Validation, "invalid mod id in "+input, refSuggestion)
	}
	return nil
}
