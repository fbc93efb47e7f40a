package download

import (
	"errors"
	"fmt"
	"strings"

	"sigs.k8s.io/yaml"
)

type batchFile struct {
	Mods []string `json:"mods"`
}

// ParseBatchFile reads mod references from a JSON or YAML document.
//
// Either an object with a "mods" list or a bare list is accepted. Blank
// entries and duplicates are dropped.
func ParseBatchFile(data []byte) ([]string, error) {
	var refs []string

	var file batchFile
	if err := yaml.Unmarshal(data, &file); err == nil && file.Mods != nil {
		refs = file.Mods
	} else if err := yaml.Unmarshal(data, &refs); err != nil {
		return nil, fmt.Errorf("parsing batch file: expected a \"mods\" list or a list of mods: %w", err)
	}

	seen := make(map[string]struct{}, len(refs))
	var cleaned []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if _, ok := seen[ref]; ok {
			continue
		}
		seen[ref] = struct{}{}
		cleaned = append(cleaned, ref)
	}
	if len(cleaned) == 0 {
		return nil, errors.New("batch file lists no mods")
	}
	return cleaned, nil
}
