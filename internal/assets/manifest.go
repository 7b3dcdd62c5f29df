package assets

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"strings"
)

// Asset is one entry in a build manifest's asset table.
type Asset struct {
	File string `json:"file"`
}

// Entrypoint lists the asset references one entry point imports.
type Entrypoint struct {
	Imports []string `json:"imports"`
}

// BuildManifest is the webpack-style manifest a deployed module serves at
// {location}/manifest.json. It is consumed, never produced.
type BuildManifest struct {
	Entrypoints map[string]Entrypoint
	Assets      map[string]Asset

	// entryOrder keeps the document order of the entrypoints object; Go's
	// map decoding would otherwise randomize injection order.
	entryOrder []string
}

// UnmarshalJSON decodes the manifest while recording entrypoint order.
func (m *BuildManifest) UnmarshalJSON(data []byte) error {
	var aux struct {
		Entrypoints json.RawMessage  `json:"entrypoints"`
		Assets      map[string]Asset `json:"assets"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.Assets = aux.Assets
	m.Entrypoints = map[string]Entrypoint{}
	m.entryOrder = nil

	if len(aux.Entrypoints) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(aux.Entrypoints))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("entrypoints must be an object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)

		var ep Entrypoint
		if err := dec.Decode(&ep); err != nil {
			return fmt.Errorf("entrypoint %s: %w", key, err)
		}
		m.Entrypoints[key] = ep
		m.entryOrder = append(m.entryOrder, key)
	}
	return nil
}

// AssetSet is the partitioned outcome of a manifest: stylesheet URLs and
// script URLs, each de-duplicated in first-seen document order.
type AssetSet struct {
	Styles  []string `json:"styles"`
	Scripts []string `json:"scripts"`
}

// Partition walks every entrypoint's imports in document order, resolves
// each reference through the asset table, and splits the results into
// styles and scripts by file extension. A reference seen twice (shared
// chunks between entry points) is emitted once.
func (m *BuildManifest) Partition(base string) AssetSet {
	var set AssetSet
	seen := make(map[string]bool)

	for _, name := range m.entryOrder {
		for _, ref := range m.Entrypoints[name].Imports {
			if seen[ref] {
				continue
			}
			seen[ref] = true

			file := ref
			if a, ok := m.Assets[ref]; ok && a.File != "" {
				file = a.File
			}

			resolved := resolveAssetURL(base, file)
			if path.Ext(file) == ".css" {
				set.Styles = append(set.Styles, resolved)
			} else {
				set.Scripts = append(set.Scripts, resolved)
			}
		}
	}
	return set
}

func resolveAssetURL(base, file string) string {
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") {
		return file
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(file, "/")
}
