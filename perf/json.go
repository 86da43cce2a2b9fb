package perf

import (
	"encoding/json"
	"fmt"
	"os"
)

// Write serializes the document to path with two-space indentation.
func Write(cfg *Config, path string) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}

// Load reads a document back from disk.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the document's internal cross-references: every
// track index anywhere in the reactive model or category index map
// must address an existing sample track, and every scene reference
// must address an existing scene.
func (c *Config) Validate() error {
	nTracks := len(c.SampleTracks)
	nScenes := len(c.Scenes)

	for name, pool := range c.Intents {
		for _, a := range pool {
			if idx, ok := argInt(a.Args, "track"); ok {
				if idx < 0 || idx >= nTracks {
					return fmt.Errorf("intent %q: track index %d out of range (%d tracks)", name, idx, nTracks)
				}
			}
			if idx, ok := argInt(a.Args, "scene"); ok {
				if idx < 0 || idx >= nScenes {
					return fmt.Errorf("intent %q: scene index %d out of range (%d scenes)", name, idx, nScenes)
				}
			}
		}
	}

	for i, t := range c.SampleTracks {
		for _, s := range t.MutedInScenes {
			if s < 0 || s >= nScenes {
				return fmt.Errorf("sample track %d: muted scene %d out of range (%d scenes)", i, s, nScenes)
			}
		}
	}

	for category, indices := range c.CategoryIndices {
		for _, idx := range indices {
			if idx < 0 || idx >= nTracks {
				return fmt.Errorf("category %q: track index %d out of range (%d tracks)", category, idx, nTracks)
			}
		}
	}

	if nScenes > 0 && (c.StartingScene < 0 || c.StartingScene >= nScenes) {
		return fmt.Errorf("starting scene %d out of range (%d scenes)", c.StartingScene, nScenes)
	}
	return nil
}

// argInt reads a numeric argument, tolerating the float64 that
// json.Unmarshal produces for numbers.
func argInt(args map[string]any, key string) (int, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
