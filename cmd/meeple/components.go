package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"meeple/internal/config"
	"meeple/internal/engine"
)

// componentsFile is the on-disk manifest of expected pieces:
//
//	[[component]]
//	name = "Victory Point Token"
//	quantity = 24
//	threshold = 0.92
//	references = ["refs/vp-front.png", "refs/vp-back.png"]
type componentsFile struct {
	Component []componentEntry `toml:"component"`
}

type componentEntry struct {
	Name       string   `toml:"name"`
	Quantity   int      `toml:"quantity"`
	Threshold  float64  `toml:"threshold"`
	References []string `toml:"references"`
}

// loadComponents parses a component manifest. Relative reference paths are
// resolved against the manifest's directory.
func loadComponents(path string) ([]engine.ComponentSpec, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read components file: %w", err)
	}

	var file componentsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse components file: %w", err)
	}
	if len(file.Component) == 0 {
		return nil, fmt.Errorf("components file %s declares no components", expanded)
	}

	base := filepath.Dir(expanded)
	specs := make([]engine.ComponentSpec, 0, len(file.Component))
	for _, entry := range file.Component {
		if entry.Name == "" {
			return nil, fmt.Errorf("components file %s: component without a name", expanded)
		}
		refs := make([]string, 0, len(entry.References))
		for _, ref := range entry.References {
			if !filepath.IsAbs(ref) {
				ref = filepath.Join(base, ref)
			}
			refs = append(refs, ref)
		}
		specs = append(specs, engine.ComponentSpec{
			Name:                entry.Name,
			ExpectedQuantity:    entry.Quantity,
			ConfidenceThreshold: entry.Threshold,
			ReferencePaths:      refs,
		})
	}
	return specs, nil
}
