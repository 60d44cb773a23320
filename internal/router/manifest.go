package router

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/themobileprof/moaflow/internal/interfaces"
	"github.com/themobileprof/moaflow/pkg/models"
)

// LoadManifest reads a YAML module manifest
func LoadManifest(path string) (*models.Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes manifest YAML and checks every module has a route
func ParseManifest(data []byte) (*models.Manifest, error) {
	var manifest models.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}

	for i, spec := range manifest.Modules {
		if spec.Route == "" {
			return nil, fmt.Errorf("module %d: missing route", i)
		}
		for path, ps := range spec.Paths {
			if ps == nil {
				continue
			}
			for j := range ps.Replies {
				if normalized, ok := models.AsMap(models.Normalize(ps.Replies[j].Data)); ok {
					ps.Replies[j].Data = normalized
				}
			}
			spec.Paths[path] = ps
		}
	}
	return &manifest, nil
}

// StaticModules builds one StaticModule per manifest entry
func StaticModules(manifest *models.Manifest) []interfaces.Module {
	mods := make([]interfaces.Module, 0, len(manifest.Modules))
	for _, spec := range manifest.Modules {
		mods = append(mods, NewStaticModule(spec))
	}
	return mods
}
