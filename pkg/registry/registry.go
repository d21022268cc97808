// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
)

func LoadRegistry(path string) (*ModelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ModelRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("decode registry %s: %w", path, err)
	}
	if reg.Models == nil {
		reg.Models = make(map[string][]ModelVersion)
	}
	return &reg, nil
}

// LoadOrCreate returns an empty registry when path does not exist yet.
func LoadOrCreate(path string) (*ModelRegistry, error) {
	reg, err := LoadRegistry(path)
	if os.IsNotExist(err) {
		return &ModelRegistry{Version: "1.0.0", Models: make(map[string][]ModelVersion)}, nil
	}
	return reg, err
}

func (r *ModelRegistry) Save(path string) error {
	r.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Register adds a version of model name. Versions must be valid semver and
// unique per model.
func (r *ModelRegistry) Register(name string, v ModelVersion) error {
	if _, err := semver.NewVersion(v.Version); err != nil {
		return fmt.Errorf("invalid version %q: %w", v.Version, err)
	}
	for _, existing := range r.Models[name] {
		if existing.Version == v.Version {
			return fmt.Errorf("model %s version %s already registered", name, v.Version)
		}
	}
	if v.CreatedAt == "" {
		v.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	if r.Models == nil {
		r.Models = make(map[string][]ModelVersion)
	}
	r.Models[name] = append(r.Models[name], v)
	return nil
}

// Latest returns the highest semantic version of name. Entries with
// unparseable versions are ignored.
func (r *ModelRegistry) Latest(name string) (ModelVersion, bool) {
	var (
		best    ModelVersion
		bestVer *semver.Version
	)
	for _, mv := range r.Models[name] {
		v, err := semver.NewVersion(mv.Version)
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			best, bestVer = mv, v
		}
	}
	return best, bestVer != nil
}

// Best returns the version of name with the highest value of metric.
func (r *ModelRegistry) Best(name, metric string) (ModelVersion, bool) {
	var (
		best  ModelVersion
		score float64
		found bool
	)
	for _, mv := range r.Models[name] {
		s, ok := mv.Metrics[metric]
		if !ok {
			continue
		}
		if !found || s > score {
			best, score, found = mv, s, true
		}
	}
	return best, found
}

// NextPatch returns the version after the latest registered one, or 1.0.0.
func (r *ModelRegistry) NextPatch(name string) string {
	latest, ok := r.Latest(name)
	if !ok {
		return "1.0.0"
	}
	v, err := semver.NewVersion(latest.Version)
	if err != nil {
		return "1.0.0"
	}
	return v.IncPatch().String()
}
