package classifier

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"restaurant-receptionist/pkg/registry"
)

// ErrModelAbsent means no usable model is registered. Callers treat it as
// a normal condition.
var ErrModelAbsent = errors.New("MODEL_ABSENT")

// Loader resolves models through a registry file.
type Loader struct {
	RegistryPath string
}

func NewLoader(registryPath string) *Loader {
	return &Loader{RegistryPath: registryPath}
}

// LoadLatest loads the highest registered version of name.
func (l *Loader) LoadLatest(name string) (*Model, error) {
	reg, err := registry.LoadRegistry(l.RegistryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrModelAbsent
		}
		return nil, err
	}

	entry, ok := reg.Latest(name)
	if !ok {
		return nil, ErrModelAbsent
	}

	path := entry.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(l.RegistryPath), path)
	}
	m, err := LoadModel(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: artifact %s missing", ErrModelAbsent, path)
		}
		return nil, err
	}
	if m.Version == "" {
		m.Version = entry.Version
	}
	return m, nil
}
