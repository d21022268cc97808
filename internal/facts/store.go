package facts

import (
	"context"
	"sync/atomic"

	"restaurant-receptionist/internal/models"
)

// Provider is the read-only business-data surface consumed by the tiering
// engine, the accumulator and the retrieval chunker.
type Provider interface {
	Hours() string
	HoursTable() []DayHours
	Catalog() models.Catalog
	Fact(key string) (string, bool)
	DietaryFlags() map[string]string
	Address() Address
}

var _ Provider = (*Snapshot)(nil)

// Store publishes the current Snapshot. Readers never block; an external
// owner swaps in new snapshots via Replace or Reload.
type Store struct {
	current atomic.Pointer[Snapshot]
	loader  func(context.Context) (*BusinessData, error)
}

func NewStore(initial *Snapshot, loader func(context.Context) (*BusinessData, error)) *Store {
	s := &Store{loader: loader}
	s.current.Store(initial)
	return s
}

func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

func (s *Store) Replace(snap *Snapshot) {
	s.current.Store(snap)
}

// Reload re-runs the loader and swaps the result in. On error the previous
// snapshot stays current.
func (s *Store) Reload(ctx context.Context) error {
	if s.loader == nil {
		return nil
	}
	data, err := s.loader(ctx)
	if err != nil {
		return err
	}
	s.current.Store(NewSnapshot(*data))
	return nil
}
