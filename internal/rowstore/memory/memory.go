// Package memory provides an in-memory row store for tests and dry runs.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/yoshidak/webwatch/internal/id/uuid"
	"github.com/yoshidak/webwatch/internal/watch"
)

// Store keeps targets in a map guarded by a mutex, with insertion order
// preserved so List is deterministic.
type Store struct {
	mu    sync.Mutex
	rows  map[watch.RowRef]watch.MonitorTarget
	order []watch.RowRef
	ids   *uuid.Generator
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		rows: make(map[watch.RowRef]watch.MonitorTarget),
		ids:  uuid.New(),
	}
}

// Seed inserts targets, assigning refs where missing, and returns the
// refs in insertion order.
func (s *Store) Seed(targets ...watch.MonitorTarget) ([]watch.RowRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	refs := make([]watch.RowRef, 0, len(targets))
	for _, t := range targets {
		if t.Ref == "" {
			id, err := s.ids.NewID()
			if err != nil {
				return nil, fmt.Errorf("assign row ref: %w", err)
			}
			t.Ref = watch.RowRef(id)
		}
		if _, exists := s.rows[t.Ref]; !exists {
			s.order = append(s.order, t.Ref)
		}
		s.rows[t.Ref] = t
		refs = append(refs, t.Ref)
	}
	return refs, nil
}

// List returns all targets in insertion order.
func (s *Store) List(_ context.Context) ([]watch.MonitorTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]watch.MonitorTarget, 0, len(s.order))
	for _, ref := range s.order {
		out = append(out, s.rows[ref])
	}
	return out, nil
}

// UpdateCell writes one field of a row.
func (s *Store) UpdateCell(_ context.Context, ref watch.RowRef, field watch.Field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[ref]
	if !ok {
		return fmt.Errorf("row %s not found", ref)
	}
	switch field {
	case watch.FieldURL:
		row.URL = value
	case watch.FieldFingerprint:
		row.PrevFingerprint = value
	case watch.FieldLength:
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("parse length %q: %w", value, err)
		}
		row.PrevLength = n
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	s.rows[ref] = row
	return nil
}

// UpdateState writes fingerprint and length together.
func (s *Store) UpdateState(_ context.Context, ref watch.RowRef, fingerprint string, length int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[ref]
	if !ok {
		return fmt.Errorf("row %s not found", ref)
	}
	row.PrevFingerprint = fingerprint
	row.PrevLength = length
	s.rows[ref] = row
	return nil
}

// DeleteRow removes a row.
func (s *Store) DeleteRow(_ context.Context, ref watch.RowRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[ref]; !ok {
		return fmt.Errorf("row %s not found", ref)
	}
	delete(s.rows, ref)
	for i, r := range s.order {
		if r == ref {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}
