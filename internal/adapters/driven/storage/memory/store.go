package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/custodia-labs/ledgersync/internal/core/domain"
	"github.com/custodia-labs/ledgersync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.Store = (*Store)(nil)

// Store is an in-memory implementation of driven.Store.
// Tables are created on first write. Rows keep insertion order.
type Store struct {
	mu     sync.RWMutex
	tables map[string][]domain.Record
	closed bool
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		tables: make(map[string][]domain.Record),
	}
}

// Close marks the store unavailable. Every later call fails with
// domain.ErrStoreUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Select returns copies of the rows matching q.
func (s *Store) Select(_ context.Context, table string, q domain.Query) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}

	var out []domain.Record
	for _, row := range s.tables[table] {
		if matches(row, q.Filter) {
			out = append(out, row.Clone())
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].String(q.OrderBy), out[j].String(q.OrderBy)
			if q.Desc {
				return a > b
			}
			return a < b
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	if out == nil {
		out = []domain.Record{}
	}
	return out, nil
}

// Insert appends rows, assigning ids to rows without one.
func (s *Store) Insert(_ context.Context, table string, records []domain.Record) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}

	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		row := normalise(rec)
		if !row.Has(domain.FieldID) {
			row[domain.FieldID] = uuid.New().String()
		}
		s.tables[table] = append(s.tables[table], row)
		out = append(out, row.Clone())
	}
	return out, nil
}

// Upsert inserts or merges rows keyed on conflictKeys. Either every record
// is written or none is.
func (s *Store) Upsert(
	_ context.Context, table string, records []domain.Record, conflictKeys []string,
) ([]domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, domain.ErrStoreUnavailable
	}
	if len(conflictKeys) == 0 {
		return nil, fmt.Errorf("%w: upsert %s without conflict keys", domain.ErrInvalidInput, table)
	}
	for _, rec := range records {
		for _, k := range conflictKeys {
			if !rec.Has(k) {
				return nil, fmt.Errorf("%w: upsert %s: missing %s", domain.ErrInvalidInput, table, k)
			}
		}
	}

	rows := s.tables[table]
	out := make([]domain.Record, 0, len(records))
	for _, rec := range records {
		incoming := normalise(rec)
		i := indexOf(rows, incoming, conflictKeys)
		if i < 0 {
			if !incoming.Has(domain.FieldID) {
				incoming[domain.FieldID] = uuid.New().String()
			}
			rows = append(rows, incoming)
			out = append(out, incoming.Clone())
			continue
		}
		for k, v := range incoming {
			if k == domain.FieldID {
				continue
			}
			rows[i][k] = v
		}
		out = append(out, rows[i].Clone())
	}
	s.tables[table] = rows
	return out, nil
}

// Update applies patch to every matching row.
func (s *Store) Update(_ context.Context, table string, filter domain.Filter, patch domain.Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, domain.ErrStoreUnavailable
	}

	patch = normalise(patch)
	n := 0
	for _, row := range s.tables[table] {
		if !matches(row, filter) {
			continue
		}
		for k, v := range patch {
			row[k] = v
		}
		n++
	}
	return n, nil
}

// Delete removes every matching row.
func (s *Store) Delete(_ context.Context, table string, filter domain.Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, domain.ErrStoreUnavailable
	}
	return s.deleteLocked(table, filter), nil
}

// Replace deletes every matching row and inserts records under one lock.
func (s *Store) Replace(_ context.Context, table string, filter domain.Filter, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreUnavailable
	}

	s.deleteLocked(table, filter)
	for _, rec := range records {
		row := normalise(rec)
		if !row.Has(domain.FieldID) {
			row[domain.FieldID] = uuid.New().String()
		}
		s.tables[table] = append(s.tables[table], row)
	}
	return nil
}

func (s *Store) deleteLocked(table string, filter domain.Filter) int {
	rows := s.tables[table]
	kept := rows[:0]
	for _, row := range rows {
		if !matches(row, filter) {
			kept = append(kept, row)
		}
	}
	n := len(rows) - len(kept)
	s.tables[table] = kept
	return n
}

func normalise(rec domain.Record) domain.Record {
	out := make(domain.Record, len(rec))
	for k, v := range rec {
		out[k] = domain.StorageValue(v)
	}
	return out
}

func indexOf(rows []domain.Record, rec domain.Record, keys []string) int {
	for i, row := range rows {
		match := true
		for _, k := range keys {
			if row.String(k) != rec.String(k) {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

func matches(row domain.Record, filter domain.Filter) bool {
	for _, p := range filter {
		v, present := row[p.Field]
		isNull := !present || v == nil

		switch p.Op {
		case domain.OpIsNull:
			if !isNull {
				return false
			}
		case domain.OpNotNull:
			if isNull {
				return false
			}
		case domain.OpEq:
			if isNull || !equal(v, p.Value) {
				return false
			}
		case domain.OpIn:
			if isNull {
				return false
			}
			found := false
			for _, want := range p.Values {
				if equal(v, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func equal(a, b any) bool {
	r := domain.Record{"a": domain.StorageValue(a), "b": domain.StorageValue(b)}
	return r.String("a") == r.String("b")
}
