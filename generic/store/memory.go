// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/jaspel-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[key]entry
	events  []generic.Event
}

type key struct {
	RecordType generic.RecordType
	RecordID   generic.RecordID
}

type entry struct {
	version int
	status  generic.ValidationStatus
	record  generic.Reviewable
}

func NewMemory() *Memory {
	return &Memory{records: make(map[key]entry)}
}

// Put inserts or replaces a record without any version check.
func (m *Memory) Put(rec generic.Reviewable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := rec.ReviewState()
	m.records[key{rec.RecordType(), rec.RecordID()}] = entry{version: st.Version, status: st.Status, record: rec}
}

// Get returns the stored record.
func (m *Memory) Get(recordType generic.RecordType, id generic.RecordID) (generic.Reviewable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.records[key{recordType, id}]
	if !ok {
		return nil, generic.ErrRecordNotFound
	}
	return e.record, nil
}

// SaveReviewed implements generic.ReviewStore.
func (m *Memory) SaveReviewed(_ context.Context, rec generic.Reviewable, expectedVersion int, expectedStatus generic.ValidationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{rec.RecordType(), rec.RecordID()}
	e, ok := m.records[k]
	if !ok {
		return generic.ErrRecordNotFound
	}
	if e.version != expectedVersion || e.status != expectedStatus {
		return &generic.ConflictError{
			RecordType:      k.RecordType,
			RecordID:        k.RecordID,
			ExpectedVersion: expectedVersion,
			ExpectedStatus:  expectedStatus,
		}
	}

	st := rec.ReviewState()
	st.Version = expectedVersion + 1
	m.records[k] = entry{version: st.Version, status: st.Status, record: rec}
	return nil
}

// =============================================================================
// EVENT LOG
// =============================================================================

func (m *Memory) Emit(_ context.Context, event generic.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *Memory) Query(_ context.Context, filter generic.EventFilter) ([]generic.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []generic.Event
	for _, e := range m.events {
		if filter.RecordType != nil && e.RecordType != *filter.RecordType {
			continue
		}
		if filter.RecordID != nil && e.RecordID != *filter.RecordID {
			continue
		}
		if len(filter.Names) > 0 && !containsName(filter.Names, e.Name) {
			continue
		}
		result = append(result, e)
		if filter.Limit > 0 && len(result) == filter.Limit {
			break
		}
	}
	return result, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
