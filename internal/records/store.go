// Package records persists ProcessingRecords for later decrypt, audit and
// export.
package records

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

// Store saves and loads processing records by ID. Get returns
// privacy.ErrRecordNotFound for unknown IDs.
type Store interface {
	Save(ctx context.Context, record *privacy.ProcessingRecord) error
	Get(ctx context.Context, id string) (*privacy.ProcessingRecord, error)
	Close() error
}

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateID rejects IDs that cannot name a stored record
func ValidateID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("%w: malformed id %q", privacy.ErrRecordNotFound, id)
	}
	return nil
}

// MemoryStore keeps records in process memory
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*privacy.ProcessingRecord
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*privacy.ProcessingRecord)}
}

func (m *MemoryStore) Save(ctx context.Context, record *privacy.ProcessingRecord) error {
	if err := ValidateID(record.ID); err != nil {
		return err
	}
	c := *record
	m.mu.Lock()
	m.records[record.ID] = &c
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*privacy.ProcessingRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", privacy.ErrRecordNotFound, id)
	}
	c := *record
	return &c, nil
}

func (m *MemoryStore) Close() error { return nil }
