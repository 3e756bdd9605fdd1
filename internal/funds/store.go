package funds

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// State is the persisted form of the registry
type State struct {
	Names        []string          `json:"master_fund_names"`
	Placeholders map[string]string `json:"placeholder_mapping"`
	NextSequence int               `json:"next_sequence"`
}

// Store persists registry state. Load returns a nil state and nil error when
// nothing has been persisted yet.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, state *State) error
}

// MemoryStore keeps state in process memory
type MemoryStore struct {
	mu    sync.Mutex
	state *State
	// FailSaves makes every Save fail, for exercising degraded persistence
	FailSaves error
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return nil, nil
	}
	return cloneState(m.state), nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves != nil {
		return m.FailSaves
	}
	m.state = cloneState(state)
	return nil
}

// FileStore persists state as an indented JSON document
type FileStore struct {
	path string
}

// NewFileStore creates a store backed by the JSON file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Load(ctx context.Context) (*State, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read fund names file: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("invalid JSON in fund names file %s: %w", f.path, err)
	}
	if state.Placeholders == nil {
		state.Placeholders = make(map[string]string)
	}
	return &state, nil
}

// Save writes to a temporary file and renames it over the target so readers
// never observe a partial document.
func (f *FileStore) Save(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fund names: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create fund names directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".fund_names-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write fund names: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write fund names: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace fund names file: %w", err)
	}
	return nil
}

func cloneState(s *State) *State {
	c := &State{
		Names:        append([]string(nil), s.Names...),
		Placeholders: make(map[string]string, len(s.Placeholders)),
		NextSequence: s.NextSequence,
	}
	for k, v := range s.Placeholders {
		c.Placeholders[k] = v
	}
	return c
}
