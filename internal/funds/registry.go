package funds

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	// DefaultPlaceholderPrefix is the reserved prefix of fund placeholders
	DefaultPlaceholderPrefix = "Fund"
	// DefaultPlaceholderWidth is the zero-padded width of placeholder numbers
	DefaultPlaceholderWidth = 3
)

var (
	// ErrInvalidName is returned for empty or reserved fund names
	ErrInvalidName = errors.New("invalid fund name")
	// ErrRegistryFull is returned when the placeholder space is exhausted
	ErrRegistryFull = errors.New("fund registry is full")
)

// Status describes the outcome of a registry mutation
type Status string

const (
	StatusAdded          Status = "added"
	StatusAlreadyPresent Status = "already_present"
	StatusRemoved        Status = "removed"
	StatusNotFound       Status = "not_found"
)

// PersistError reports that a mutation was applied in memory but could not be
// written to the store. The in-memory registry stays authoritative.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("fund registry persisted state is stale: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Mutation is the result of Add or Remove
type Mutation struct {
	Name        string        `json:"fund_name"`
	Placeholder string        `json:"placeholder,omitempty"`
	Status      Status        `json:"status"`
	PersistErr  *PersistError `json:"-"`
}

// Changed reports whether the mutation modified the registry
func (m Mutation) Changed() bool {
	return m.Status == StatusAdded || m.Status == StatusRemoved
}

// Listing is a point-in-time copy of the registry contents
type Listing struct {
	Names        []string          `json:"fund_names"`
	Placeholders map[string]string `json:"placeholder_mapping"`
}

// Options configures a Registry
type Options struct {
	PlaceholderPrefix string
	PlaceholderWidth  int
	// Defaults seed the registry when the store holds no state
	Defaults []string
}

// Registry holds the known master fund names and their stable placeholders.
// Placeholders are issued from a monotonically increasing sequence and are
// never reassigned, even after the name they belonged to is removed.
type Registry struct {
	mu       sync.RWMutex
	names    []string
	byKey    map[string]string // lower-cased name -> placeholder
	next     int
	snapshot *Snapshot

	persistMu sync.Mutex
	store     Store

	prefix        string
	width         int
	placeholderRe *regexp.Regexp
	logger        *zap.Logger
}

// NewRegistry loads the registry from store, seeding it with the configured
// defaults when the store is empty.
func NewRegistry(ctx context.Context, store Store, opts Options, logger *zap.Logger) (*Registry, error) {
	if opts.PlaceholderPrefix == "" {
		opts.PlaceholderPrefix = DefaultPlaceholderPrefix
	}
	if opts.PlaceholderWidth <= 0 {
		opts.PlaceholderWidth = DefaultPlaceholderWidth
	}
	if store == nil {
		store = NewMemoryStore()
	}

	r := &Registry{
		byKey:         make(map[string]string),
		next:          1,
		store:         store,
		prefix:        opts.PlaceholderPrefix,
		width:         opts.PlaceholderWidth,
		placeholderRe: regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(opts.PlaceholderPrefix) + `\d+$`),
		logger:        logger,
	}

	state, err := store.Load(ctx)
	if err != nil {
		logger.Warn("Failed to load fund registry, using defaults", zap.Error(err))
		state = nil
	}

	if state != nil {
		r.restore(state)
		logger.Info("Fund registry loaded", zap.Int("fund_count", len(r.names)))
	} else {
		for _, name := range opts.Defaults {
			if _, err := r.insertLocked(name); err != nil {
				return nil, fmt.Errorf("failed to seed default fund %q: %w", name, err)
			}
		}
		r.rebuildLocked()
		logger.Info("Fund registry seeded with defaults", zap.Int("fund_count", len(r.names)))
		if err == nil {
			if perr := r.persist(ctx); perr != nil {
				logger.Warn("Failed to persist seeded fund registry", zap.Error(perr))
			}
		}
	}

	return r, nil
}

// restore installs persisted state. Names without a well-formed, unused
// placeholder get a fresh one; names that are reserved or do not fit in the
// placeholder space are dropped.
func (r *Registry) restore(state *State) {
	r.next = state.NextSequence
	issued := make(map[string]bool, len(state.Placeholders))
	for _, placeholder := range state.Placeholders {
		if seq, ok := r.sequenceOf(placeholder); ok && seq >= r.next {
			r.next = seq + 1
		}
	}
	if r.next < 1 {
		r.next = 1
	}
	if r.next > r.capacity()+1 {
		r.next = r.capacity() + 1
	}

	for _, raw := range state.Names {
		name := strings.TrimSpace(raw)
		key := strings.ToLower(name)
		if _, dup := r.byKey[key]; dup {
			continue
		}
		if err := r.validateName(name); err != nil {
			r.logger.Warn("Dropping persisted fund name", zap.Error(err))
			continue
		}
		placeholder := state.Placeholders[raw]
		if _, ok := r.sequenceOf(placeholder); ok && !issued[placeholder] {
			issued[placeholder] = true
			r.names = append(r.names, name)
			r.byKey[key] = placeholder
			continue
		}
		if _, err := r.insertLocked(name); err != nil {
			r.logger.Warn("Dropping persisted fund name", zap.Error(err))
		}
	}
	r.rebuildLocked()
}

// Add registers a fund name. Adding a name already present, compared
// case-insensitively, reports StatusAlreadyPresent and changes nothing.
func (r *Registry) Add(ctx context.Context, name string) (Mutation, error) {
	name = strings.TrimSpace(name)
	if err := r.validateName(name); err != nil {
		return Mutation{Name: name}, err
	}

	r.mu.Lock()
	if placeholder, ok := r.byKey[strings.ToLower(name)]; ok {
		r.mu.Unlock()
		return Mutation{Name: name, Placeholder: placeholder, Status: StatusAlreadyPresent}, nil
	}
	placeholder, err := r.insertLocked(name)
	if err != nil {
		r.mu.Unlock()
		return Mutation{Name: name}, err
	}
	r.rebuildLocked()
	r.mu.Unlock()

	m := Mutation{Name: name, Placeholder: placeholder, Status: StatusAdded}
	if err := r.persist(ctx); err != nil {
		m.PersistErr = &PersistError{Err: err}
		r.logger.Warn("Fund added but registry could not be persisted",
			zap.String("placeholder", placeholder), zap.Error(err))
	}
	r.logger.Info("Fund name added", zap.String("placeholder", placeholder))
	return m, nil
}

// Remove unregisters a fund name. Removing an absent name reports
// StatusNotFound. The removed name's placeholder is retired.
func (r *Registry) Remove(ctx context.Context, name string) (Mutation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Mutation{Name: name}, ErrInvalidName
	}
	key := strings.ToLower(name)

	r.mu.Lock()
	placeholder, ok := r.byKey[key]
	if !ok {
		r.mu.Unlock()
		return Mutation{Name: name, Status: StatusNotFound}, nil
	}
	delete(r.byKey, key)
	for i, existing := range r.names {
		if strings.ToLower(existing) == key {
			r.names = append(r.names[:i:i], r.names[i+1:]...)
			break
		}
	}
	r.rebuildLocked()
	r.mu.Unlock()

	m := Mutation{Name: name, Placeholder: placeholder, Status: StatusRemoved}
	if err := r.persist(ctx); err != nil {
		m.PersistErr = &PersistError{Err: err}
		r.logger.Warn("Fund removed but registry could not be persisted",
			zap.String("placeholder", placeholder), zap.Error(err))
	}
	r.logger.Info("Fund name removed", zap.String("placeholder", placeholder))
	return m, nil
}

// List returns the registered names in insertion order with their placeholders
func (r *Registry) List() Listing {
	snap := r.Snapshot()
	listing := Listing{
		Names:        append([]string(nil), snap.names...),
		Placeholders: make(map[string]string, len(snap.names)),
	}
	for _, name := range snap.names {
		listing.Placeholders[name] = snap.byKey[strings.ToLower(name)]
	}
	return listing
}

// Snapshot returns the current immutable view used for obfuscation
func (r *Registry) Snapshot() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshot
}

// PlaceholderPrefix returns the reserved placeholder prefix
func (r *Registry) PlaceholderPrefix() string {
	return r.prefix
}

func (r *Registry) validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if r.placeholderRe.MatchString(name) {
		return fmt.Errorf("%w: %q has the reserved placeholder form", ErrInvalidName, name)
	}
	return nil
}

// insertLocked appends a name and issues its placeholder. Caller holds mu or
// owns r exclusively.
func (r *Registry) insertLocked(name string) (string, error) {
	name = strings.TrimSpace(name)
	if err := r.validateName(name); err != nil {
		return "", err
	}
	key := strings.ToLower(name)
	if placeholder, ok := r.byKey[key]; ok {
		return placeholder, nil
	}
	if r.next > r.capacity() {
		return "", fmt.Errorf("%w: %d placeholders issued", ErrRegistryFull, r.capacity())
	}
	placeholder := r.format(r.next)
	r.next++
	r.names = append(r.names, name)
	r.byKey[key] = placeholder
	return placeholder, nil
}

// rebuildLocked recompiles the snapshot. Caller holds mu.
func (r *Registry) rebuildLocked() {
	r.snapshot = newSnapshot(r.names, r.byKey)
}

// persist writes the latest state. persistMu serialises writers so the last
// write always carries the newest state; mu is held only to copy it.
func (r *Registry) persist(ctx context.Context) error {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.RLock()
	state := &State{
		Names:        append([]string(nil), r.names...),
		Placeholders: make(map[string]string, len(r.names)),
		NextSequence: r.next,
	}
	for _, name := range r.names {
		state.Placeholders[name] = r.byKey[strings.ToLower(name)]
	}
	r.mu.RUnlock()

	return r.store.Save(ctx, state)
}

func (r *Registry) format(seq int) string {
	return fmt.Sprintf("%s%0*d", r.prefix, r.width, seq)
}

func (r *Registry) capacity() int {
	c := 1
	for i := 0; i < r.width; i++ {
		c *= 10
	}
	return c - 1
}

// sequenceOf parses a placeholder issued by this registry. Only the exact
// configured width within capacity is accepted, so no placeholder can be a
// prefix of another.
func (r *Registry) sequenceOf(placeholder string) (int, bool) {
	if !r.placeholderRe.MatchString(placeholder) {
		return 0, false
	}
	seq, err := strconv.Atoi(placeholder[len(r.prefix):])
	if err != nil || seq < 1 || seq > r.capacity() || placeholder != r.format(seq) {
		return 0, false
	}
	return seq, true
}

// sortedByLength orders names longest first so that a shorter name never
// wins over a longer name sharing its prefix.
func sortedByLength(names []string) []string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})
	return sorted
}
