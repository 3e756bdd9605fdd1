package funds

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T, defaults ...string) (*Registry, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	r, err := NewRegistry(context.Background(), store, Options{Defaults: defaults}, zap.NewNop())
	require.NoError(t, err)
	return r, store
}

func TestNewRegistrySeedsDefaults(t *testing.T) {
	r, store := newTestRegistry(t, "AlphaFund", "BetaFund")

	listing := r.List()
	assert.Equal(t, []string{"AlphaFund", "BetaFund"}, listing.Names)
	assert.Equal(t, "Fund001", listing.Placeholders["AlphaFund"])
	assert.Equal(t, "Fund002", listing.Placeholders["BetaFund"])

	state, err := store.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 3, state.NextSequence)
}

func TestNewRegistryRestoresState(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), &State{
		Names:        []string{"GammaFund", "DeltaFund"},
		Placeholders: map[string]string{"GammaFund": "Fund004", "DeltaFund": "Fund009"},
		NextSequence: 10,
	}))

	r, err := NewRegistry(context.Background(), store, Options{Defaults: []string{"AlphaFund"}}, zap.NewNop())
	require.NoError(t, err)

	listing := r.List()
	assert.Equal(t, []string{"GammaFund", "DeltaFund"}, listing.Names)
	assert.Equal(t, "Fund004", listing.Placeholders["GammaFund"])

	m, err := r.Add(context.Background(), "OmegaFund")
	require.NoError(t, err)
	assert.Equal(t, "Fund010", m.Placeholder)
}

func TestNewRegistryRepairsCorruptState(t *testing.T) {
	t.Run("malformed and shared placeholders are reissued", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), &State{
			Names: []string{"GammaFund", "Fund007", "BigFund", "SameFund", "", "CorruptFund"},
			Placeholders: map[string]string{
				"GammaFund":   "Fund004",
				"BigFund":     "Fund1000",
				"SameFund":    "Fund004",
				"CorruptFund": "Fund05",
			},
			NextSequence: 5,
		}))

		r, err := NewRegistry(context.Background(), store, Options{}, zap.NewNop())
		require.NoError(t, err)

		listing := r.List()
		assert.Equal(t, []string{"GammaFund", "BigFund", "SameFund", "CorruptFund"}, listing.Names)
		assert.Equal(t, "Fund004", listing.Placeholders["GammaFund"])
		assert.Equal(t, "Fund005", listing.Placeholders["BigFund"])
		assert.Equal(t, "Fund006", listing.Placeholders["SameFund"])
		assert.Equal(t, "Fund007", listing.Placeholders["CorruptFund"])
	})

	t.Run("sequence beyond capacity", func(t *testing.T) {
		store := NewMemoryStore()
		require.NoError(t, store.Save(context.Background(), &State{
			Names:        []string{"AlphaFund", "LateFund"},
			Placeholders: map[string]string{"AlphaFund": "Fund999"},
			NextSequence: 1200,
		}))

		r, err := NewRegistry(context.Background(), store, Options{}, zap.NewNop())
		require.NoError(t, err)

		listing := r.List()
		assert.Equal(t, []string{"AlphaFund"}, listing.Names)
		assert.Equal(t, "Fund999", listing.Placeholders["AlphaFund"])

		_, err = r.Add(context.Background(), "OmegaFund")
		assert.ErrorIs(t, err, ErrRegistryFull)
	})
}

func TestRegistryAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("new name", func(t *testing.T) {
		r, _ := newTestRegistry(t, "AlphaFund")
		m, err := r.Add(ctx, "  GrowthFund ")
		require.NoError(t, err)
		assert.Equal(t, StatusAdded, m.Status)
		assert.Equal(t, "GrowthFund", m.Name)
		assert.Equal(t, "Fund002", m.Placeholder)
		assert.True(t, m.Changed())
		assert.Nil(t, m.PersistErr)
	})

	t.Run("already present is case insensitive", func(t *testing.T) {
		r, _ := newTestRegistry(t, "AlphaFund")
		m, err := r.Add(ctx, "ALPHAFUND")
		require.NoError(t, err)
		assert.Equal(t, StatusAlreadyPresent, m.Status)
		assert.Equal(t, "Fund001", m.Placeholder)
		assert.False(t, m.Changed())
		assert.Len(t, r.List().Names, 1)
	})

	t.Run("invalid names", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		for _, name := range []string{"", "   ", "Fund007", "fund12"} {
			_, err := r.Add(ctx, name)
			assert.ErrorIs(t, err, ErrInvalidName, name)
		}
	})

	t.Run("registry full", func(t *testing.T) {
		r, err := NewRegistry(ctx, NewMemoryStore(), Options{PlaceholderWidth: 1}, zap.NewNop())
		require.NoError(t, err)
		for i := 1; i <= 9; i++ {
			_, err := r.Add(ctx, fmt.Sprintf("Name %c", 'A'+i))
			require.NoError(t, err)
		}
		_, err = r.Add(ctx, "One Too Many")
		assert.ErrorIs(t, err, ErrRegistryFull)
	})
}

func TestRegistryRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("removes and retires placeholder", func(t *testing.T) {
		r, _ := newTestRegistry(t, "AlphaFund", "BetaFund")

		m, err := r.Remove(ctx, "alphafund")
		require.NoError(t, err)
		assert.Equal(t, StatusRemoved, m.Status)
		assert.Equal(t, "Fund001", m.Placeholder)
		assert.Equal(t, []string{"BetaFund"}, r.List().Names)

		again, err := r.Add(ctx, "AlphaFund")
		require.NoError(t, err)
		assert.Equal(t, "Fund003", again.Placeholder)
	})

	t.Run("absent name", func(t *testing.T) {
		r, _ := newTestRegistry(t, "AlphaFund")
		m, err := r.Remove(ctx, "NoSuchFund")
		require.NoError(t, err)
		assert.Equal(t, StatusNotFound, m.Status)
		assert.False(t, m.Changed())
	})

	t.Run("empty name", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := r.Remove(ctx, " ")
		assert.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestRegistryPersistFailureKeepsMemoryState(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t, "AlphaFund")

	diskFull := errors.New("disk full")
	store.FailSaves = diskFull

	m, err := r.Add(ctx, "BetaFund")
	require.NoError(t, err)
	require.NotNil(t, m.PersistErr)
	assert.ErrorIs(t, m.PersistErr, diskFull)
	assert.Contains(t, r.List().Names, "BetaFund")

	_, ok := r.Snapshot().PlaceholderFor("betafund")
	assert.True(t, ok)

	store.FailSaves = nil
	m, err = r.Remove(ctx, "AlphaFund")
	require.NoError(t, err)
	assert.Nil(t, m.PersistErr)

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"BetaFund"}, state.Names)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	r, store := newTestRegistry(t, "AlphaFund")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := r.Add(ctx, fmt.Sprintf("Concurrent Fund %c", 'A'+i))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			snap := r.Snapshot()
			listing := r.List()
			assert.GreaterOrEqual(t, len(listing.Names), 1)
			assert.GreaterOrEqual(t, snap.Len(), 1)
		}()
	}
	wg.Wait()

	listing := r.List()
	assert.Len(t, listing.Names, 21)

	seen := make(map[string]bool)
	for _, placeholder := range listing.Placeholders {
		assert.False(t, seen[placeholder], "placeholder %s issued twice", placeholder)
		seen[placeholder] = true
	}

	state, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, state.Names, 21)
}
