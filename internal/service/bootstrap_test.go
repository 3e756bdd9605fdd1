package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raaihank/asset-privacy/internal/config"
	"github.com/raaihank/asset-privacy/internal/logger"
)

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	cfg := config.GetDefaults()
	cfg.Funds.Store.Path = filepath.Join(dir, "fund_names.json")
	cfg.Records.Dir = filepath.Join(dir, "output")
	cfg.AI.APIKey = ""

	c, err := Build(context.Background(), cfg, logger.NewNop(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	assert.False(t, c.Pipeline.AIConfigured())
	assert.Len(t, c.Pipeline.ListFunds().Names, len(config.DefaultFundNames))
	_, err = os.Stat(cfg.Funds.Store.Path)
	assert.NoError(t, err)

	record, err := c.Pipeline.ProcessText(context.Background(), "memo.txt", "AlphaFund NAV 12.5%")
	require.NoError(t, err)
	assert.Equal(t, "Fund006 NAV NUM_000000", record.MaskedText)

	_, err = os.Stat(filepath.Join(cfg.Records.Dir, "processing_info_"+record.ID+".json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(cfg.Records.Dir, "memo_"+record.ID+"_masked.txt"))
	assert.NoError(t, err)

	t.Run("with API key", func(t *testing.T) {
		cfg := config.GetDefaults()
		cfg.Funds.Store.Type = "memory"
		cfg.Records.Store = "memory"
		cfg.AI.APIKey = "sk-test"

		c, err := Build(context.Background(), cfg, logger.NewNop(), nil)
		require.NoError(t, err)
		defer c.Close()
		assert.True(t, c.Pipeline.AIConfigured())
	})
}
