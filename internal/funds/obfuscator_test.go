package funds

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObfuscateLongestNameFirst(t *testing.T) {
	r, _ := newTestRegistry(t, "Fund", "Fund Growth")

	text, entries := Obfuscate("Fund Growth outperformed the Fund", r)

	assert.Equal(t, "Fund002 outperformed the Fund001", text)
	require.Len(t, entries, 2)
	assert.Equal(t, "Fund002", entries[0].Placeholder)
	assert.Equal(t, "Fund Growth", entries[0].Original)
	assert.Equal(t, "Fund001", entries[1].Placeholder)
}

func TestObfuscateCaseInsensitiveReuse(t *testing.T) {
	r, _ := newTestRegistry(t, "AlphaFund")

	input := "alphafund rose while ALPHAFUND fell"
	text, entries := Obfuscate(input, r)

	assert.Equal(t, "Fund001 rose while Fund001 fell", text)
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, "alphafund", entry.Original)
	assert.Equal(t, 2, entry.Occurrences)
	assert.Equal(t, [][2]int{{0, 9}, {21, 30}}, entry.Positions)
	assert.Equal(t, "ALPHAFUND", input[entry.Positions[1][0]:entry.Positions[1][1]])
}

func TestObfuscateWholeWordsOnly(t *testing.T) {
	r, _ := newTestRegistry(t, "AlphaFund", "MasterFund1")

	for _, input := range []string{
		"AlphaFunding is not a fund",
		"SuperAlphaFund is different",
		"MasterFund10 is a different fund",
		"éAlphaFund",
		"AlphaFund_b",
	} {
		t.Run(input, func(t *testing.T) {
			text, entries := Obfuscate(input, r)
			assert.Equal(t, input, text)
			assert.Empty(t, entries)
		})
	}

	t.Run("punctuation is a boundary", func(t *testing.T) {
		text, entries := Obfuscate("(MasterFund1), AlphaFund.", r)
		assert.Equal(t, "(Fund002), Fund001.", text)
		assert.Len(t, entries, 2)
	})
}

func TestObfuscateFallsBackToShorterName(t *testing.T) {
	r, _ := newTestRegistry(t, "Alpha", "Alpha Growth")

	input := "Alpha Growthé holds, Alpha Growth sells"
	text, entries := Obfuscate(input, r)

	assert.Equal(t, "Fund001 Growthé holds, Fund002 sells", text)
	require.Len(t, entries, 2)
	assert.Equal(t, "Alpha", entries[0].Original)
	assert.Equal(t, [][2]int{{0, 5}}, entries[0].Positions)
	assert.Equal(t, "Alpha Growth", entries[1].Original)
}

func TestObfuscateEmptyRegistry(t *testing.T) {
	r, _ := newTestRegistry(t)

	text, entries := Obfuscate("AlphaFund returned 5%", r)
	assert.Equal(t, "AlphaFund returned 5%", text)
	assert.Empty(t, entries)
}

func TestResultRawOffset(t *testing.T) {
	r, _ := newTestRegistry(t, "AlphaFund")

	raw := "AlphaFund has 5 and AlphaFund has 6"
	result := r.Snapshot().Obfuscate(raw)
	require.Equal(t, "Fund001 has 5 and Fund001 has 6", result.Text)
	require.Len(t, result.Substitutions, 2)

	five := 12
	six := len(result.Text) - 1
	assert.Equal(t, "5", result.Text[five:five+1])
	assert.Equal(t, "5", raw[result.RawOffset(five):result.RawOffset(five)+1])
	assert.Equal(t, "6", raw[result.RawOffset(six):result.RawOffset(six)+1])

	// inside a placeholder maps to the start of the name
	assert.Equal(t, 0, result.RawOffset(3))
}

func TestSnapshotIsImmutable(t *testing.T) {
	r, _ := newTestRegistry(t, "AlphaFund")
	before := r.Snapshot()

	_, err := r.Add(context.Background(), "BetaFund")
	require.NoError(t, err)

	assert.Equal(t, 1, before.Len())
	_, ok := before.PlaceholderFor("BetaFund")
	assert.False(t, ok)
	assert.Equal(t, 2, r.Snapshot().Len())
}
