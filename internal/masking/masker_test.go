package masking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPatternClasses(t *testing.T) {
	m := Default()

	tests := []struct {
		name      string
		input     string
		masked    string
		originals []string
		classes   []PatternClass
	}{
		{
			name:      "currency with decimals and percentage",
			input:     "Revenue was $1,234.56 and growth 12.5%.",
			masked:    "Revenue was NUM_000000 and growth NUM_000001.",
			originals: []string{"$1,234.56", "12.5%"},
			classes:   []PatternClass{ClassCurrency, ClassPercentage},
		},
		{
			name:      "comma grouped integer",
			input:     "Shares outstanding: 1,000,000 units",
			masked:    "Shares outstanding: NUM_000000 units",
			originals: []string{"1,000,000"},
			classes:   []PatternClass{ClassCommaGroupedInteger},
		},
		{
			name:      "decimal and plain integer",
			input:     "NAV 3.14 across 42 positions",
			masked:    "NAV NUM_000000 across NUM_000001 positions",
			originals: []string{"3.14", "42"},
			classes:   []PatternClass{ClassDecimal, ClassPlainInteger},
		},
		{
			name:      "non dollar currency",
			input:     "Price €99.50 today",
			masked:    "Price NUM_000000 today",
			originals: []string{"€99.50"},
			classes:   []PatternClass{ClassCurrency},
		},
		{
			name:      "sentence final period is not a decimal",
			input:     "The total is 42.",
			masked:    "The total is NUM_000000.",
			originals: []string{"42"},
			classes:   []PatternClass{ClassPlainInteger},
		},
		{
			name:      "currency with magnitude suffix",
			input:     "Commitment of $2.5M, NAV £10bn and raised $100m",
			masked:    "Commitment of NUM_000000M, NAV NUM_000001bn and raised NUM_000002m",
			originals: []string{"$2.5", "£10", "$100"},
			classes:   []PatternClass{ClassCurrency, ClassCurrency, ClassCurrency},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			masked, entries := m.Mask(tt.input)
			assert.Equal(t, tt.masked, masked)
			require.Len(t, entries, len(tt.originals))
			for i, e := range entries {
				assert.Equal(t, tt.originals[i], e.Original)
				assert.Equal(t, tt.classes[i], e.Class)
				assert.Equal(t, e.Original, tt.input[e.Position[0]:e.Position[1]])
			}
		})
	}
}

// Test that a currency amount is consumed whole rather than as smaller integers
func TestMaskPriority(t *testing.T) {
	masked, entries := Default().Mask("allocation: $2,500,000 (50%)")

	assert.Equal(t, "allocation: NUM_000000 (NUM_000001)", masked)
	require.Len(t, entries, 2)
	assert.Equal(t, "$2,500,000", entries[0].Original)
	assert.Equal(t, ClassCurrency, entries[0].Class)
	assert.Equal(t, "50%", entries[1].Original)
	assert.Equal(t, ClassPercentage, entries[1].Class)
	assert.Equal(t, [2]int{12, 22}, entries[0].Position)
}

func TestMaskLeavesIdentifiersAlone(t *testing.T) {
	m := Default()

	for _, input := range []string{
		"upgrade to v2 next week",
		"running build 1.2.3 in prod",
		"the 10x return",
		"ticker ABC123",
		"snake_case_42",
	} {
		t.Run(input, func(t *testing.T) {
			masked, entries := m.Mask(input)
			assert.Equal(t, input, masked)
			assert.Empty(t, entries)
		})
	}

	t.Run("identifier next to a real value", func(t *testing.T) {
		masked, entries := m.Mask("Q3 revenue 2024")
		assert.Equal(t, "Q3 revenue NUM_000000", masked)
		require.Len(t, entries, 1)
		assert.Equal(t, "2024", entries[0].Original)
	})
}

func TestMaskEmptyInput(t *testing.T) {
	m := Default()

	for _, input := range []string{"", "   ", "\n\t"} {
		masked, entries := m.Mask(input)
		assert.Equal(t, input, masked)
		assert.Empty(t, entries)
	}
}

func TestMaskIsIdempotent(t *testing.T) {
	m := Default()

	masked, entries := m.Mask("Q1 $5,000, Q2 7.5%, Q3 1,200 units and 17 trades")
	require.NotEmpty(t, entries)

	again, second := m.Mask(masked)
	assert.Equal(t, masked, again)
	assert.Empty(t, second)
}

func TestMaskTokenUniqueness(t *testing.T) {
	m, err := NewMasker("T_", 1)
	require.NoError(t, err)

	parts := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		parts = append(parts, "5")
	}
	masked, entries := m.Mask(strings.Join(parts, " "))
	require.Len(t, entries, 12)
	assert.Equal(t, "T_00", entries[0].Token)
	assert.Equal(t, "T_11", entries[11].Token)
	assert.Equal(t, "T_00 T_01", masked[:9])

	seen := make(map[string]bool)
	for _, a := range entries {
		assert.False(t, seen[a.Token], "duplicate token %s", a.Token)
		seen[a.Token] = true
		for _, b := range entries {
			if a.Token != b.Token {
				assert.False(t, strings.HasPrefix(b.Token, a.Token), "%s is a prefix of %s", a.Token, b.Token)
			}
		}
	}
}

func TestMaskCountersRestartPerCall(t *testing.T) {
	m := Default()

	_, first := m.Mask("10 and 20")
	_, second := m.Mask("30")
	require.Len(t, first, 2)
	require.Len(t, second, 1)
	assert.Equal(t, "NUM_000000", second[0].Token)
}

func TestNewMasker(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		m, err := NewMasker("AMT_", 4)
		require.NoError(t, err)
		assert.Equal(t, "AMT_", m.Prefix())

		masked, _ := m.Mask("pay 12")
		assert.Equal(t, "pay AMT_0000", masked)
	})

	for name, tc := range map[string]struct {
		prefix string
		width  int
	}{
		"empty prefix":        {"", 6},
		"digit in prefix":     {"NUM1_", 6},
		"non word final rune": {"NUM-", 6},
		"zero width":          {"NUM_", 0},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewMasker(tc.prefix, tc.width)
			assert.Error(t, err)
		})
	}
}
