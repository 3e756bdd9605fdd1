package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/masking"
	"github.com/raaihank/asset-privacy/internal/privacy"
)

func processed(t *testing.T, text string) *privacy.ProcessingRecord {
	t.Helper()
	registry, err := funds.NewRegistry(context.Background(), funds.NewMemoryStore(),
		funds.Options{Defaults: []string{"AlphaFund"}}, zap.NewNop())
	require.NoError(t, err)
	return privacy.NewEngine(masking.Default(), registry).Process(text, privacy.DocumentMetadata{})
}

func TestRows(t *testing.T) {
	record := processed(t, "AlphaFund and AlphaFund hold $5,000 at 4%")

	rows := Rows(record, Options{})
	require.Len(t, rows, 4)

	assert.Equal(t, KindFund, rows[0].Kind)
	assert.Equal(t, "Fund001", rows[0].Identifier)
	assert.Equal(t, int64(2), rows[0].Occurrences)
	assert.Equal(t, int64(14), rows[1].Start)

	assert.Equal(t, KindMask, rows[2].Kind)
	assert.Equal(t, "NUM_000000", rows[2].Identifier)
	assert.Equal(t, "$5,000", rows[2].Original)
	assert.Equal(t, "currency", rows[2].PatternClass)
	assert.Equal(t, "4%", rows[3].Original)

	for _, row := range Rows(record, Options{Redact: true}) {
		assert.Empty(t, row.Original)
		assert.Equal(t, record.ID, row.RecordID)
	}
}

func TestWriteAndReadAudit(t *testing.T) {
	first := processed(t, "AlphaFund returned 12%")
	second := processed(t, "Total 1,000 and 2,000")

	var buf bytes.Buffer
	n, err := WriteAudit(&buf, []*privacy.ProcessingRecord{first, second}, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	rows, err := ReadAudit(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, first.ID, rows[0].RecordID)
	assert.Equal(t, "AlphaFund", rows[0].Original)
	assert.Equal(t, "12%", rows[1].Original)
	assert.Equal(t, second.ID, rows[2].RecordID)
	assert.Equal(t, "comma_grouped_integer", rows[3].PatternClass)
}
