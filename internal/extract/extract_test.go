package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

func TestExtractText(t *testing.T) {
	e := New(0, zap.NewNop())

	text, meta, err := e.Bytes(context.Background(), "report.txt", []byte("AlphaFund NAV €1,204.50"))
	require.NoError(t, err)
	assert.Equal(t, "AlphaFund NAV €1,204.50", text)
	assert.Equal(t, 1, meta.TotalPages)
	assert.Equal(t, MethodText, meta.ExtractionMethod)
	assert.Equal(t, int64(len("AlphaFund NAV €1,204.50")), meta.FileSize)
	require.Len(t, meta.PagesInfo, 1)
	assert.Equal(t, 23, meta.PagesInfo[0].TextLength)
}

func TestExtractRejectsBadInput(t *testing.T) {
	e := New(0, zap.NewNop())
	ctx := context.Background()

	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"empty", "empty.txt", nil},
		{"binary", "blob.bin", []byte{0xff, 0xfe, 0x00, 0x81}},
		{"pdf extension without header", "report.pdf", []byte("just some text")},
		{"corrupted pdf", "broken.pdf", []byte("%PDF-1.4\n%garbage without xref\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := e.Bytes(ctx, tt.file, tt.data)
			assert.ErrorIs(t, err, privacy.ErrInputRejected)
		})
	}
}

func TestExtractFile(t *testing.T) {
	e := New(0, zap.NewNop())
	ctx := context.Background()

	t.Run("missing file", func(t *testing.T) {
		_, _, err := e.File(ctx, filepath.Join(t.TempDir(), "missing.pdf"))
		assert.ErrorIs(t, err, privacy.ErrInputRejected)
	})

	t.Run("text file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("Total 100"), 0o644))

		text, meta, err := e.File(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "Total 100", text)
		assert.Equal(t, int64(9), meta.FileSize)
	})
}

func TestIsPDF(t *testing.T) {
	assert.True(t, IsPDF([]byte("%PDF-1.7\n")))
	assert.False(t, IsPDF([]byte("PDF-1.7")))
	assert.False(t, IsPDF(nil))
}
