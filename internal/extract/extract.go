// Package extract turns uploaded documents into plain text for masking.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

const (
	// MethodPDF names text pulled from PDF content streams
	MethodPDF = "pdf"
	// MethodText names input that was already plain text
	MethodText = "text"
)

// pageSeparator joins page texts
const pageSeparator = "\n\n"

// Extractor reads a document and returns its text and metadata. Any
// unreadable input is reported as privacy.ErrInputRejected.
type Extractor struct {
	maxPages int
	logger   *zap.Logger
}

// New creates an extractor. maxPages <= 0 reads every page.
func New(maxPages int, logger *zap.Logger) *Extractor {
	return &Extractor{maxPages: maxPages, logger: logger}
}

// File extracts the document at path
func (e *Extractor) File(ctx context.Context, path string) (string, privacy.DocumentMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: %v", privacy.ErrInputRejected, err)
	}
	return e.Bytes(ctx, filepath.Base(path), data)
}

// Bytes extracts an in-memory document. PDFs are recognised by their magic
// header, anything else must be valid UTF-8 text.
func (e *Extractor) Bytes(ctx context.Context, name string, data []byte) (string, privacy.DocumentMetadata, error) {
	if len(data) == 0 {
		return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: %s is empty", privacy.ErrInputRejected, name)
	}
	if IsPDF(data) {
		return e.pdf(ctx, name, data)
	}
	if strings.EqualFold(filepath.Ext(name), ".pdf") {
		return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: %s is not a PDF document", privacy.ErrInputRejected, name)
	}
	return Text(name, data)
}

// IsPDF reports whether data starts with the PDF header
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// Text accepts plain UTF-8 text as a single page document
func Text(name string, data []byte) (string, privacy.DocumentMetadata, error) {
	if !utf8.Valid(data) {
		return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: %s is neither a PDF nor UTF-8 text", privacy.ErrInputRejected, name)
	}
	text := string(data)
	return text, privacy.DocumentMetadata{
		TotalPages:       1,
		ExtractionMethod: MethodText,
		FileSize:         int64(len(data)),
		PagesInfo:        []privacy.PageInfo{{PageNumber: 1, TextLength: utf8.RuneCountInString(text)}},
	}, nil
}

func (e *Extractor) pdf(ctx context.Context, name string, data []byte) (text string, meta privacy.DocumentMetadata, err error) {
	// the parser panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("PDF parser failed", zap.String("file", name), zap.Any("panic", r))
			text, meta = "", privacy.DocumentMetadata{}
			err = fmt.Errorf("%w: %s is corrupted", privacy.ErrInputRejected, name)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: %s is unreadable or encrypted: %v", privacy.ErrInputRejected, name, err)
	}

	total := reader.NumPage()
	if total == 0 {
		return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: %s has no pages", privacy.ErrInputRejected, name)
	}
	pages := total
	if e.maxPages > 0 && pages > e.maxPages {
		pages = e.maxPages
	}

	meta = privacy.DocumentMetadata{
		TotalPages:       total,
		ExtractionMethod: MethodPDF,
		FileSize:         int64(len(data)),
		PagesInfo:        make([]privacy.PageInfo, 0, pages),
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", privacy.DocumentMetadata{}, err
		}

		page := reader.Page(i)
		var pageText string
		if !page.V.IsNull() {
			pageText, err = page.GetPlainText(nil)
			if err != nil {
				return "", privacy.DocumentMetadata{}, fmt.Errorf("%w: page %d of %s: %v", privacy.ErrInputRejected, i, name, err)
			}
		}
		sb.WriteString(pageText)
		sb.WriteString(pageSeparator)
		meta.PagesInfo = append(meta.PagesInfo, privacy.PageInfo{
			PageNumber: i,
			TextLength: utf8.RuneCountInString(pageText),
		})
	}

	text = strings.TrimSpace(sb.String())
	e.logger.Debug("PDF extracted",
		zap.String("file", name),
		zap.Int("pages", total),
		zap.Int("characters", utf8.RuneCountInString(text)))
	return text, meta, nil
}
