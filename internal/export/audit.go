// Package export writes the mapping tables of processing records as parquet
// audit files.
package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/parquet-go"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

const (
	KindMask = "mask"
	KindFund = "fund"
)

// AuditRow is one substituted span
type AuditRow struct {
	RecordID     string `parquet:"record_id" json:"record_id"`
	InputFile    string `parquet:"input_file" json:"input_file"`
	ProcessedAt  string `parquet:"processed_at" json:"processed_at"`
	Kind         string `parquet:"kind" json:"kind"`
	Identifier   string `parquet:"identifier" json:"identifier"`
	Original     string `parquet:"original" json:"original"`
	PatternClass string `parquet:"pattern_class" json:"pattern_class"`
	Start        int64  `parquet:"start" json:"start"`
	End          int64  `parquet:"end" json:"end"`
	Occurrences  int64  `parquet:"occurrences" json:"occurrences"`
}

// Options controls what is exported
type Options struct {
	// Redact leaves Original empty so the file can leave the trust boundary
	Redact bool
}

// Rows flattens a record into audit rows, fund spans first, each group in
// identifier order.
func Rows(record *privacy.ProcessingRecord, opts Options) []AuditRow {
	processedAt := record.ProcessedAt.UTC().Format(time.RFC3339Nano)
	base := AuditRow{
		RecordID:    record.ID,
		InputFile:   record.InputFile,
		ProcessedAt: processedAt,
	}
	original := func(s string) string {
		if opts.Redact {
			return ""
		}
		return s
	}

	var rows []AuditRow
	for _, e := range record.ObfuscationEntries() {
		for _, pos := range e.Positions {
			row := base
			row.Kind = KindFund
			row.Identifier = e.Placeholder
			row.Original = original(e.Original)
			row.Start, row.End = int64(pos[0]), int64(pos[1])
			row.Occurrences = int64(e.Occurrences)
			rows = append(rows, row)
		}
	}
	for _, e := range record.MaskEntries() {
		row := base
		row.Kind = KindMask
		row.Identifier = e.Token
		row.Original = original(e.Original)
		row.PatternClass = string(e.Class)
		row.Start, row.End = int64(e.Position[0]), int64(e.Position[1])
		row.Occurrences = 1
		rows = append(rows, row)
	}
	return rows
}

// WriteAudit writes the audit rows of records to w and returns the row count
func WriteAudit(w io.Writer, records []*privacy.ProcessingRecord, opts Options) (int, error) {
	writer := parquet.NewGenericWriter[AuditRow](w)

	total := 0
	for _, record := range records {
		rows := Rows(record, opts)
		if len(rows) == 0 {
			continue
		}
		n, err := writer.Write(rows)
		total += n
		if err != nil {
			writer.Close()
			return total, fmt.Errorf("failed to write audit rows for %s: %w", record.ID, err)
		}
	}

	if err := writer.Close(); err != nil {
		return total, fmt.Errorf("failed to finalize audit file: %w", err)
	}
	return total, nil
}

// ReadAudit reads every row of an audit file
func ReadAudit(r io.ReaderAt) ([]AuditRow, error) {
	reader := parquet.NewReader(r)
	defer reader.Close()

	var rows []AuditRow
	for {
		var row AuditRow
		err := reader.Read(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read audit row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
