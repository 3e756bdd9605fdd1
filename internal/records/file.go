package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

// FileStore writes each record to <dir>/processing_info_<id>.json and, when
// enabled, the masked text to <dir>/<input base>_<id>_masked.txt.
type FileStore struct {
	dir            string
	saveMaskedText bool
	logger         *zap.Logger
}

// NewFileStore creates the output directory if needed
func NewFileStore(dir string, saveMaskedText bool, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create records directory: %w", err)
	}
	return &FileStore{dir: dir, saveMaskedText: saveMaskedText, logger: logger}, nil
}

// RecordPath returns the JSON file of a record
func (f *FileStore) RecordPath(id string) string {
	return filepath.Join(f.dir, "processing_info_"+id+".json")
}

// MaskedTextPath returns the masked text file of a record. The record ID is
// part of the name so inputs sharing a base name never collide.
func (f *FileStore) MaskedTextPath(record *privacy.ProcessingRecord) string {
	base := strings.TrimSuffix(filepath.Base(record.InputFile), filepath.Ext(record.InputFile))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return filepath.Join(f.dir, record.ID+"_masked.txt")
	}
	return filepath.Join(f.dir, base+"_"+record.ID+"_masked.txt")
}

func (f *FileStore) Save(ctx context.Context, record *privacy.ProcessingRecord) error {
	if err := ValidateID(record.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := writeAtomic(f.RecordPath(record.ID), data); err != nil {
		return err
	}

	if f.saveMaskedText {
		if err := writeAtomic(f.MaskedTextPath(record), []byte(record.MaskedText)); err != nil {
			return err
		}
	}

	f.logger.Debug("Processing record saved",
		zap.String("record_id", record.ID),
		zap.Int("total_masked_values", record.TotalMaskedValues))
	return nil
}

func (f *FileStore) Get(ctx context.Context, id string) (*privacy.ProcessingRecord, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	return ReadFile(f.RecordPath(id))
}

// ReadFile decodes a record JSON document such as one written by FileStore
func ReadFile(path string) (*privacy.ProcessingRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", privacy.ErrRecordNotFound, filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var record privacy.ProcessingRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", privacy.ErrInvalidRecord, filepath.Base(path), err)
	}
	return &record, nil
}

func (f *FileStore) Close() error { return nil }

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".record-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
