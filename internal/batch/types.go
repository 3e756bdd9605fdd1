package batch

import (
	"time"

	"github.com/raaihank/asset-privacy/internal/privacy"
)

// Config contains batch runner configuration
type Config struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
	// StopOnError cancels the remaining documents after the first failure
	StopOnError bool `yaml:"stop_on_error" mapstructure:"stop_on_error"`
	// ProgressReport logs progress every n documents; 0 disables it
	ProgressReport int `yaml:"progress_report" mapstructure:"progress_report"`
}

// Item is the outcome for one input document
type Item struct {
	Path   string                    `json:"path"`
	Record *privacy.ProcessingRecord `json:"-"`
	Err    error                     `json:"-"`
}

// Result summarises a batch run. Items keep the input order.
type Result struct {
	TotalFiles           int64         `json:"total_files"`
	ProcessedOK          int64         `json:"processed_ok"`
	ProcessedFailed      int64         `json:"processed_failed"`
	Skipped              int64         `json:"skipped"`
	TotalMaskedValues    int64         `json:"total_masked_values"`
	TotalObfuscatedFunds int64         `json:"total_obfuscated_funds"`
	Duration             time.Duration `json:"duration"`
	Items                []Item        `json:"-"`
	Errors               []string      `json:"errors,omitempty"`
}

// DocumentFormat represents supported input formats
type DocumentFormat string

const (
	FormatPDF     DocumentFormat = "pdf"
	FormatText    DocumentFormat = "text"
	FormatUnknown DocumentFormat = "unknown"
)

// DetectFormat detects the document format from its extension
func DetectFormat(filename string) DocumentFormat {
	switch ext := extension(filename); ext {
	case ".pdf":
		return FormatPDF
	case ".txt", ".text", ".md", ".csv":
		return FormatText
	default:
		return FormatUnknown
	}
}
