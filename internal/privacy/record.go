package privacy

import (
	"fmt"
	"sort"
	"time"

	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/masking"
)

// PageInfo describes one extracted page
type PageInfo struct {
	PageNumber int `json:"page_number"`
	TextLength int `json:"text_length"`
}

// DocumentMetadata is what the extraction step reports about its input
type DocumentMetadata struct {
	TotalPages       int        `json:"total_pages"`
	ExtractionMethod string     `json:"extraction_method,omitempty"`
	FileSize         int64      `json:"file_size,omitempty"`
	PagesInfo        []PageInfo `json:"pages_info,omitempty"`
}

// MaskingInfo is the token -> masked value table
type MaskingInfo struct {
	MaskedValues map[string]masking.MaskEntry `json:"masked_values"`
	TotalMasked  int                          `json:"total_masked"`
}

// ObfuscationInfo is the placeholder -> fund name table
type ObfuscationInfo struct {
	ObfuscatedFunds map[string]funds.ObfuscationEntry `json:"obfuscated_funds"`
	TotalObfuscated int                               `json:"total_obfuscated"`
}

// ProcessingRecord is everything needed to audit one masking pass and to
// reconstruct the original values in text derived from MaskedText.
// It is not modified after creation; WithAIResponse returns a copy.
type ProcessingRecord struct {
	ID                   string           `json:"id"`
	InputFile            string           `json:"input_file,omitempty"`
	ProcessedAt          time.Time        `json:"processing_timestamp"`
	OriginalText         string           `json:"original_text"`
	MaskedText           string           `json:"masked_text"`
	MaskingInfo          MaskingInfo      `json:"masking_info"`
	ObfuscationInfo      ObfuscationInfo  `json:"obfuscation_info"`
	TotalMaskedValues    int              `json:"total_masked_values"`
	TotalObfuscatedFunds int              `json:"total_obfuscated_funds"`
	TotalCharacters      int              `json:"total_characters"`
	PDFMetadata          DocumentMetadata `json:"pdf_metadata"`
	AIResponse           string           `json:"ai_response,omitempty"`
	AIResponseAt         *time.Time       `json:"ai_response_at,omitempty"`
}

// WithAIResponse returns a copy of the record with the AI response attached
func (r *ProcessingRecord) WithAIResponse(response string, at time.Time) *ProcessingRecord {
	c := *r
	c.AIResponse = response
	c.AIResponseAt = &at
	return &c
}

// MaskEntries returns the mask entries ordered by token
func (r *ProcessingRecord) MaskEntries() []masking.MaskEntry {
	entries := make([]masking.MaskEntry, 0, len(r.MaskingInfo.MaskedValues))
	for _, e := range r.MaskingInfo.MaskedValues {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return lessIdentifier(entries[i].Token, entries[j].Token)
	})
	return entries
}

// ObfuscationEntries returns the obfuscation entries ordered by placeholder
func (r *ProcessingRecord) ObfuscationEntries() []funds.ObfuscationEntry {
	entries := make([]funds.ObfuscationEntry, 0, len(r.ObfuscationInfo.ObfuscatedFunds))
	for _, e := range r.ObfuscationInfo.ObfuscatedFunds {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return lessIdentifier(entries[i].Placeholder, entries[j].Placeholder)
	})
	return entries
}

// Validate checks that a record, typically one decoded from a client, has
// consistent mapping tables.
func (r *ProcessingRecord) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: missing record", ErrInvalidRecord)
	}
	for key, e := range r.MaskingInfo.MaskedValues {
		if key == "" || e.Token != key {
			return fmt.Errorf("%w: masked value %q does not match its key", ErrInvalidRecord, key)
		}
	}
	for key, e := range r.ObfuscationInfo.ObfuscatedFunds {
		if key == "" || e.Placeholder != key {
			return fmt.Errorf("%w: obfuscated fund %q does not match its key", ErrInvalidRecord, key)
		}
	}
	return nil
}

// lessIdentifier orders identifiers by length, then lexically, which is
// numeric order for zero-padded counters.
func lessIdentifier(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
