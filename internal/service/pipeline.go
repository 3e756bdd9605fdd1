// Package service wires extraction, masking, record storage, the AI
// collaborator and event broadcasting into the operations exposed by the
// daemon and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/ai"
	"github.com/raaihank/asset-privacy/internal/extract"
	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/privacy"
	"github.com/raaihank/asset-privacy/internal/records"
	"github.com/raaihank/asset-privacy/internal/websocket"
)

// ErrAIUnavailable is returned by Complete when no provider is configured
var ErrAIUnavailable = errors.New("AI provider not configured")

// Notifier receives pipeline events
type Notifier interface {
	Broadcast(eventType websocket.EventType, data interface{})
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(websocket.EventType, interface{}) {}

// Options configures a Pipeline. Completer and Events may be nil.
type Options struct {
	Engine    *privacy.Engine
	Extractor *extract.Extractor
	Records   records.Store
	Completer ai.Completer
	Model     string
	Events    Notifier
	Logger    *zap.Logger
}

// Pipeline runs document processing requests
type Pipeline struct {
	engine    *privacy.Engine
	extractor *extract.Extractor
	records   records.Store
	completer ai.Completer
	model     string
	events    Notifier
	logger    *zap.Logger
}

// New creates a pipeline
func New(opts Options) *Pipeline {
	if opts.Events == nil {
		opts.Events = nopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Extractor == nil {
		opts.Extractor = extract.New(0, opts.Logger)
	}
	if opts.Records == nil {
		opts.Records = records.NewMemoryStore()
	}
	return &Pipeline{
		engine:    opts.Engine,
		extractor: opts.Extractor,
		records:   opts.Records,
		completer: opts.Completer,
		model:     opts.Model,
		events:    opts.Events,
		logger:    opts.Logger,
	}
}

// AIConfigured reports whether Complete can reach a provider
func (p *Pipeline) AIConfigured() bool {
	return p.completer != nil
}

// Registry returns the fund registry
func (p *Pipeline) Registry() *funds.Registry {
	return p.engine.Registry()
}

// ProcessFile extracts, masks and stores the document at path
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*privacy.ProcessingRecord, error) {
	start := time.Now()
	text, meta, err := p.extractor.File(ctx, path)
	if err != nil {
		return nil, err
	}
	return p.process(ctx, path, text, meta, start)
}

// ProcessUpload extracts, masks and stores an uploaded document
func (p *Pipeline) ProcessUpload(ctx context.Context, name string, data []byte) (*privacy.ProcessingRecord, error) {
	start := time.Now()
	text, meta, err := p.extractor.Bytes(ctx, name, data)
	if err != nil {
		return nil, err
	}
	return p.process(ctx, name, text, meta, start)
}

// ProcessText masks and stores already extracted text
func (p *Pipeline) ProcessText(ctx context.Context, name, text string) (*privacy.ProcessingRecord, error) {
	start := time.Now()
	meta := privacy.DocumentMetadata{
		TotalPages:       1,
		ExtractionMethod: extract.MethodText,
		FileSize:         int64(len(text)),
		PagesInfo:        []privacy.PageInfo{{PageNumber: 1, TextLength: utf8.RuneCountInString(text)}},
	}
	return p.process(ctx, name, text, meta, start)
}

func (p *Pipeline) process(ctx context.Context, name, text string, meta privacy.DocumentMetadata, start time.Time) (*privacy.ProcessingRecord, error) {
	record := p.engine.Process(text, meta)
	if name != "" {
		record.InputFile = filepath.Base(name)
	}

	if err := p.records.Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store processing record: %w", err)
	}

	elapsed := time.Since(start)
	p.logger.Info("Document processed",
		zap.String("record_id", record.ID),
		zap.Int("total_masked_values", record.TotalMaskedValues),
		zap.Int("total_obfuscated_funds", record.TotalObfuscatedFunds),
		zap.Int("total_characters", record.TotalCharacters),
		zap.Duration("duration", elapsed))

	p.events.Broadcast(websocket.EventTypeRecordProcessed, websocket.RecordEvent{
		RecordID:             record.ID,
		InputFile:            record.InputFile,
		TotalMaskedValues:    record.TotalMaskedValues,
		TotalObfuscatedFunds: record.TotalObfuscatedFunds,
		TotalCharacters:      record.TotalCharacters,
		TotalPages:           record.PDFMetadata.TotalPages,
		ProcessingMS:         float64(elapsed.Microseconds()) / 1000,
	})
	return record, nil
}

// Record returns a stored record
func (p *Pipeline) Record(ctx context.Context, id string) (*privacy.ProcessingRecord, error) {
	return p.records.Get(ctx, id)
}

// Decrypt reconstructs candidate with an inline record
func (p *Pipeline) Decrypt(ctx context.Context, candidate string, record *privacy.ProcessingRecord) (privacy.DecryptResult, error) {
	if err := record.Validate(); err != nil {
		return privacy.DecryptResult{}, err
	}
	result := privacy.Decrypt(candidate, record)

	p.logger.Info("Text decrypted",
		zap.String("record_id", record.ID),
		zap.Int("requested", result.Requested),
		zap.Int("resolved", result.Resolved))
	p.events.Broadcast(websocket.EventTypeRecordDecrypted, websocket.DecryptEvent{
		RecordID:  record.ID,
		Requested: result.Requested,
		Resolved:  result.Resolved,
		Missing:   len(result.Missing),
	})
	return result, nil
}

// DecryptStored reconstructs candidate with a stored record. An empty
// candidate falls back to the record's AI response, then its masked text.
func (p *Pipeline) DecryptStored(ctx context.Context, id, candidate string) (privacy.DecryptResult, error) {
	record, err := p.records.Get(ctx, id)
	if err != nil {
		return privacy.DecryptResult{}, err
	}
	if candidate == "" {
		candidate = record.AIResponse
	}
	if candidate == "" {
		candidate = record.MaskedText
	}
	return p.Decrypt(ctx, candidate, record)
}

// Complete sends a stored record's masked text to the AI provider, attaches
// the response and stores the updated record. A provider failure leaves the
// stored record untouched.
func (p *Pipeline) Complete(ctx context.Context, id, instructions string) (*privacy.ProcessingRecord, error) {
	if p.completer == nil {
		return nil, fmt.Errorf("%w: %w", privacy.ErrExternalCall, ErrAIUnavailable)
	}
	record, err := p.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	response, err := p.completer.Complete(ctx, ai.BuildPrompt(instructions, record.MaskedText))
	if err != nil {
		p.logger.Warn("AI completion failed", zap.String("record_id", id), zap.Error(err))
		if !errors.Is(err, privacy.ErrExternalCall) {
			err = fmt.Errorf("%w: %w", privacy.ErrExternalCall, err)
		}
		return nil, err
	}

	completed := record.WithAIResponse(response, time.Now().UTC())
	if err := p.records.Save(ctx, completed); err != nil {
		return nil, fmt.Errorf("failed to store AI response: %w", err)
	}

	elapsed := time.Since(start)
	p.logger.Info("AI response attached",
		zap.String("record_id", id),
		zap.Int("response_length", len(response)),
		zap.Duration("duration", elapsed))
	p.events.Broadcast(websocket.EventTypeAICompleted, websocket.AICompletedEvent{
		RecordID:       id,
		Model:          p.model,
		ResponseLength: len(response),
		DurationMS:     float64(elapsed.Microseconds()) / 1000,
	})
	return completed, nil
}

// ListFunds returns the registry contents
func (p *Pipeline) ListFunds() funds.Listing {
	return p.Registry().List()
}

// AddFund registers a fund name
func (p *Pipeline) AddFund(ctx context.Context, name string) (funds.Mutation, error) {
	m, err := p.Registry().Add(ctx, name)
	if err != nil {
		return m, err
	}
	p.registryChanged("add", m)
	return m, nil
}

// RemoveFund unregisters a fund name
func (p *Pipeline) RemoveFund(ctx context.Context, name string) (funds.Mutation, error) {
	m, err := p.Registry().Remove(ctx, name)
	if err != nil {
		return m, err
	}
	p.registryChanged("remove", m)
	return m, nil
}

func (p *Pipeline) registryChanged(action string, m funds.Mutation) {
	if !m.Changed() {
		return
	}
	event := websocket.RegistryEvent{
		Action:      action,
		Status:      string(m.Status),
		Placeholder: m.Placeholder,
		FundCount:   p.Registry().Snapshot().Len(),
	}
	if m.PersistErr != nil {
		event.PersistWarning = m.PersistErr.Error()
	}
	p.events.Broadcast(websocket.EventTypeRegistryChanged, event)
}
