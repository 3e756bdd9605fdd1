package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/raaihank/asset-privacy/internal/ai"
	"github.com/raaihank/asset-privacy/internal/config"
	"github.com/raaihank/asset-privacy/internal/extract"
	"github.com/raaihank/asset-privacy/internal/funds"
	"github.com/raaihank/asset-privacy/internal/logger"
	"github.com/raaihank/asset-privacy/internal/masking"
	"github.com/raaihank/asset-privacy/internal/privacy"
	"github.com/raaihank/asset-privacy/internal/records"
)

// Components is everything Build assembled from a configuration
type Components struct {
	Pipeline *Pipeline
	Records  records.Store
	Logger   *zap.Logger
	closers  []func() error
}

// Close releases store connections
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build wires stores, the engine and the AI provider from cfg. events may be
// nil.
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, events Notifier) (*Components, error) {
	c := &Components{Logger: log.WithComponent("batch").Logger}

	fundStore, err := newFundStore(ctx, cfg.Funds.Store, log.WithComponent("funds").Logger, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	registry, err := funds.NewRegistry(ctx, fundStore, funds.Options{
		PlaceholderPrefix: cfg.Funds.PlaceholderPrefix,
		PlaceholderWidth:  cfg.Funds.PlaceholderWidth,
		Defaults:          cfg.Funds.Defaults,
	}, log.WithComponent("funds").Logger)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to load fund registry: %w", err)
	}

	masker, err := masking.NewMasker(cfg.Masking.TokenPrefix, cfg.Masking.TokenWidth)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create masker: %w", err)
	}

	recordStore, err := newRecordStore(ctx, cfg.Records, log.WithComponent("records").Logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.Records = recordStore
	c.closers = append(c.closers, recordStore.Close)

	var completer ai.Completer
	if cfg.AI.APIKey != "" {
		provider, err := ai.NewOpenAI(ai.Config{
			BaseURL:           cfg.AI.BaseURL,
			APIKey:            cfg.AI.APIKey,
			Model:             cfg.AI.Model,
			MaxTokens:         cfg.AI.MaxTokens,
			Temperature:       cfg.AI.Temperature,
			Timeout:           cfg.AI.Timeout,
			MaxRetries:        cfg.AI.MaxRetries,
			RequestsPerMinute: cfg.AI.RequestsPerMinute,
		}, log.WithComponent("ai").Logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create AI provider: %w", err)
		}
		completer = provider
	} else {
		log.Warn("No AI API key configured, completion is disabled")
	}

	c.Pipeline = New(Options{
		Engine:    privacy.NewEngine(masker, registry),
		Extractor: extract.New(0, log.WithComponent("extract").Logger),
		Records:   recordStore,
		Completer: completer,
		Model:     cfg.AI.Model,
		Events:    events,
		Logger:    log.WithComponent("pipeline").Logger,
	})
	return c, nil
}

func newFundStore(ctx context.Context, cfg config.FundsStoreConfig, log *zap.Logger, c *Components) (funds.Store, error) {
	switch cfg.Type {
	case "postgres":
		store, err := funds.NewPostgresStore(ctx, funds.PostgresConfig{
			DatabaseURL:     cfg.DatabaseURL,
			MaxOpenConns:    cfg.MaxOpenConns,
			MaxIdleConns:    cfg.MaxIdleConns,
			ConnMaxLifetime: cfg.ConnMaxLifetime,
		}, log)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		return store, nil
	case "memory":
		return funds.NewMemoryStore(), nil
	default:
		return funds.NewFileStore(cfg.Path), nil
	}
}

func newRecordStore(ctx context.Context, cfg config.RecordsConfig, log *zap.Logger) (records.Store, error) {
	switch cfg.Store {
	case "redis":
		return records.NewRedisStore(ctx, records.RedisConfig{
			RedisURL:       cfg.RedisURL,
			MaxConnections: cfg.MaxConnections,
			MinIdleConns:   cfg.MinIdleConns,
			TTL:            cfg.TTL,
			KeyPrefix:      cfg.KeyPrefix,
		}, log)
	case "memory":
		return records.NewMemoryStore(), nil
	default:
		return records.NewFileStore(cfg.Dir, cfg.SaveMaskedText, log)
	}
}
