package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/loom/internal/adapters/driven/ai"
	"github.com/custodia-labs/loom/internal/adapters/driven/config/file"
	"github.com/custodia-labs/loom/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/loom/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/loom/internal/adapters/driving/cli"
	"github.com/custodia-labs/loom/internal/core/domain"
	"github.com/custodia-labs/loom/internal/core/ports/driven"
	"github.com/custodia-labs/loom/internal/core/services"
	"github.com/custodia-labs/loom/internal/logger"
	"github.com/custodia-labs/loom/internal/postprocessors/chunker"
)

// bootstrap wires stores, providers and services for one CLI invocation.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, error) {
	logger.Section("Bootstrap")

	configStore, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening config: %w", err)
	}
	configDir := filepath.Dir(configStore.Path())
	logger.Debug("config: %s", configStore.Path())

	settingsService := services.NewSettingsService(configStore)
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	var (
		records driven.RecordStore
		closers []func() error
	)
	if opts.InMemory {
		logger.Debug("storage: in-memory")
		records = memory.NewRecordStore()
	} else {
		dataDir := settings.DataDir
		if dataDir == "" {
			dataDir = filepath.Join(configDir, "data")
		}
		store, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		logger.Debug("storage: %s", store.Path())
		records = store.RecordStore()
		closers = append(closers, store.Close)
	}

	providers := ai.Init(ctx, *settings, os.Getenv)
	for _, w := range providers.Warnings {
		logger.Info("%s", w)
	}

	indexService := services.NewIndexService(records, providers.EmbeddingService,
		services.WithChunker(chunker.New(
			chunker.WithMaxSize(settings.Chunker.MaxSize),
			chunker.WithOverlap(settings.Chunker.Overlap),
		)),
	)
	contextService := services.NewContextService(records, providers.EmbeddingService, settings.Retrieval)
	generationService := services.NewGenerationService(contextService, providers.LLMService)

	prompts, err := file.NewPromptStore(filepath.Join(configDir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("opening prompts: %w", err)
	}
	generationService.SetPromptStore(prompts)

	closers = append([]func() error{func() error {
		indexService.Wait()
		providers.Close()
		return nil
	}}, closers...)

	return &cli.Services{
		Context:    contextService,
		Index:      indexService,
		Generation: generationService,
		Settings:   settingsService,
		Prompts:    prompts,
		Validator:  ai.NewConfigValidator(os.Getenv),
		Close: func() error {
			var errs []error
			for _, c := range closers {
				errs = append(errs, c())
			}
			return errors.Join(errs...)
		},
	}, nil
}
