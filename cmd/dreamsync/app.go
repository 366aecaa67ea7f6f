package main

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamsync/dreamsync-backend/internal/config"
	"github.com/dreamsync/dreamsync-backend/internal/core"
	"github.com/dreamsync/dreamsync-backend/internal/lock"
	"github.com/dreamsync/dreamsync-backend/internal/logger"
	"github.com/dreamsync/dreamsync-backend/internal/memory"
	"github.com/dreamsync/dreamsync-backend/internal/metrics"
	"github.com/dreamsync/dreamsync-backend/internal/pinecone"
	"github.com/dreamsync/dreamsync-backend/internal/store"
)

// app holds the wired services shared by every subcommand.
type app struct {
	cfg             config.Config
	log             *logger.Logger
	metrics         *metrics.Pipeline
	entries         *core.EntryService
	interpretations *core.InterpretationService

	closers []func()
}

func newApp(ctx context.Context, log *logger.Logger) (*app, error) {
	cfg := config.AppConfig
	a := &app{cfg: cfg, log: log, metrics: metrics.NewPipeline()}

	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.closers = append(a.closers, func() { dbStore.Close() })

	llmService, err := core.NewLLMService(ctx, cfg.GeminiAPIKey, cfg.GenerationModel, cfg.EmbeddingModel, log)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	a.closers = append(a.closers, llmService.Close)

	index, err := memoryIndex(cfg, dbStore, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	memoryService := core.NewMemoryService(
		core.NewEmbeddingGateway(llmService, log),
		memory.NewBestEffort(index, log),
		dbStore, a.metrics, log)

	locker, err := a.locker(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.entries = core.NewEntryService(dbStore, memoryService, log)
	a.closers = append(a.closers, a.entries.Wait)

	a.interpretations = core.NewInterpretationService(core.InterpretationServiceDeps{
		Entries:         dbStore,
		Interpretations: dbStore,
		Generator:       core.NewGenerationClient(llmService, cfg.GenerationTimeout, log),
		Memory:          memoryService,
		Locker:          locker,
		Metrics:         a.metrics,
		Log:             log,
		Temperature:     cfg.GenerationTemperature,
	})
	return a, nil
}

func memoryIndex(cfg config.Config, dbStore *store.SQLiteStore, log *logger.Logger) (memory.Index, error) {
	switch cfg.MemoryBackend {
	case config.MemoryBackendSQLite, "":
		log.Info("semantic memory backed by SQLite", "database", cfg.DatabaseURL)
		return dbStore.MemoryIndex(), nil
	case config.MemoryBackendPinecone:
		idx, err := pinecone.New(log, pinecone.Config{
			APIKey:          cfg.PineconeAPIKey,
			IndexHost:       cfg.PineconeIndexHost,
			NamespacePrefix: cfg.PineconeNamespacePrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Pinecone index: %w", err)
		}
		log.Info("semantic memory backed by Pinecone", "host", cfg.PineconeIndexHost)
		return idx, nil
	case config.MemoryBackendNone:
		log.Warn("semantic memory disabled")
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown MEMORY_BACKEND %q", cfg.MemoryBackend)
	}
}

func (a *app) locker(ctx context.Context) (lock.Locker, error) {
	if a.cfg.RedisAddr == "" {
		return lock.NewLocal(), nil
	}
	client, err := lock.Conn(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", a.cfg.RedisAddr, err)
	}
	a.closers = append(a.closers, func() { client.Close() })
	a.log.Info("per-entry locks backed by redis", "addr", a.cfg.RedisAddr)
	return lock.NewRedis(client, "dreamsync:lock:", a.cfg.LockTTL, a.log), nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
