// Command mindloomd runs the Mindloom memory service: the hybrid ingestion
// pipeline, the retrieval and answering engine, and the HTTP API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mindloom/mindloom/internal/backup"
	"github.com/mindloom/mindloom/internal/config"
	"github.com/mindloom/mindloom/internal/engine"
	"github.com/mindloom/mindloom/internal/index"
	"github.com/mindloom/mindloom/internal/index/postgres"
	"github.com/mindloom/mindloom/internal/index/sqlite"
	"github.com/mindloom/mindloom/internal/llm"
	"github.com/mindloom/mindloom/internal/ontology"
	"github.com/mindloom/mindloom/internal/server"
)

func main() {
	cfg := config.Load()

	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to open index backend: %v", err)
	}
	defer backend.Close()

	gen, embedder, err := buildModels(cfg)
	if err != nil {
		log.Fatalf("Failed to configure LLM clients: %v", err)
	}

	catalog, watcher, err := loadCatalog(cfg)
	if err != nil {
		log.Fatalf("Failed to load ontology catalog: %v", err)
	}

	adapter := index.NewAdapter(backend, embedder, index.Options{
		KNNCandidates: cfg.Pipeline.KNNCandidates,
	})

	eng := engine.New(catalog, gen, adapter, engine.Options{
		AsyncUpserts: cfg.Pipeline.AsyncUpserts,
		Workers:      cfg.Pipeline.Workers,
		QueueSize:    cfg.Pipeline.QueueSize,
		CacheTTL:     cfg.Pipeline.CacheTTL,
	})
	defer eng.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watcher != nil {
		go watcher.Run(ctx)
	}

	if snapshots, err := buildBackup(cfg); err != nil {
		log.Fatalf("Failed to configure backups: %v", err)
	} else if snapshots != nil {
		go snapshots.Run(ctx)
	}

	srv := server.New(eng, cfg)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		cancel()
	}()

	if err := srv.Start(ctx, nil); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// openBackend selects the index backend from the configuration.
func openBackend(cfg *config.Config) (index.Backend, error) {
	switch cfg.Storage.Engine {
	case "postgres":
		return postgres.Open(cfg.Storage.PostgresDSN, postgres.Options{
			VectorDim: cfg.Storage.VectorDim,
		})
	default:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, err
		}
		return sqlite.Open(filepath.Join(cfg.Storage.DataPath, "mindloom.db"))
	}
}

// buildBackup sets up the snapshot service for the sqlite engine. Returns
// nil when backups are disabled or the index lives in postgres.
func buildBackup(cfg *config.Config) (*backup.Service, error) {
	if !cfg.Backup.Enabled || cfg.Storage.Engine == "postgres" {
		return nil, nil
	}
	dir := cfg.Backup.Dir
	if dir == "" {
		dir = filepath.Join(cfg.Storage.DataPath, "backups")
	}
	return backup.New(backup.Options{
		DBPath:   filepath.Join(cfg.Storage.DataPath, "mindloom.db"),
		Dir:      dir,
		Interval: cfg.Backup.Interval,
		Verify:   cfg.Backup.Verify,
	})
}

// buildModels constructs the completion and embedding clients. The "none"
// provider disables both; the pipeline then runs its degraded paths.
func buildModels(cfg *config.Config) (llm.TextGenerator, llm.EmbeddingGenerator, error) {
	if cfg.LLM.Provider == "none" {
		log.Println("LLM provider disabled; running ontology-only pipeline")
		return nil, nil, nil
	}

	opts := llm.Options{
		Provider:          cfg.LLM.Provider,
		Timeout:           cfg.LLM.Timeout,
		RequestsPerSecond: float64(cfg.LLM.RequestsPerSecond),
	}
	switch cfg.LLM.Provider {
	case "openai":
		opts.APIKey = cfg.LLM.OpenAIAPIKey
		opts.Model = cfg.LLM.OpenAIModel
		opts.EmbeddingModel = cfg.LLM.OpenAIEmbeddingModel
	default:
		opts.BaseURL = cfg.LLM.OllamaURL
		opts.Model = cfg.LLM.OllamaModel
		opts.EmbeddingModel = cfg.LLM.OllamaEmbeddingModel
	}

	gen, err := llm.NewTextGenerator(opts)
	if err != nil {
		return nil, nil, err
	}
	embedder, err := llm.NewEmbeddingGenerator(opts)
	if err != nil {
		return nil, nil, err
	}
	return gen, embedder, nil
}

// loadCatalog loads the concept catalog, optionally with a file watcher that
// hot-reloads it on change.
func loadCatalog(cfg *config.Config) (*ontology.Store, *ontology.Watcher, error) {
	if cfg.Ontology.CatalogPath == "" {
		return ontology.NewStore(ontology.DefaultCatalog()), nil, nil
	}

	store := ontology.NewStore(nil)
	if !cfg.Ontology.Watch {
		cat, err := ontology.LoadFile(cfg.Ontology.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		store.Replace(cat)
		return store, nil, nil
	}

	watcher, err := ontology.NewWatcher(store, cfg.Ontology.CatalogPath)
	if err != nil {
		return nil, nil, err
	}
	return store, watcher, nil
}
