// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kraklabs/pke/internal/config"
	"github.com/kraklabs/pke/pkg/index"
	"github.com/kraklabs/pke/pkg/ingestion"
	"github.com/kraklabs/pke/pkg/storage"
)

// ProjectConfig holds configuration for initializing a project.
type ProjectConfig struct {
	// ProjectID is the logical project identifier.
	// Defaults to the base name of ProjectRoot.
	ProjectID string

	// ProjectRoot is the directory the .pke directory lives in.
	// Defaults to the current working directory.
	ProjectRoot string

	// Force overwrites an existing project.yaml with defaults.
	Force bool
}

// ProjectInfo holds information about an initialized project.
type ProjectInfo struct {
	ProjectID  string
	ConfigPath string
	DataPath   string
	Created    bool
}

// InitProject initializes a new PKE project under ProjectRoot.
// This function is idempotent: calling it multiple times is safe.
//
// The function:
//  1. Creates the .pke directory if it doesn't exist
//  2. Writes a default project.yaml unless one exists (or Force is set)
//  3. Opens the snapshot database once so its schema is created
func InitProject(cfg ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.ProjectRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working dir: %w", err)
		}
		cfg.ProjectRoot = cwd
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = filepath.Base(cfg.ProjectRoot)
	}

	configPath := config.Path(cfg.ProjectRoot)
	dataPath := config.DataPath(cfg.ProjectRoot)

	logger.Info("bootstrap.project.init.start",
		"project_id", cfg.ProjectID,
		"config_path", configPath,
	)

	created := false
	if _, err := os.Stat(configPath); os.IsNotExist(err) || cfg.Force {
		if err := config.Save(configPath, config.Default(cfg.ProjectID, cfg.ProjectRoot)); err != nil {
			return nil, fmt.Errorf("write default config: %w", err)
		}
		created = true
	} else if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	// Opening the store creates the schema.
	store, err := storage.Open(context.Background(), dataPath, logger)
	if err != nil {
		return nil, fmt.Errorf("create snapshot database: %w", err)
	}
	if err := store.Close(); err != nil {
		return nil, fmt.Errorf("close snapshot database: %w", err)
	}

	logger.Info("bootstrap.project.init.success",
		"project_id", cfg.ProjectID,
		"data_path", dataPath,
	)

	return &ProjectInfo{
		ProjectID:  cfg.ProjectID,
		ConfigPath: configPath,
		DataPath:   dataPath,
		Created:    created,
	}, nil
}

// Project bundles the loaded configuration and the open snapshot store
// for one PKE project.
type Project struct {
	Root   string
	Config *config.Config
	Store  *storage.Store
}

// OpenProject opens an existing PKE project rooted at projectRoot.
func OpenProject(ctx context.Context, projectRoot string, logger *slog.Logger) (*Project, error) {
	if logger == nil {
		logger = slog.Default()
	}

	configPath := config.Path(projectRoot)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("project not found: %s (run 'pke init' first)", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, config.DataPath(projectRoot), logger)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	logger.Debug("bootstrap.project.open",
		"project_id", cfg.ProjectID,
		"root", projectRoot,
	)

	return &Project{Root: projectRoot, Config: cfg, Store: store}, nil
}

// Close releases the project's snapshot store.
func (p *Project) Close() error {
	return p.Store.Close()
}

// BuildEmbedder constructs the embedding client selected by the
// configuration. The openai provider reads its API key from the
// environment variable named by embedding.api_key_env.
func BuildEmbedder(cfg *config.Config, logger *slog.Logger) (ingestion.EmbeddingClient, error) {
	switch cfg.Embedding.Provider {
	case "mock":
		dim := cfg.Embedding.Dimension
		if dim <= 0 {
			dim = 256
		}
		return ingestion.NewMockEmbeddingClient(dim), nil
	case "openai":
		keyEnv := cfg.Embedding.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		apiKey := os.Getenv(keyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("embedding API key not set: export %s", keyEnv)
		}
		return ingestion.NewOpenAIEmbeddingClient(apiKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

// BuildIndex constructs the vector index selected by the configuration.
// For qdrant the collection is created if missing.
func BuildIndex(ctx context.Context, cfg *config.Config) (index.Index, error) {
	switch cfg.Index.Backend {
	case "memory":
		return index.NewMemory(), nil
	case "qdrant":
		collection := cfg.Index.Collection
		if collection == "" {
			collection = cfg.ProjectID
		}
		q := index.NewQdrant(index.QdrantConfig{
			URL:        cfg.Index.QdrantURL,
			Collection: collection,
		})
		dim := cfg.Embedding.Dimension
		if dim <= 0 {
			dim = 256
		}
		if err := q.Init(ctx, dim); err != nil {
			return nil, fmt.Errorf("init qdrant collection %s: %w", collection, err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

// RehydrateIndex loads the current snapshot's embeddings into idx.
// The memory backend starts empty on every process start, so query
// commands call this before searching. It is a no-op without a
// committed snapshot.
func (p *Project) RehydrateIndex(ctx context.Context, idx index.Index) error {
	snap := p.Store.Current()
	if snap == nil {
		return nil
	}
	for _, id := range snap.ChunkIDs() {
		rec, ok := snap.Embeddings[id]
		if !ok {
			continue
		}
		chunk := snap.Chunks[id]
		meta := index.Metadata{
			Kind:       chunk.Kind,
			SourcePath: chunk.SourcePath,
			Language:   chunk.Language,
		}
		if err := idx.Upsert(ctx, id, rec.Vector, meta); err != nil {
			return fmt.Errorf("rehydrate index: %w", err)
		}
	}
	return nil
}
