// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads and saves the .pke/project.yaml project
// configuration used by the PKE CLI.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ConfigDirName is the per-project directory holding configuration and data.
const ConfigDirName = ".pke"

// ConfigFileName is the project configuration file inside ConfigDirName.
const ConfigFileName = "project.yaml"

// DataFileName is the snapshot database file inside ConfigDirName.
const DataFileName = "snapshot.db"

// SourceConfig describes the corpus to ingest.
type SourceConfig struct {
	// Root is the corpus root directory, relative paths resolve
	// against the project root.
	Root string `yaml:"root"`

	// ExcludeGlobs are base-name glob patterns skipped during the walk.
	ExcludeGlobs []string `yaml:"exclude_globs,omitempty"`

	// MaxFileSizeBytes skips files larger than this. Zero uses the
	// ingestion default.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes,omitempty"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "mock".
	Provider string `yaml:"provider"`

	// Model is the embedding model identifier.
	Model string `yaml:"model,omitempty"`

	// BaseURL overrides the provider endpoint, e.g. for an
	// OpenAI-compatible local server.
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// BatchSize is the number of texts per embedding request.
	BatchSize int `yaml:"batch_size,omitempty"`

	// Workers is the number of parallel embedding workers.
	Workers int `yaml:"workers,omitempty"`

	// Dimension is the vector size, used by the mock provider and
	// for index collection creation.
	Dimension int `yaml:"dimension,omitempty"`
}

// IndexConfig selects the vector index backend.
type IndexConfig struct {
	// Backend is "memory" or "qdrant".
	Backend string `yaml:"backend"`

	// QdrantURL is the Qdrant HTTP endpoint when Backend is "qdrant".
	QdrantURL string `yaml:"qdrant_url,omitempty"`

	// Collection is the Qdrant collection name. Defaults to the
	// project ID.
	Collection string `yaml:"collection,omitempty"`
}

// RetrievalConfig tunes fusion ranking.
type RetrievalConfig struct {
	// Alpha weights the vector similarity component.
	Alpha float64 `yaml:"alpha,omitempty"`

	// Beta weights the graph proximity component.
	Beta float64 `yaml:"beta,omitempty"`

	// ExpandFactor multiplies k for the over-fetch before fusion.
	ExpandFactor int `yaml:"expand_factor,omitempty"`

	// MaxRelated caps related chunks attached per result.
	MaxRelated int `yaml:"max_related,omitempty"`
}

// Config is the parsed .pke/project.yaml.
type Config struct {
	ProjectID string          `yaml:"project_id"`
	Source    SourceConfig    `yaml:"source"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
}

// Dir returns the .pke directory under the project root.
func Dir(projectRoot string) string {
	return filepath.Join(projectRoot, ConfigDirName)
}

// Path returns the project.yaml path under the project root.
func Path(projectRoot string) string {
	return filepath.Join(Dir(projectRoot), ConfigFileName)
}

// DataPath returns the snapshot database path under the project root.
func DataPath(projectRoot string) string {
	return filepath.Join(Dir(projectRoot), DataFileName)
}

// Default returns a configuration with sensible defaults for a new
// project rooted at projectRoot.
func Default(projectID, projectRoot string) *Config {
	return &Config{
		ProjectID: projectID,
		Source: SourceConfig{
			Root:         ".",
			ExcludeGlobs: []string{"*_test.py", "*.min.js"},
		},
		Embedding: EmbeddingConfig{
			Provider:  "mock",
			Model:     "text-embedding-3-small",
			APIKeyEnv: "OPENAI_API_KEY",
			BatchSize: 16,
			Workers:   4,
			Dimension: 256,
		},
		Index: IndexConfig{
			Backend: "memory",
		},
		Retrieval: RetrievalConfig{
			Alpha:        0.7,
			Beta:         0.3,
			ExpandFactor: 3,
			MaxRelated:   4,
		},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path, creating parent directories.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Validate checks required fields and enum values.
func (c *Config) Validate() error {
	if c.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if c.Source.Root == "" {
		return fmt.Errorf("source.root is required")
	}

	switch c.Embedding.Provider {
	case "openai", "mock":
	case "":
		return fmt.Errorf("embedding.provider is required")
	default:
		return fmt.Errorf("unknown embedding provider %q (want openai or mock)", c.Embedding.Provider)
	}

	switch c.Index.Backend {
	case "memory", "qdrant":
	case "":
		return fmt.Errorf("index.backend is required")
	default:
		return fmt.Errorf("unknown index backend %q (want memory or qdrant)", c.Index.Backend)
	}
	if c.Index.Backend == "qdrant" && c.Index.QdrantURL == "" {
		return fmt.Errorf("index.qdrant_url is required when index.backend is qdrant")
	}

	if c.Retrieval.Alpha < 0 || c.Retrieval.Beta < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	return nil
}
