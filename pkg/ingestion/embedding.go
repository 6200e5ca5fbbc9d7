// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kraklabs/pke/pkg/model"
)

// EmbeddingClient turns chunk text into vectors.
type EmbeddingClient interface {
	// ModelID identifies the embedding model. Stored on every record
	// so cached vectors from another model are never reused.
	ModelID() string

	// Embed returns one normalized vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// MockEmbeddingClient generates deterministic embeddings for testing.
// Same text always yields the same unit vector.
type MockEmbeddingClient struct {
	dimension int
}

// NewMockEmbeddingClient creates a mock client with the given dimension.
func NewMockEmbeddingClient(dimension int) *MockEmbeddingClient {
	return &MockEmbeddingClient{dimension: dimension}
}

// ModelID returns a fixed mock identifier.
func (m *MockEmbeddingClient) ModelID() string { return "mock-embed" }

// Embed generates hash-seeded pseudo-random unit vectors.
func (m *MockEmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		hash := hashString(text)
		vec := make([]float32, m.dimension)
		for j := 0; j < m.dimension; j++ {
			val := float32((hash+uint64(j)*7919)%10000) / 10000.0
			vec[j] = val*2.0 - 1.0
		}
		out[i] = normalizeEmbedding(vec)
	}
	return out, nil
}

func hashString(s string) uint64 {
	var hash uint64 = 5381
	for _, c := range s {
		hash = ((hash << 5) + hash) + uint64(c)
	}
	return hash
}

// normalizeEmbedding scales a vector to unit length (L2 norm = 1).
func normalizeEmbedding(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	normf := float32(norm)
	for i := range vec {
		vec[i] /= normf
	}
	return vec
}

// RetryConfig controls retry behavior for embedding calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// EmbedResult reports the outcome of an embedding pass.
type EmbedResult struct {
	// Records maps chunk ID to its embedding record. Chunks whose
	// batch failed permanently are absent.
	Records map[string]model.EmbeddingRecord

	Computed int
	Reused   int
	Missing  int
}

// Generator computes embeddings for chunks in parallel batches with
// retry. Failed batches are logged and skipped; the run continues.
type Generator struct {
	client    EmbeddingClient
	batchSize int
	workers   int
	retry     RetryConfig
	logger    *slog.Logger
}

// NewGenerator creates an embedding generator.
func NewGenerator(client EmbeddingClient, batchSize, workers int, logger *slog.Logger) *Generator {
	if batchSize <= 0 {
		batchSize = 16
	}
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		client:    client,
		batchSize: batchSize,
		workers:   workers,
		retry:     DefaultRetryConfig(),
		logger:    logger,
	}
}

// SetRetryConfig overrides the retry policy. Zero values fall back to
// the defaults to avoid busy loops.
func (g *Generator) SetRetryConfig(cfg RetryConfig) {
	def := DefaultRetryConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.Multiplier <= 1.0 {
		cfg.Multiplier = def.Multiplier
	}
	g.retry = cfg
}

// EmbedChunks embeds all chunks, reusing vectors from prior when the
// content hash and model ID match. prior may be nil.
func (g *Generator) EmbedChunks(ctx context.Context, chunks []*model.Chunk, prior map[string]model.EmbeddingRecord) (*EmbedResult, error) {
	result := &EmbedResult{Records: make(map[string]model.EmbeddingRecord, len(chunks))}
	modelID := g.client.ModelID()

	// Reuse pass: unchanged content keeps its vector even when the
	// chunk ID moved with the file.
	var pending []*model.Chunk
	for _, c := range chunks {
		hash := model.ContentHash(c.Content)
		if rec, ok := prior[hash]; ok && rec.ModelID == modelID {
			result.Records[c.ID] = model.EmbeddingRecord{
				ChunkID:     c.ID,
				Vector:      rec.Vector,
				ModelID:     rec.ModelID,
				ContentHash: hash,
				CreatedAt:   rec.CreatedAt,
			}
			result.Reused++
			continue
		}
		pending = append(pending, c)
	}

	if len(pending) == 0 {
		return result, nil
	}

	batches := make([][]*model.Chunk, 0, (len(pending)+g.batchSize-1)/g.batchSize)
	for start := 0; start < len(pending); start += g.batchSize {
		end := start + g.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batches = append(batches, pending[start:end])
	}

	var (
		mu       sync.Mutex
		computed int32
		missing  int32
	)
	jobs := make(chan int, len(batches))
	var wg sync.WaitGroup
	for w := 0; w < g.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for bi := range jobs {
				if ctx.Err() != nil {
					return
				}
				batch := batches[bi]
				vectors, err := g.embedBatch(ctx, bi, batch)
				if err != nil {
					atomic.AddInt32(&missing, int32(len(batch)))
					g.logger.Error("embedding.batch.failed", "batch", bi, "chunks", len(batch), "err", err)
					continue
				}
				now := time.Now().UTC()
				mu.Lock()
				for i, c := range batch {
					result.Records[c.ID] = model.EmbeddingRecord{
						ChunkID:     c.ID,
						Vector:      vectors[i],
						ModelID:     modelID,
						ContentHash: model.ContentHash(c.Content),
						CreatedAt:   now,
					}
				}
				mu.Unlock()
				atomic.AddInt32(&computed, int32(len(batch)))
			}
		}()
	}
	for i := range batches {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result.Computed = int(computed)
	result.Missing = int(missing)
	if result.Missing > 0 {
		g.logger.Warn("embedding.summary.partial",
			"computed", result.Computed,
			"reused", result.Reused,
			"missing", result.Missing,
		)
	}
	return result, nil
}

// embedBatch embeds one batch with classified retry and jittered
// exponential backoff.
func (g *Generator) embedBatch(ctx context.Context, batchIdx int, batch []*model.Chunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = embeddingText(c)
	}

	var vectors [][]float32
	var err error
	for attempt := 0; attempt < g.retry.MaxRetries; attempt++ {
		vectors, err = g.client.Embed(ctx, texts)
		if err == nil {
			if len(vectors) != len(texts) {
				return nil, &model.EmbeddingServiceError{
					Batch: batchIdx,
					Err:   fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(vectors)),
				}
			}
			return vectors, nil
		}
		if !isRetryableEmbeddingError(err) || attempt == g.retry.MaxRetries-1 {
			break
		}
		sleep := computeBackoffWithJitter(g.retry.InitialBackoff, attempt, g.retry.Multiplier, g.retry.MaxBackoff)
		recordEmbedRetry()
		g.logger.Warn("embedding.batch.retry", "batch", batchIdx, "attempt", attempt+1, "sleep_ms", sleep.Milliseconds(), "err", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, &model.EmbeddingServiceError{Batch: batchIdx, Err: err}
}

// embeddingText builds the text sent to the model: signature and
// docstring give the vector more semantic signal than raw content
// alone.
func embeddingText(c *model.Chunk) string {
	var sb strings.Builder
	if c.Signature != "" {
		sb.WriteString(c.Signature)
		sb.WriteString("\n")
	}
	if c.Docstring != "" {
		sb.WriteString(c.Docstring)
		sb.WriteString("\n")
	}
	sb.WriteString(c.Content)
	text := sb.String()
	// Embedding models have token limits and code tokenizes poorly.
	const maxChars = 8000
	if len(text) > maxChars {
		text = text[:maxChars]
	}
	return text
}

// isRetryableEmbeddingError classifies provider errors: network and
// timeout failures plus HTTP 429/5xx are retryable.
func isRetryableEmbeddingError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "temporarily unavailable", "connection refused", "connection reset", "deadline exceeded", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	for _, s := range []string{"status 429", "status 500", "status 502", "status 503", "status 504"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// computeBackoffWithJitter returns exponential backoff with full jitter.
func computeBackoffWithJitter(base time.Duration, attempt int, mult float64, capDur time.Duration) time.Duration {
	exp := float64(base)
	for i := 0; i < attempt; i++ {
		exp *= mult
	}
	d := time.Duration(exp)
	if d > capDur {
		d = capDur
	}
	if d <= 0 {
		return base
	}
	return time.Duration(randInt63n(int64(d) + 1))
}

var (
	randMu   sync.Mutex
	randSeed int64
)

func randInt63n(n int64) int64 {
	if n <= 0 {
		return 0
	}
	randMu.Lock()
	defer randMu.Unlock()
	const a = 6364136223846793005
	const c = 1
	const m = 1<<63 - 1
	if randSeed == 0 {
		randSeed = time.Now().UnixNano() & m
	}
	randSeed = (a*randSeed + c) & m
	if randSeed < 0 {
		randSeed = -randSeed
	}
	return randSeed % n
}

// SortedChunks returns chunks ordered by source path then start byte.
// Deterministic ordering keeps batch composition stable across runs.
func SortedChunks(chunks map[string]*model.Chunk) []*model.Chunk {
	out := make([]*model.Chunk, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourcePath != out[j].SourcePath {
			return out[i].SourcePath < out[j].SourcePath
		}
		if out[i].Span.StartByte != out[j].Span.StartByte {
			return out[i].Span.StartByte < out[j].Span.StartByte
		}
		return out[i].ID < out[j].ID
	})
	return out
}
