// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/kraklabs/pke/pkg/index"
	"github.com/kraklabs/pke/pkg/model"
)

// SnapshotStore is the slice of the storage layer the pipeline needs:
// the current snapshot for embedding reuse, and an atomic commit.
type SnapshotStore interface {
	Current() *model.Snapshot
	Commit(ctx context.Context, snap *model.Snapshot) error
}

// PipelineConfig configures one ingestion run.
type PipelineConfig struct {
	// ParseWorkers bounds parse parallelism. Zero means NumCPU.
	ParseWorkers int

	// EmbedBatchSize and EmbedWorkers configure the embedding phase.
	EmbedBatchSize int
	EmbedWorkers   int

	Retry RetryConfig
}

// Pipeline orchestrates a full ingestion run: enumerate, parse, embed,
// build the graph, sync the vector index, and commit a new snapshot.
// Readers keep seeing the previous snapshot until the commit lands.
type Pipeline struct {
	registry *Registry
	embedder EmbeddingClient
	idx      index.Index
	store    SnapshotStore
	config   PipelineConfig
	logger   *slog.Logger
}

// NewPipeline assembles a pipeline from its collaborators.
func NewPipeline(registry *Registry, embedder EmbeddingClient, idx index.Index, store SnapshotStore, config PipelineConfig, logger *slog.Logger) *Pipeline {
	if config.ParseWorkers <= 0 {
		config.ParseWorkers = runtime.NumCPU()
	}
	if config.EmbedBatchSize <= 0 {
		config.EmbedBatchSize = 16
	}
	if config.EmbedWorkers <= 0 {
		config.EmbedWorkers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		registry: registry,
		embedder: embedder,
		idx:      idx,
		store:    store,
		config:   config,
		logger:   logger,
	}
}

// parsedFile is the output of parsing one corpus file.
type parsedFile struct {
	path   string
	chunks []*model.Chunk
	refs   []model.RawReference
	err    error
}

// Run executes one ingestion over the given source and commits the
// resulting snapshot. The returned report is also stored on the
// snapshot itself.
func (p *Pipeline) Run(ctx context.Context, source CorpusSource) (*model.RunReport, error) {
	start := time.Now()
	runID := p.generateRunID(start)
	p.logger.Info("ingestion.start", "source", source.Name(), "run_id", runID)

	files, err := source.Files(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.RunReport{SkipReasons: make(map[string]int)}
	if ds, ok := source.(*DirSource); ok {
		for reason, n := range ds.SkipReasons {
			report.SkipReasons[reason] += n
			report.FilesSkipped += n
		}
	}
	if gs, ok := source.(*GitSource); ok {
		for reason, n := range gs.SkipReasons() {
			report.SkipReasons[reason] += n
			report.FilesSkipped += n
		}
	}
	report.FilesSeen = len(files) + report.FilesSkipped

	p.logger.Info("ingestion.step.parse", "run_id", runID, "file_count", len(files))
	parseStart := time.Now()
	parsed := p.parseFiles(ctx, files)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var allChunks []*model.Chunk
	var refs []model.RawReference
	parseErrors := 0
	for _, pf := range parsed {
		if pf.err != nil {
			parseErrors++
			report.FilesSkipped++
			report.SkipReasons["parse_error"]++
			p.logger.Warn("ingestion.parse_file.error", "path", pf.path, "err", pf.err)
			continue
		}
		report.FilesProcessed++
		allChunks = append(allChunks, pf.chunks...)
		refs = append(refs, pf.refs...)
	}
	snap := model.NewSnapshot(source.Name(), allChunks)
	report.ChunksProduced = len(snap.Chunks)
	report.ParseDuration = time.Since(parseStart)
	recordParseDone(report.FilesProcessed, report.FilesSkipped, parseErrors, report.ChunksProduced, report.ParseDuration)
	p.logger.Info("ingestion.parse.complete",
		"run_id", runID,
		"files_processed", report.FilesProcessed,
		"files_skipped", report.FilesSkipped,
		"chunks", report.ChunksProduced,
		"duration_ms", report.ParseDuration.Milliseconds(),
	)

	if len(snap.Chunks) == 0 {
		return nil, &model.IngestionError{Source: source.Name(), Reason: "corpus produced no chunks"}
	}

	// Embeddings, reusing vectors from the live snapshot when content
	// is unchanged under the same model.
	p.logger.Info("ingestion.step.embed", "run_id", runID, "chunk_count", len(snap.Chunks))
	embedStart := time.Now()
	var prior map[string]model.EmbeddingRecord
	if cur := p.store.Current(); cur != nil {
		prior = cur.EmbeddingsByContentHash(p.embedder.ModelID())
	}
	gen := NewGenerator(p.embedder, p.config.EmbedBatchSize, p.config.EmbedWorkers, p.logger)
	gen.SetRetryConfig(p.config.Retry)
	embedRes, err := gen.EmbedChunks(ctx, SortedChunks(snap.Chunks), prior)
	if err != nil {
		return nil, err
	}
	snap.Embeddings = embedRes.Records
	report.EmbeddingsComputed = embedRes.Computed
	report.EmbeddingsReused = embedRes.Reused
	report.EmbeddingsMissing = embedRes.Missing
	report.EmbedDuration = time.Since(embedStart)
	recordEmbedDone(embedRes.Computed, embedRes.Reused, embedRes.Missing, report.EmbedDuration)
	p.logger.Info("ingestion.embed.complete",
		"run_id", runID,
		"computed", embedRes.Computed,
		"reused", embedRes.Reused,
		"missing", embedRes.Missing,
		"duration_ms", report.EmbedDuration.Milliseconds(),
	)

	// Knowledge graph.
	graphStart := time.Now()
	builder := NewGraphBuilder(snap.Chunks)
	snap.Edges = builder.Build(snap.Chunks, refs)
	resolved := 0
	for _, e := range snap.Edges {
		if e.Resolved() {
			resolved++
		}
	}
	report.EdgesProduced = len(snap.Edges)
	report.EdgesResolved = resolved
	graphDur := time.Since(graphStart)
	recordGraphDone(report.EdgesProduced, resolved, graphDur)
	p.logger.Info("ingestion.graph.complete",
		"run_id", runID,
		"edges", report.EdgesProduced,
		"resolved", resolved,
		"duration_ms", graphDur.Milliseconds(),
	)

	snap.Report = *report
	snap.Finalize()

	// Vector index sync before the snapshot swap so a query against
	// the new revision never misses vectors.
	if err := p.syncIndex(ctx, snap); err != nil {
		return nil, fmt.Errorf("sync vector index: %w", err)
	}

	if err := p.store.Commit(ctx, snap); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}

	report.TotalDuration = time.Since(start)
	snap.Report.TotalDuration = report.TotalDuration
	recordRunDone(report.TotalDuration)
	p.logger.Info("ingestion.complete",
		"run_id", runID,
		"revision", snap.Revision,
		"chunks", report.ChunksProduced,
		"edges", report.EdgesProduced,
		"duration_ms", report.TotalDuration.Milliseconds(),
	)
	return report, nil
}

// parseFiles routes files to chunkers with a bounded worker pool.
// Output order matches input order.
func (p *Pipeline) parseFiles(ctx context.Context, files []CorpusFile) []parsedFile {
	out := make([]parsedFile, len(files))
	jobs := make(chan int, len(files))
	var wg sync.WaitGroup
	workers := p.config.ParseWorkers
	if workers > len(files) {
		workers = len(files)
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				f := files[i]
				out[i] = p.parseOne(f)
			}
		}()
	}
	for i := range files {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return out
}

func (p *Pipeline) parseOne(f CorpusFile) parsedFile {
	chunker := p.registry.For(f.Language)
	if chunker == nil {
		return parsedFile{path: f.Path, err: fmt.Errorf("no chunker for language %q", f.Language)}
	}
	res, err := chunker.Parse(f.Path, f.Content)
	if err != nil {
		return parsedFile{path: f.Path, err: err}
	}
	return parsedFile{path: f.Path, chunks: res.Chunks, refs: res.Refs}
}

// syncIndex upserts every embedded chunk and removes entries for
// chunks that existed in the previous snapshot but not this one.
func (p *Pipeline) syncIndex(ctx context.Context, snap *model.Snapshot) error {
	for _, c := range SortedChunks(snap.Chunks) {
		rec, ok := snap.Embeddings[c.ID]
		if !ok {
			continue
		}
		meta := index.Metadata{Kind: c.Kind, SourcePath: c.SourcePath, Language: c.Language}
		if err := p.idx.Upsert(ctx, c.ID, rec.Vector, meta); err != nil {
			return err
		}
	}

	cur := p.store.Current()
	if cur == nil {
		return nil
	}
	var stale []string
	for id := range cur.Chunks {
		if _, ok := snap.Chunks[id]; !ok {
			stale = append(stale, id)
		}
	}
	for _, id := range stale {
		if err := p.idx.Delete(ctx, id); err != nil {
			// Stale vectors are filtered at query time against the
			// live snapshot, so a failed delete degrades space, not
			// answers.
			if errors.Is(err, model.ErrIndexUnavailable) {
				return err
			}
			p.logger.Warn("ingestion.index.delete_stale.failed", "chunk_id", id, "err", err)
		}
	}
	return nil
}

func (p *Pipeline) generateRunID(startTime time.Time) string {
	h := sha256.Sum256([]byte(startTime.Format(time.RFC3339Nano)))
	return "run:" + hex.EncodeToString(h[:])[:12]
}
