// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package testing

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/kraklabs/pke/pkg/model"
	"github.com/kraklabs/pke/pkg/storage"
)

// SetupTestStore creates a snapshot store backed by a SQLite database
// in a temporary directory. The store is closed when the test finishes.
func SetupTestStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.Open(context.Background(), filepath.Join(t.TempDir(), "snapshot.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// NewTestChunk builds a chunk with a content-derived ID, suitable for
// seeding snapshots in tests. The content is synthesized from the name.
func NewTestChunk(sourcePath, name string, kind model.ChunkKind) *model.Chunk {
	content := fmt.Sprintf("def %s(): pass", name)
	span := model.Span{StartLine: 1, EndLine: 1, StartByte: 0, EndByte: len(content)}
	return &model.Chunk{
		ID:         model.ChunkID(sourcePath, span, content),
		Kind:       kind,
		SourcePath: sourcePath,
		Span:       span,
		Name:       name,
		Content:    content,
		Language:   "python",
	}
}

// NewTestSnapshot builds a finalized snapshot over the given chunks
// with a mock embedding for each. Attach edges before calling Finalize
// yourself if a test needs graph structure:
//
//	snap := testing.NewTestSnapshot("dir:/corpus", a, b)
func NewTestSnapshot(source string, chunks ...*model.Chunk) *model.Snapshot {
	snap := model.NewSnapshot(source, chunks)
	for _, c := range chunks {
		snap.Embeddings[c.ID] = model.EmbeddingRecord{
			ChunkID:     c.ID,
			Vector:      testVector(c.ID),
			ModelID:     "mock-embed",
			ContentHash: model.ContentHash(c.Content),
			CreatedAt:   time.Now().UTC(),
		}
	}
	snap.Finalize()
	return snap
}

// testVector derives a small deterministic vector from an ID so tests
// get distinct but reproducible embeddings.
func testVector(id string) []float32 {
	vec := make([]float32, 8)
	var h uint64 = 5381
	for _, b := range []byte(id) {
		h = h*33 + uint64(b)
	}
	for i := range vec {
		vec[i] = float32((h>>(i*8))&0xff)/255.0 - 0.5
	}
	return vec
}
