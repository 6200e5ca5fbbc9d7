// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is a brute-force cosine-similarity index. It is the reference
// implementation of the Index contract and the default backend for
// tests and small corpora. Vectors are assumed L2-normalized, so the
// dot product is the cosine similarity.
type Memory struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]memoryEntry
}

type memoryEntry struct {
	vector []float32
	meta   Metadata
}

// NewMemory creates an empty in-memory index. The dimension is fixed by
// the first upserted vector.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]memoryEntry)}
}

// Upsert inserts or replaces a vector.
func (m *Memory) Upsert(_ context.Context, chunkID string, vector []float32, meta Metadata) error {
	if chunkID == "" {
		return fmt.Errorf("upsert: empty chunk id")
	}
	if len(vector) == 0 {
		return fmt.Errorf("upsert %s: empty vector", chunkID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dimension == 0 {
		m.dimension = len(vector)
	} else if len(vector) != m.dimension {
		return fmt.Errorf("upsert %s: dimension %d, index has %d", chunkID, len(vector), m.dimension)
	}
	m.entries[chunkID] = memoryEntry{vector: vector, meta: meta}
	return nil
}

// Query scans all entries and returns the top k by dot product.
func (m *Memory) Query(_ context.Context, vector []float32, k int, filter *Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.entries))
	for id, e := range m.entries {
		if !filter.Matches(e.meta) {
			continue
		}
		hits = append(hits, Hit{ChunkID: id, Score: dot(e.vector, vector)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Delete removes a vector if present.
func (m *Memory) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, chunkID)
	return nil
}

// Len returns the number of stored vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
