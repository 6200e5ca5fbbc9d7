// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/pke/pkg/model"
)

// qdrantNamespace seeds deterministic point UUIDs. Qdrant only accepts
// UUID or integer point IDs, so chunk IDs are mapped through a v5 UUID.
var qdrantNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Qdrant is a minimal REST client implementing the Index contract
// against a Qdrant collection using cosine distance.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	client     *http.Client
}

// QdrantConfig holds connection parameters for a Qdrant collection.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewQdrant creates a Qdrant-backed index. Call Init once to ensure the
// collection exists before upserting.
func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Qdrant{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init creates the collection if it does not exist. Qdrant returns 200
// for an existing collection with the same schema.
func (q *Qdrant) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("qdrant init: invalid dimension %d", dimension)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
}

// Upsert writes one point with the chunk ID and metadata as payload.
func (q *Qdrant) Upsert(ctx context.Context, chunkID string, vector []float32, meta Metadata) error {
	if chunkID == "" {
		return fmt.Errorf("qdrant upsert: empty chunk id")
	}
	body := map[string]any{
		"points": []map[string]any{{
			"id":     pointID(chunkID),
			"vector": vector,
			"payload": map[string]any{
				"chunk_id":    chunkID,
				"kind":        string(meta.Kind),
				"source_path": meta.SourcePath,
				"language":    meta.Language,
			},
		}},
	}
	return q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points?wait=true", q.collection), body, nil)
}

// Query runs a nearest-neighbor search, filtering by kind server-side.
func (q *Qdrant) Query(ctx context.Context, vector []float32, k int, filter *Filter) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if filter != nil && len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, kd := range filter.Kinds {
			kinds[i] = string(kd)
		}
		req["filter"] = map[string]any{
			"must": []map[string]any{{
				"key":   "kind",
				"match": map[string]any{"any": kinds},
			}},
		}
	}

	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection), req, &resp)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload["chunk_id"].(string)
		if id == "" {
			continue
		}
		hits = append(hits, Hit{ChunkID: id, Score: r.Score})
	}
	// Qdrant orders by score but ties are backend-dependent; enforce the
	// contract's chunk-ID tie-break here.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	return hits, nil
}

// Delete removes a point by its derived UUID.
func (q *Qdrant) Delete(ctx context.Context, chunkID string) error {
	body := map[string]any{
		"points": []string{pointID(chunkID)},
	}
	return q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete?wait=true", q.collection), body, nil)
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(qdrantNamespace, []byte(chunkID)).String()
}

func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: encode: %w", method, path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		// Connection-level failures surface as IndexUnavailable so
		// retrieval fails closed instead of returning empty results.
		return fmt.Errorf("%w: %v", model.ErrIndexUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("qdrant %s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("qdrant %s %s: decode: %w", method, path, err)
		}
	}
	return nil
}
