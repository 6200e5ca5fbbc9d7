// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package model

// EdgeKind classifies a relationship between two chunks.
type EdgeKind string

const (
	// EdgeContains links a parent chunk to a direct child. Contains
	// edges are derived exclusively from the chunk forest; no other
	// mechanism produces them.
	EdgeContains EdgeKind = "contains"

	// EdgeCalls links a caller chunk to a callee.
	EdgeCalls EdgeKind = "calls"

	// EdgeImports links a module chunk to an imported module.
	EdgeImports EdgeKind = "imports"

	// EdgeReferences links a chunk to a name it mentions without
	// calling or importing it.
	EdgeReferences EdgeKind = "references"
)

// Edge is a directed typed relationship between two chunks in the
// knowledge graph.
type Edge struct {
	Kind     EdgeKind `json:"kind"`
	SourceID string   `json:"source_id"`

	// TargetID is empty when static resolution failed. Unresolved edges
	// are retained so the raw name still contributes a textual signal.
	TargetID string `json:"target_id,omitempty"`

	// TargetName is the raw referenced name as written in the source.
	TargetName string `json:"target_name,omitempty"`

	// Confidence grades how the target was resolved: 1.0 for contains
	// edges, lower for heuristic call resolution tiers.
	Confidence float64 `json:"confidence"`
}

// Resolved reports whether the edge points at a concrete chunk.
func (e Edge) Resolved() bool {
	return e.TargetID != ""
}

// RawReference is an unresolved call or import emitted by a chunker.
// The Knowledge Graph Builder turns raw references into edges.
type RawReference struct {
	// Kind is EdgeCalls, EdgeImports or EdgeReferences.
	Kind EdgeKind

	// SourceID is the chunk the reference occurs in.
	SourceID string

	// SourcePath is that chunk's source file, used for same-file and
	// import-scoped resolution.
	SourcePath string

	// Name is the referenced name: a callee (possibly dotted) or an
	// imported module path.
	Name string

	// Alias is the local name an import is bound to, when the source
	// declares one.
	Alias string

	// ArgCount is the number of call arguments, -1 when not a call.
	ArgCount int
}
