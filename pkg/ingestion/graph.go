// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"sort"
	"strings"

	"github.com/kraklabs/pke/pkg/model"
)

// Confidence tiers for resolved references. Same-file matches are
// near-certain, imported-module matches are strong, corpus-wide
// unique-name matches are a guess worth keeping.
const (
	ConfidenceSameFile = 0.9
	ConfidenceImported = 0.7
	ConfidenceCorpus   = 0.4
)

// GraphBuilder turns a chunk forest plus raw references into the edge
// set of a snapshot. Building is a pure function of its inputs: the
// same chunks and references always produce the same edges.
type GraphBuilder struct {
	// byFile: source path -> name -> chunk IDs defined in that file.
	byFile map[string]map[string][]string

	// byName: name -> chunk IDs across the whole corpus.
	byName map[string][]string

	// moduleByFile: source path -> module chunk ID.
	moduleByFile map[string]string

	// importsByFile: source path -> set of imported module names and
	// aliases, each mapped to the bare module name.
	importsByFile map[string]map[string]string
}

// NewGraphBuilder indexes the chunk forest for resolution.
func NewGraphBuilder(chunks map[string]*model.Chunk) *GraphBuilder {
	b := &GraphBuilder{
		byFile:        make(map[string]map[string][]string),
		byName:        make(map[string][]string),
		moduleByFile:  make(map[string]string),
		importsByFile: make(map[string]map[string]string),
	}
	for _, c := range chunks {
		if c.Kind == model.KindModule {
			b.moduleByFile[c.SourcePath] = c.ID
		}
		if c.Name == "" {
			continue
		}
		if b.byFile[c.SourcePath] == nil {
			b.byFile[c.SourcePath] = make(map[string][]string)
		}
		b.byFile[c.SourcePath][c.Name] = append(b.byFile[c.SourcePath][c.Name], c.ID)
		b.byName[c.Name] = append(b.byName[c.Name], c.ID)
	}
	// Map returns IDs in hash order; sort for determinism.
	for _, names := range b.byFile {
		for _, ids := range names {
			sort.Strings(ids)
		}
	}
	for _, ids := range b.byName {
		sort.Strings(ids)
	}
	return b
}

// Build produces the full edge set: containment edges from parent
// links, then call, import and reference edges resolved from refs.
// Unresolvable references are kept with an empty target ID so queries
// can still surface "calls something named X".
func (b *GraphBuilder) Build(chunks map[string]*model.Chunk, refs []model.RawReference) []model.Edge {
	var edges []model.Edge

	// Containment comes only from the parse forest, never from name
	// resolution.
	for _, c := range chunks {
		if c.ParentID == "" {
			continue
		}
		if _, ok := chunks[c.ParentID]; !ok {
			continue
		}
		edges = append(edges, model.Edge{
			Kind:       model.EdgeContains,
			SourceID:   c.ParentID,
			TargetID:   c.ID,
			Confidence: 1.0,
		})
	}

	// First pass over imports so call resolution can consult them.
	for _, ref := range refs {
		if ref.Kind != model.EdgeImports {
			continue
		}
		if b.importsByFile[ref.SourcePath] == nil {
			b.importsByFile[ref.SourcePath] = make(map[string]string)
		}
		name := moduleBase(ref.Name)
		b.importsByFile[ref.SourcePath][name] = ref.Name
		if ref.Alias != "" {
			b.importsByFile[ref.SourcePath][ref.Alias] = ref.Name
		}
	}

	for _, ref := range refs {
		edges = append(edges, b.resolve(ref))
	}

	return dedupeEdges(edges)
}

// resolve maps one raw reference to an edge, choosing the best
// confidence tier available.
func (b *GraphBuilder) resolve(ref model.RawReference) model.Edge {
	edge := model.Edge{
		Kind:       ref.Kind,
		SourceID:   ref.SourceID,
		TargetName: ref.Name,
	}

	// Import references target the imported file's module chunk
	// directly; imports of modules outside the corpus stay unresolved.
	if ref.Kind == model.EdgeImports {
		if id, ok := b.resolveImportModule(ref.Name); ok {
			edge.TargetID = id
			edge.Confidence = ConfidenceImported
		}
		return edge
	}

	name := ref.Name
	// Qualified references resolve by their last component; the
	// qualifier narrows the search to the imported module's file.
	qualifier, last := splitQualified(name)

	// Tier 1: a definition in the same file.
	if ids := b.byFile[ref.SourcePath][last]; len(ids) > 0 && qualifier == "" {
		edge.TargetID = ids[0]
		edge.Confidence = ConfidenceSameFile
		return edge
	}

	// Tier 2: a definition in a module this file imports. The
	// qualifier (or the bare name for from-imports) must match an
	// import of the referencing file.
	if target, ok := b.resolveViaImports(ref.SourcePath, qualifier, last); ok {
		edge.TargetID = target
		edge.Confidence = ConfidenceImported
		return edge
	}

	// Tier 3: a unique definition anywhere in the corpus.
	if ids := b.byName[last]; len(ids) == 1 {
		edge.TargetID = ids[0]
		edge.Confidence = ConfidenceCorpus
		return edge
	}

	// Unresolved: keep the name, no target.
	return edge
}

// resolveImportModule finds the module chunk of the corpus file whose
// importable name matches the import path's base.
func (b *GraphBuilder) resolveImportModule(importPath string) (string, bool) {
	base := moduleBase(importPath)
	var paths []string
	for path := range b.moduleByFile {
		if fileModuleName(path) == base {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		return "", false
	}
	sort.Strings(paths)
	return b.moduleByFile[paths[0]], true
}

// resolveViaImports looks the name up in files whose module name (or
// alias) the referencing file imported.
func (b *GraphBuilder) resolveViaImports(sourcePath, qualifier, name string) (string, bool) {
	imports := b.importsByFile[sourcePath]
	if len(imports) == 0 {
		return "", false
	}

	// Imported files are candidate definition sites. Collect their
	// paths in sorted order so resolution is deterministic.
	var wanted []string
	if qualifier != "" {
		mod, ok := imports[qualifier]
		if !ok {
			return "", false
		}
		wanted = []string{moduleBase(mod)}
	} else {
		for alias := range imports {
			wanted = append(wanted, moduleBase(imports[alias]))
		}
		sort.Strings(wanted)
	}

	var paths []string
	for path := range b.byFile {
		base := fileModuleName(path)
		for _, w := range wanted {
			if base == w {
				paths = append(paths, path)
				break
			}
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		if path == sourcePath {
			continue
		}
		if ids := b.byFile[path][name]; len(ids) > 0 {
			return ids[0], true
		}
	}
	return "", false
}

// splitQualified splits "pkg.Name" into ("pkg", "Name"). Deeper
// qualifications keep only the first and last components.
func splitQualified(name string) (qualifier, last string) {
	idx := strings.LastIndex(name, ".")
	if idx < 0 {
		return "", name
	}
	first := name
	if i := strings.Index(name, "."); i >= 0 {
		first = name[:i]
	}
	return first, name[idx+1:]
}

// moduleBase returns the last dotted or slashed component of a module
// path: "a.b.c" -> "c", "github.com/x/yaml" -> "yaml".
func moduleBase(mod string) string {
	if i := strings.LastIndexAny(mod, "./"); i >= 0 {
		return mod[i+1:]
	}
	return mod
}

// fileModuleName derives the importable module name of a source file
// from its path: "pkg/util/strings.py" -> "strings".
func fileModuleName(path string) string {
	base := path
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}
	return base
}

// dedupeEdges removes exact duplicates and returns a deterministic
// ordering. When the same (kind, source, target, name) appears with
// different confidences the highest wins.
func dedupeEdges(edges []model.Edge) []model.Edge {
	type key struct {
		kind       model.EdgeKind
		sourceID   string
		targetID   string
		targetName string
	}
	best := make(map[key]model.Edge, len(edges))
	for _, e := range edges {
		k := key{e.Kind, e.SourceID, e.TargetID, e.TargetName}
		if prev, ok := best[k]; !ok || e.Confidence > prev.Confidence {
			best[k] = e
		}
	}
	out := make([]model.Edge, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.TargetID != b.TargetID {
			return a.TargetID < b.TargetID
		}
		return a.TargetName < b.TargetName
	})
	return out
}
