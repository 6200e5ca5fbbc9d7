// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/kraklabs/pke/pkg/model"
)

// PythonChunker parses Python source with tree-sitter. Python is the
// reference language for the chunker contract: module root, classes,
// functions, methods, nested definitions, docstrings, decorators,
// call and import capture.
type PythonChunker struct{}

// NewPythonChunker creates a Python chunker.
func NewPythonChunker() *PythonChunker {
	return &PythonChunker{}
}

// Language returns "python".
func (c *PythonChunker) Language() string { return "python" }

// Parse decomposes Python source into a chunk forest. It fails with a
// ParseError when the source is not valid Python; tree-sitter itself is
// error-tolerant, so validity is judged from the error nodes it leaves
// in the tree.
func (c *PythonChunker) Parse(path string, source []byte) (*ParseResult, error) {
	// tree-sitter parsers are not safe for concurrent use; each call
	// gets its own so files can be parsed in parallel.
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &model.ParseError{Path: path, Language: "python", Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &model.ParseError{Path: path, Language: "python"}
	}

	b := newChunkBuilder(path, "python", source)
	module := b.addModule()
	module.Docstring = c.docstring(root, b)

	res := &ParseResult{}
	c.walkBody(root, module, false, b, res)
	res.Chunks = b.chunks
	return res, nil
}

// walkBody walks the statements under n, attributing calls and imports
// to owner and emitting nested definitions as child chunks.
func (c *PythonChunker) walkBody(n *sitter.Node, owner *model.Chunk, ownerIsClass bool, b *chunkBuilder, res *ParseResult) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "function_definition":
			c.emitFunction(child, child, owner, ownerIsClass, b, res)

		case "class_definition":
			c.emitClass(child, child, owner, b, res)

		case "decorated_definition":
			def := child.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			// The chunk span covers the decorators too.
			switch def.Type() {
			case "function_definition":
				c.emitFunction(def, child, owner, ownerIsClass, b, res)
			case "class_definition":
				c.emitClass(def, child, owner, b, res)
			}

		case "import_statement", "import_from_statement":
			res.Refs = append(res.Refs, c.importRefs(child, owner, b)...)

		case "call":
			c.recordCall(child, owner, b, res)
			// Arguments may hold further calls.
			c.walkBody(child, owner, ownerIsClass, b, res)

		default:
			c.walkBody(child, owner, ownerIsClass, b, res)
		}
	}
}

// emitFunction creates a function or method chunk from def. spanNode is
// the decorated_definition when decorators are present, so the span
// includes them.
func (c *PythonChunker) emitFunction(def, spanNode *sitter.Node, parent *model.Chunk, parentIsClass bool, b *chunkBuilder, res *ParseResult) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)

	kind := model.KindFunction
	if parentIsClass {
		kind = model.KindMethod
	}

	chunk := b.add(kind, name, nodeSpan(spanNode), parent.ID)
	chunk.Signature = c.functionSignature(def, b)
	chunk.Docstring = c.docstring(def.ChildByFieldName("body"), b)

	if body := def.ChildByFieldName("body"); body != nil {
		// Nested defs inside a function are plain functions, not methods.
		c.walkBody(body, chunk, false, b, res)
	}
}

// emitClass creates a class chunk, emits references for its bases and
// walks the body with the class as parent.
func (c *PythonChunker) emitClass(def, spanNode *sitter.Node, parent *model.Chunk, b *chunkBuilder, res *ParseResult) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)

	chunk := b.add(model.KindClass, name, nodeSpan(spanNode), parent.ID)
	chunk.Signature = c.classSignature(def, b)
	chunk.Docstring = c.docstring(def.ChildByFieldName("body"), b)

	if supers := def.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			base := supers.NamedChild(i)
			if base.Type() == "identifier" || base.Type() == "attribute" {
				res.Refs = append(res.Refs, model.RawReference{
					Kind:       model.EdgeReferences,
					SourceID:   chunk.ID,
					SourcePath: b.path,
					Name:       b.text(base),
					ArgCount:   -1,
				})
			}
		}
	}

	if body := def.ChildByFieldName("body"); body != nil {
		c.walkBody(body, chunk, true, b, res)
	}
}

func (c *PythonChunker) recordCall(call *sitter.Node, owner *model.Chunk, b *chunkBuilder, res *ParseResult) {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		return
	}
	if fn.Type() != "identifier" && fn.Type() != "attribute" {
		return
	}

	argCount := 0
	if args := call.ChildByFieldName("arguments"); args != nil {
		argCount = int(args.NamedChildCount())
	}

	res.Refs = append(res.Refs, model.RawReference{
		Kind:       model.EdgeCalls,
		SourceID:   owner.ID,
		SourcePath: b.path,
		Name:       b.text(fn),
		ArgCount:   argCount,
	})
}

// importRefs extracts raw import references from an import statement.
func (c *PythonChunker) importRefs(stmt *sitter.Node, owner *model.Chunk, b *chunkBuilder) []model.RawReference {
	var refs []model.RawReference

	appendRef := func(module, alias string) {
		if module == "" {
			return
		}
		refs = append(refs, model.RawReference{
			Kind:       model.EdgeImports,
			SourceID:   owner.ID,
			SourcePath: b.path,
			Name:       module,
			Alias:      alias,
			ArgCount:   -1,
		})
	}

	switch stmt.Type() {
	case "import_statement":
		// import a.b, c as d
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			child := stmt.NamedChild(i)
			switch child.Type() {
			case "dotted_name":
				appendRef(b.text(child), "")
			case "aliased_import":
				name := child.ChildByFieldName("name")
				alias := child.ChildByFieldName("alias")
				if name != nil {
					aliasText := ""
					if alias != nil {
						aliasText = b.text(alias)
					}
					appendRef(b.text(name), aliasText)
				}
			}
		}

	case "import_from_statement":
		// from a.b import c, d as e — recorded as one import of the
		// module plus aliases for each imported name.
		moduleNode := stmt.ChildByFieldName("module_name")
		if moduleNode == nil {
			return refs
		}
		module := b.text(moduleNode)
		imported := false
		for i := 0; i < int(stmt.NamedChildCount()); i++ {
			child := stmt.NamedChild(i)
			if child == moduleNode {
				continue
			}
			switch child.Type() {
			case "dotted_name", "identifier":
				appendRef(module, b.text(child))
				imported = true
			case "aliased_import":
				alias := child.ChildByFieldName("alias")
				if alias != nil {
					appendRef(module, b.text(alias))
					imported = true
				}
			case "wildcard_import":
				appendRef(module, "*")
				imported = true
			}
		}
		if !imported {
			appendRef(module, "")
		}
	}

	return refs
}

func (c *PythonChunker) functionSignature(def *sitter.Node, b *chunkBuilder) string {
	var sb strings.Builder
	sb.WriteString("def ")
	if name := def.ChildByFieldName("name"); name != nil {
		sb.WriteString(b.text(name))
	}
	if params := def.ChildByFieldName("parameters"); params != nil {
		sb.WriteString(b.text(params))
	} else {
		sb.WriteString("()")
	}
	if ret := def.ChildByFieldName("return_type"); ret != nil {
		sb.WriteString(" -> ")
		sb.WriteString(b.text(ret))
	}
	return sb.String()
}

func (c *PythonChunker) classSignature(def *sitter.Node, b *chunkBuilder) string {
	var sb strings.Builder
	sb.WriteString("class ")
	if name := def.ChildByFieldName("name"); name != nil {
		sb.WriteString(b.text(name))
	}
	if supers := def.ChildByFieldName("superclasses"); supers != nil {
		sb.WriteString(b.text(supers))
	}
	return sb.String()
}

// docstring returns the conventional docstring of a block: a string
// expression as the first statement. Works for module roots and for
// function/class bodies.
func (c *PythonChunker) docstring(body *sitter.Node, b *chunkBuilder) string {
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first.Type() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str.Type() != "string" {
		return ""
	}
	return stripPythonString(b.text(str))
}

// stripPythonString removes quotes and common prefixes from a string
// literal and trims surrounding whitespace.
func stripPythonString(s string) string {
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, "'''", `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return strings.TrimSpace(s[len(q) : len(s)-len(q)])
		}
	}
	return strings.TrimSpace(s)
}
