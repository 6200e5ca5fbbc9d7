// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package ingestion

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/kraklabs/pke/pkg/model"
)

// GoChunker parses Go source with tree-sitter. Functions and methods
// sit directly under the file's module chunk (their lexical container);
// struct and interface declarations map to class chunks.
type GoChunker struct{}

// NewGoChunker creates a Go chunker.
func NewGoChunker() *GoChunker {
	return &GoChunker{}
}

// Language returns "go".
func (c *GoChunker) Language() string { return "go" }

// Parse decomposes Go source into a chunk forest.
func (c *GoChunker) Parse(path string, source []byte) (*ParseResult, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, &model.ParseError{Path: path, Language: "go", Err: err}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, &model.ParseError{Path: path, Language: "go"}
	}

	b := newChunkBuilder(path, "go", source)
	module := b.addModule()

	res := &ParseResult{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		switch child.Type() {
		case "function_declaration":
			c.emitFunction(child, module, false, b, res)
		case "method_declaration":
			c.emitFunction(child, module, true, b, res)
		case "type_declaration":
			c.emitTypes(child, module, b)
		case "import_declaration":
			res.Refs = append(res.Refs, c.importRefs(child, module, b)...)
		}
	}

	res.Chunks = b.chunks
	return res, nil
}

// emitFunction creates a function or method chunk, folding an adjacent
// doc comment block into the span.
func (c *GoChunker) emitFunction(decl *sitter.Node, module *model.Chunk, isMethod bool, b *chunkBuilder, res *ParseResult) {
	nameNode := decl.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := b.text(nameNode)

	kind := model.KindFunction
	if isMethod {
		kind = model.KindMethod
	}

	span := nodeSpan(decl)
	doc, docStart := c.docComment(decl, b)
	if docStart != nil {
		span = spanBetween(docStart, decl)
	}

	chunk := b.add(kind, name, span, module.ID)
	chunk.Signature = c.functionSignature(decl, b)
	chunk.Docstring = doc

	if isMethod {
		if recvType := receiverTypeName(decl, b); recvType != "" {
			res.Refs = append(res.Refs, model.RawReference{
				Kind:       model.EdgeReferences,
				SourceID:   chunk.ID,
				SourcePath: b.path,
				Name:       recvType,
				ArgCount:   -1,
			})
		}
	}

	if body := decl.ChildByFieldName("body"); body != nil {
		c.collectCalls(body, chunk, b, res)
	}
}

// emitTypes creates class chunks for struct and interface specs inside
// one type declaration.
func (c *GoChunker) emitTypes(decl *sitter.Node, module *model.Chunk, b *chunkBuilder) {
	doc, docStart := c.docComment(decl, b)

	specCount := 0
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if decl.NamedChild(i).Type() == "type_spec" {
			specCount++
		}
	}

	for i := 0; i < int(decl.NamedChildCount()); i++ {
		spec := decl.NamedChild(i)
		if spec.Type() != "type_spec" {
			continue
		}
		nameNode := spec.ChildByFieldName("name")
		typeNode := spec.ChildByFieldName("type")
		if nameNode == nil || typeNode == nil {
			continue
		}

		var typeWord string
		switch typeNode.Type() {
		case "struct_type":
			typeWord = "struct"
		case "interface_type":
			typeWord = "interface"
		default:
			continue
		}

		// In a grouped declaration each spec spans its own extent so
		// sibling types never share a span or an id. A lone spec keeps
		// the full declaration and its doc comment.
		span := nodeSpan(spec)
		chunkDoc := ""
		if specCount == 1 {
			span = nodeSpan(decl)
			if docStart != nil {
				span = spanBetween(docStart, decl)
			}
			chunkDoc = doc
		}

		chunk := b.add(model.KindClass, b.text(nameNode), span, module.ID)
		chunk.Signature = "type " + b.text(nameNode) + " " + typeWord
		chunk.Docstring = chunkDoc
	}
}

// collectCalls records call expressions inside a function body.
// Function literals stay attributed to the enclosing declaration.
func (c *GoChunker) collectCalls(n *sitter.Node, owner *model.Chunk, b *chunkBuilder, res *ParseResult) {
	if n.Type() == "call_expression" {
		if fn := n.ChildByFieldName("function"); fn != nil {
			if fn.Type() == "identifier" || fn.Type() == "selector_expression" {
				argCount := 0
				if args := n.ChildByFieldName("arguments"); args != nil {
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
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c.collectCalls(n.NamedChild(i), owner, b, res)
	}
}

// importRefs extracts import paths and aliases from an import
// declaration. The default alias is the last path component.
func (c *GoChunker) importRefs(decl *sitter.Node, module *model.Chunk, b *chunkBuilder) []model.RawReference {
	var refs []model.RawReference

	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if n.Type() == "import_spec" {
			pathNode := n.ChildByFieldName("path")
			if pathNode == nil {
				return
			}
			importPath := strings.Trim(b.text(pathNode), `"`)
			alias := ""
			if nameNode := n.ChildByFieldName("name"); nameNode != nil {
				alias = b.text(nameNode)
			}
			if alias == "_" {
				return
			}
			refs = append(refs, model.RawReference{
				Kind:       model.EdgeImports,
				SourceID:   module.ID,
				SourcePath: b.path,
				Name:       importPath,
				Alias:      alias,
				ArgCount:   -1,
			})
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			visit(n.NamedChild(i))
		}
	}
	visit(decl)
	return refs
}

func (c *GoChunker) functionSignature(decl *sitter.Node, b *chunkBuilder) string {
	var sb strings.Builder
	sb.WriteString("func ")
	if recv := decl.ChildByFieldName("receiver"); recv != nil {
		sb.WriteString(b.text(recv))
		sb.WriteString(" ")
	}
	if name := decl.ChildByFieldName("name"); name != nil {
		sb.WriteString(b.text(name))
	}
	if tp := decl.ChildByFieldName("type_parameters"); tp != nil {
		sb.WriteString(b.text(tp))
	}
	if params := decl.ChildByFieldName("parameters"); params != nil {
		sb.WriteString(b.text(params))
	}
	if result := decl.ChildByFieldName("result"); result != nil {
		sb.WriteString(" ")
		sb.WriteString(b.text(result))
	}
	return sb.String()
}

// docComment returns the text of the contiguous comment block directly
// above decl and the first comment node of that block, or nil when the
// declaration has no adjacent doc comment.
func (c *GoChunker) docComment(decl *sitter.Node, b *chunkBuilder) (string, *sitter.Node) {
	var first *sitter.Node
	var lines []string

	expectRow := int(decl.StartPoint().Row) - 1
	for prev := decl.PrevNamedSibling(); prev != nil; prev = prev.PrevNamedSibling() {
		if prev.Type() != "comment" {
			break
		}
		endRow := int(prev.EndPoint().Row)
		if endRow != expectRow {
			break
		}
		first = prev
		text := strings.TrimSpace(strings.TrimPrefix(b.text(prev), "//"))
		lines = append([]string{text}, lines...)
		expectRow = int(prev.StartPoint().Row) - 1
	}

	if first == nil {
		return "", nil
	}
	return strings.Join(lines, "\n"), first
}

func receiverTypeName(decl *sitter.Node, b *chunkBuilder) string {
	recv := decl.ChildByFieldName("receiver")
	if recv == nil || recv.NamedChildCount() == 0 {
		return ""
	}
	param := recv.NamedChild(0)
	typeNode := param.ChildByFieldName("type")
	if typeNode == nil {
		return ""
	}
	return strings.TrimPrefix(b.text(typeNode), "*")
}
