// Package decl classifies C/C++ code statements and #define directives into
// model declarations using the tree-sitter grammar.
package decl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/headerdoc/internal/comment"
	"github.com/phobologic/headerdoc/internal/lang"
	"github.com/phobologic/headerdoc/internal/model"
)

// ErrUnrecognized is returned for statements that match no known shape.
var ErrUnrecognized = errors.New("unrecognized declaration")

var (
	commentRe  = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
	storageRe  = regexp.MustCompile(`\b(static|extern|inline|__inline|__inline__|register|auto|typedef|_Noreturn)\b`)
	starRe     = regexp.MustCompile(`\s*\*\s*`)
	starWordRe = regexp.MustCompile(`\*([A-Za-z_])`)
	bracketRe  = regexp.MustCompile(`\s*\[\s*`)
)

var storageWords = map[string]bool{
	"static": true, "extern": true, "inline": true, "__inline": true,
	"__inline__": true, "register": true, "auto": true,
}

// Parser classifies statements for one language. Not safe for concurrent use.
type Parser struct {
	parser *sitter.Parser
}

// NewParser returns a Parser for l.
func NewParser(l *lang.Language) *Parser {
	return &Parser{parser: l.NewParser()}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	p.parser.Close()
}

// ParseStatement classifies one statement. Ranges in the returned
// declarations are relative to the start of src. Anonymous enums yield one
// enum_constant declaration per enumerator; everything else yields one
// declaration.
func (p *Parser) ParseStatement(ctx context.Context, src string) ([]*model.Declaration, error) {
	source := []byte(src)
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parsing statement: %w", err)
	}
	defer tree.Close()

	node := firstItem(tree.RootNode())
	if node == nil {
		return nil, ErrUnrecognized
	}
	if node.Type() == "linkage_specification" {
		body := node.ChildByFieldName("body")
		if body == nil || body.Type() == "declaration_list" {
			return nil, ErrUnrecognized
		}
		node = body
	}
	if node.HasError() {
		return nil, fmt.Errorf("%w: syntax error in %q", ErrUnrecognized, summary(src))
	}

	w := &walker{src: source}
	var decls []*model.Declaration
	switch node.Type() {
	case "declaration":
		decls = w.declaration(node, false)
	case "function_definition":
		decls = w.declaration(node, true)
	case "type_definition":
		decls = w.typedef(node)
	case "struct_specifier", "union_specifier", "enum_specifier":
		decls = w.specifier(node)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnrecognized, summary(src))
	}
	return decls, nil
}

func summary(src string) string {
	s := lang.CollapseWhitespace(commentRe.ReplaceAllString(src, " "))
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

// firstItem returns the first top-level named node that is not a comment.
func firstItem(root *sitter.Node) *sitter.Node {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() != "comment" {
			return child
		}
	}
	return nil
}

type walker struct {
	src []byte
}

func (w *walker) text(n *sitter.Node) string {
	return lang.NodeText(n, w.src)
}

func (w *walker) slice(from, to uint32) string {
	if to < from {
		return ""
	}
	return string(w.src[from:to])
}

func (w *walker) rangeOf(n *sitter.Node) model.Range {
	sp, ep := n.StartPoint(), n.EndPoint()
	return model.Range{
		Start: model.Position{Line: int(sp.Row) + 1, Column: int(sp.Column) + 1, Offset: int(n.StartByte())},
		End:   model.Position{Line: int(ep.Row) + 1, Column: int(ep.Column) + 1, Offset: int(n.EndByte())},
	}
}

func sameNode(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

var declaratorTypes = map[string]bool{
	"identifier":               true,
	"field_identifier":         true,
	"type_identifier":          true,
	"pointer_declarator":       true,
	"function_declarator":      true,
	"array_declarator":         true,
	"init_declarator":          true,
	"parenthesized_declarator": true,
	"attributed_declarator":    true,
}

// declarators returns the declarator children of a declaration-like node.
func declarators(n *sitter.Node) []*sitter.Node {
	typ := n.ChildByFieldName("type")
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if sameNode(child, typ) || !declaratorTypes[child.Type()] {
			continue
		}
		out = append(out, child)
	}
	return out
}

// innermostName returns the identifier a declarator ultimately declares.
func innermostName(n *sitter.Node) *sitter.Node {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier", "field_identifier", "type_identifier":
		return n
	}
	if inner := n.ChildByFieldName("declarator"); inner != nil {
		return innermostName(inner)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if name := innermostName(n.NamedChild(i)); name != nil {
			return name
		}
	}
	return nil
}

// functionDeclarator finds the function_declarator directly reachable
// through pointer declarators, counting the stars that belong to the
// return type.
func functionDeclarator(n *sitter.Node) (*sitter.Node, int) {
	stars := 0
	for n != nil {
		switch n.Type() {
		case "function_declarator":
			return n, stars
		case "pointer_declarator":
			stars++
			n = n.ChildByFieldName("declarator")
		case "attributed_declarator":
			n = n.NamedChild(0)
		default:
			return nil, 0
		}
	}
	return nil, 0
}

// NormalizeType collapses whitespace and attaches pointer stars to the type,
// so "char *", "char*" and "char  *" all read "char*".
func NormalizeType(s string) string {
	s = commentRe.ReplaceAllString(s, " ")
	s = lang.CollapseWhitespace(s)
	s = starRe.ReplaceAllString(s, "*")
	s = starWordRe.ReplaceAllString(s, "* $1")
	s = bracketRe.ReplaceAllString(s, "[")
	return strings.TrimSpace(s)
}

func stripStorage(s string) string {
	return storageRe.ReplaceAllString(commentRe.ReplaceAllString(s, " "), " ")
}

func (w *walker) storage(n *sitter.Node) []string {
	var out []string
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		if child.Type() != "storage_class_specifier" {
			continue
		}
		word := strings.TrimSpace(w.text(child))
		if storageWords[word] {
			out = append(out, word)
		}
	}
	return out
}

// declaration handles prototypes, inline definitions and declarations whose
// type carries a struct/union/enum body.
func (w *walker) declaration(n *sitter.Node, hasBody bool) []*model.Declaration {
	var decls []*model.Declaration
	var dl []*sitter.Node
	if hasBody {
		if d := n.ChildByFieldName("declarator"); d != nil {
			dl = []*sitter.Node{d}
		}
	} else {
		dl = declarators(n)
	}

	for _, d := range dl {
		fd, _ := functionDeclarator(d)
		if fd == nil {
			continue
		}
		nameNode := fd.ChildByFieldName("declarator")
		if nameNode == nil || nameNode.Type() != "identifier" {
			// function pointer variable, not a function
			continue
		}
		fn := w.params(fd.ChildByFieldName("parameters"))
		fn.ReturnType = NormalizeType(stripStorage(w.slice(n.StartByte(), nameNode.StartByte())))
		fn.HasBody = hasBody
		fn.Storage = w.storage(n)
		decls = append(decls, &model.Declaration{
			Kind:     model.KindFunction,
			Name:     w.text(nameNode),
			Range:    w.rangeOf(n),
			Function: fn,
		})
	}
	if len(decls) == 0 && !hasBody {
		if typ := n.ChildByFieldName("type"); typ != nil {
			switch typ.Type() {
			case "struct_specifier", "union_specifier", "enum_specifier":
				if typ.ChildByFieldName("body") != nil {
					return w.specifier(typ)
				}
			}
		}
	}
	return decls
}

// params parses a parameter_list. Comments are attached to the parameter
// they trail (before the next comma) or else to the one they precede.
func (w *walker) params(list *sitter.Node) *model.Function {
	fn := &model.Function{}
	if list == nil {
		return fn
	}
	var pending []string
	last := -1
	commaSince := true
	for i := 0; i < int(list.ChildCount()); i++ {
		child := list.Child(i)
		switch child.Type() {
		case ",":
			commaSince = true
		case "comment":
			text := commentText(w.text(child))
			if text == "" {
				continue
			}
			if last >= 0 && !commaSince {
				fn.Params[last].Comment = joinComment(fn.Params[last].Comment, text)
			} else {
				pending = append(pending, text)
			}
		case "variadic_parameter", "...":
			fn.Variadic = true
		case "parameter_declaration", "optional_parameter_declaration":
			p := w.param(child)
			if p.Name == "" && p.Type == "void" {
				continue
			}
			p.Comment = strings.Join(pending, "; ")
			pending = nil
			fn.Params = append(fn.Params, p)
			last = len(fn.Params) - 1
			commaSince = false
		}
	}
	return fn
}

func (w *walker) param(n *sitter.Node) model.Param {
	decl := n.ChildByFieldName("declarator")
	name := innermostName(decl)
	if name == nil || name.Type() != "identifier" {
		return model.Param{Type: NormalizeType(w.text(n))}
	}
	typ := w.slice(n.StartByte(), name.StartByte()) + w.slice(name.EndByte(), n.EndByte())
	return model.Param{Name: w.text(name), Type: NormalizeType(typ)}
}

func commentText(raw string) string {
	switch {
	case strings.HasPrefix(raw, "//"):
		raw = strings.TrimPrefix(raw, "//")
	case strings.HasPrefix(raw, "/*"):
		raw = strings.TrimSuffix(strings.TrimPrefix(raw, "/*"), "*/")
		raw = strings.Trim(raw, "*<! ")
	}
	return lang.CollapseWhitespace(raw)
}

func joinComment(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// typedef handles every typedef shape.
func (w *walker) typedef(n *sitter.Node) []*model.Declaration {
	typ := n.ChildByFieldName("type")
	var decls []*model.Declaration
	for _, d := range declarators(n) {
		td := &model.Typedef{Underlying: model.TypedefScalar}
		if fd, stars := functionDeclarator(d); fd != nil {
			if inner := fd.ChildByFieldName("declarator"); inner != nil && inner.Type() == "parenthesized_declarator" {
				name := innermostName(inner)
				if name == nil {
					continue
				}
				sig := w.params(fd.ChildByFieldName("parameters"))
				sig.ReturnType = NormalizeType(stripStorage(w.slice(n.StartByte(), d.StartByte())) + strings.Repeat("*", stars))
				td.Underlying = model.TypedefFunctionPointer
				td.Signature = sig
				td.Type = NormalizeType(stripStorage(w.slice(n.StartByte(), name.StartByte()) + w.slice(name.EndByte(), d.EndByte())))
				decls = append(decls, &model.Declaration{
					Kind:    model.KindTypedef,
					Name:    w.text(name),
					Range:   w.rangeOf(n),
					Typedef: td,
				})
				continue
			}
		}

		name := innermostName(d)
		if name == nil {
			continue
		}
		if typ != nil {
			switch typ.Type() {
			case "struct_specifier", "union_specifier", "enum_specifier":
				w.fillTagged(td, typ)
			}
		}
		if td.Record != nil || td.Enum != nil {
			td.Type = strings.TrimSpace(string(td.Underlying) + " " + td.TagName)
			if ptr := NormalizeType(w.slice(d.StartByte(), name.StartByte())); ptr != "" {
				td.Type += ptr
			}
		} else {
			td.Type = NormalizeType(stripStorage(w.slice(n.StartByte(), name.StartByte()) + w.slice(name.EndByte(), d.EndByte())))
		}
		decls = append(decls, &model.Declaration{
			Kind:    model.KindTypedef,
			Name:    w.text(name),
			Range:   w.rangeOf(n),
			Typedef: td,
		})
	}
	return decls
}

func (w *walker) fillTagged(td *model.Typedef, spec *sitter.Node) {
	switch spec.Type() {
	case "struct_specifier":
		td.Underlying = model.TypedefStruct
	case "union_specifier":
		td.Underlying = model.TypedefUnion
	case "enum_specifier":
		td.Underlying = model.TypedefEnum
	}
	if name := spec.ChildByFieldName("name"); name != nil {
		td.TagName = w.text(name)
	}
	body := spec.ChildByFieldName("body")
	if body == nil {
		return
	}
	if spec.Type() == "enum_specifier" {
		td.Enum = w.enumBody(body)
	} else {
		td.Record = w.recordBody(body)
	}
}

// specifier handles a top-level struct/union/enum with or without a body.
func (w *walker) specifier(n *sitter.Node) []*model.Declaration {
	var name string
	if nn := n.ChildByFieldName("name"); nn != nil {
		name = w.text(nn)
	}
	body := n.ChildByFieldName("body")

	switch n.Type() {
	case "enum_specifier":
		if body == nil {
			if name == "" {
				return nil
			}
			return []*model.Declaration{{Kind: model.KindEnum, Name: name, Range: w.rangeOf(n), Enum: &model.Enum{}}}
		}
		enum := w.enumBody(body)
		if name != "" {
			return []*model.Declaration{{Kind: model.KindEnum, Name: name, Range: w.rangeOf(n), Enum: enum}}
		}
		var decls []*model.Declaration
		for i := range enum.Constants {
			c := enum.Constants[i]
			decls = append(decls, &model.Declaration{
				Kind:     model.KindEnumConstant,
				Name:     c.Name,
				Range:    w.rangeOf(n),
				Doc:      c.Doc,
				Constant: &c,
			})
		}
		return decls

	default:
		if name == "" {
			// anonymous struct/union at top level declares nothing addressable
			return nil
		}
		kind := model.KindStruct
		if n.Type() == "union_specifier" {
			kind = model.KindUnion
		}
		d := &model.Declaration{Kind: kind, Name: name, Range: w.rangeOf(n)}
		if body != nil {
			d.Record = w.recordBody(body)
		}
		return []*model.Declaration{d}
	}
}

// memberDocs tracks /** */ and /**< */ comments inside a body so they can be
// attached to the member they document.
type memberDocs struct {
	pending *model.DocComment
}

// take returns the pending leading doc, if any.
func (m *memberDocs) take() *model.DocComment {
	d := m.pending
	m.pending = nil
	return d
}

func (w *walker) enumBody(body *sitter.Node) *model.Enum {
	enum := &model.Enum{}
	known := make(map[string]int64)
	var docs memberDocs
	var next int64
	nextKnown := true

	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "comment":
			raw := w.text(child)
			if !strings.HasPrefix(raw, "/**") {
				continue
			}
			if comment.IsMemberDoc(raw) {
				if n := len(enum.Constants); n > 0 && enum.Constants[n-1].Doc == nil {
					enum.Constants[n-1].Doc = comment.Parse(raw)
				}
				continue
			}
			docs.pending = comment.Parse(raw)
		case "enumerator":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			c := model.EnumConstant{Name: w.text(nameNode), Doc: docs.take()}
			if val := child.ChildByFieldName("value"); val != nil {
				c.Expr = lang.CollapseWhitespace(w.text(val))
				c.Value, c.HasValue = EvalConst(c.Expr, known)
			} else {
				c.Value, c.HasValue = next, nextKnown
			}
			if c.HasValue {
				known[c.Name] = c.Value
				next = c.Value + 1
			}
			nextKnown = c.HasValue
			enum.Constants = append(enum.Constants, c)
		}
	}
	return enum
}

func (w *walker) recordBody(body *sitter.Node) *model.Record {
	rec := &model.Record{}
	var docs memberDocs
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		switch child.Type() {
		case "comment":
			raw := w.text(child)
			if !strings.HasPrefix(raw, "/**") {
				continue
			}
			if comment.IsMemberDoc(raw) {
				if n := len(rec.Fields); n > 0 && rec.Fields[n-1].Doc == nil {
					rec.Fields[n-1].Doc = comment.Parse(raw)
				}
				continue
			}
			docs.pending = comment.Parse(raw)
		case "field_declaration":
			fields := w.fields(child)
			if len(fields) > 0 {
				fields[0].Doc = docs.take()
			}
			rec.Fields = append(rec.Fields, fields...)
		}
	}
	return rec
}

func (w *walker) fields(n *sitter.Node) []model.Field {
	typ := n.ChildByFieldName("type")
	var nested *model.Record
	var nestedKind model.DeclKind
	var tagged string
	if typ != nil && (typ.Type() == "struct_specifier" || typ.Type() == "union_specifier") {
		if body := typ.ChildByFieldName("body"); body != nil {
			nested = w.recordBody(body)
			nestedKind = model.KindStruct
			tagged = "struct"
			if typ.Type() == "union_specifier" {
				nestedKind = model.KindUnion
				tagged = "union"
			}
			if nn := typ.ChildByFieldName("name"); nn != nil {
				tagged += " " + w.text(nn)
			}
		}
	}

	dl := declarators(n)
	if len(dl) == 0 {
		if nested == nil {
			return nil
		}
		return []model.Field{{Type: tagged, Nested: nested, NestedKind: nestedKind}}
	}

	base := strings.TrimRight(w.slice(n.StartByte(), dl[0].StartByte()), " \t\r\n,")
	var out []model.Field
	for _, d := range dl {
		name := innermostName(d)
		if name == nil {
			continue
		}
		f := model.Field{Name: w.text(name), Nested: nested, NestedKind: nestedKind}
		if nested != nil {
			f.Type = tagged + NormalizeType(w.slice(d.StartByte(), name.StartByte())+w.slice(name.EndByte(), d.EndByte()))
		} else {
			f.Type = NormalizeType(base + " " + w.slice(d.StartByte(), name.StartByte()) + w.slice(name.EndByte(), d.EndByte()))
		}
		out = append(out, f)
	}
	return out
}
