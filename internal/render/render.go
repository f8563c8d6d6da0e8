package render

import (
	"strconv"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/symtab"
)

// Options controls visibility. Hidden declarations stay in the model.
type Options struct {
	ShowInternal bool
	ShowExcluded bool
}

// calloutTags lists call-out tags in render order.
var calloutTags = []struct {
	tag  model.TagKind
	kind CalloutKind
}{
	{model.TagDeprecated, CalloutDeprecated},
	{model.TagNote, CalloutNote},
	{model.TagWarning, CalloutWarning},
	{model.TagTodo, CalloutTodo},
	{model.TagBug, CalloutBug},
	{model.TagSince, CalloutSince},
	{model.TagPre, CalloutPre},
	{model.TagPost, CalloutPost},
}

var assetTags = []model.TagKind{model.TagImage, model.TagInclude, model.TagSnippet, model.TagExample}

type builder struct {
	table *symtab.Table
	opts  Options
}

// Build renders the resolved table. Documents come out as pages, then
// groups, then the "other" bucket (omitted when empty), each in insertion
// order.
func Build(table *symtab.Table, opts Options) []Document {
	b := &builder{table: table, opts: opts}
	var docs []Document
	for _, p := range table.Pages() {
		if !b.visible(p) {
			continue
		}
		title := p.Page.Title
		if title == "" {
			title = p.Page.ID
		}
		docs = append(docs, b.document(p, DocPage, title, nil))
	}
	for _, g := range table.Groups() {
		if !b.visible(g) {
			continue
		}
		title := g.Group.Title
		if title == "" {
			title = g.Group.ID
		}
		docs = append(docs, b.document(g, DocGroup, title, table.Members(g.Name)))
	}
	other := Document{ID: symtab.OtherID, Kind: DocOther, Title: "Other"}
	other.Sections = b.sections(table.Ungrouped())
	if len(other.Sections) > 0 {
		docs = append(docs, other)
	}
	return docs
}

func (b *builder) visible(d *model.Declaration) bool {
	if d.Internal() && !b.opts.ShowInternal {
		return false
	}
	if d.Excluded && !b.opts.ShowExcluded {
		return false
	}
	return true
}

func (b *builder) document(d *model.Declaration, kind DocKind, title string, members []*model.Declaration) Document {
	doc := Document{ID: d.Name, Kind: kind, Title: title}
	if d.Doc != nil {
		doc.Brief = b.prose(d.Doc.Brief)
		doc.Detailed = b.blocks(d.Doc.Detailed)
		doc.Callouts = b.callouts(d)
		doc.Assets = assets(d.Doc)
		doc.SeeAlso = b.seeAlso(d.Doc)
	}
	doc.Sections = b.sections(members)
	return doc
}

func sectionOf(d *model.Declaration) (SectionKind, bool) {
	switch d.Kind {
	case model.KindMacro:
		return SectionMacros, true
	case model.KindTypedef:
		if t := d.Typedef; t != nil {
			switch {
			case t.Record != nil:
				return SectionRecords, true
			case t.Enum != nil:
				return SectionEnums, true
			}
		}
		return SectionTypedefs, true
	case model.KindEnum, model.KindEnumConstant:
		return SectionEnums, true
	case model.KindStruct, model.KindUnion:
		return SectionRecords, true
	case model.KindFunction:
		return SectionFuncs, true
	}
	return "", false
}

func (b *builder) sections(decls []*model.Declaration) []Section {
	byKind := make(map[SectionKind][]Entry)
	for _, d := range decls {
		if !b.visible(d) {
			continue
		}
		kind, ok := sectionOf(d)
		if !ok {
			continue
		}
		byKind[kind] = append(byKind[kind], b.entry(d))
	}
	var out []Section
	for _, s := range sectionOrder {
		if entries := byKind[s.kind]; len(entries) > 0 {
			out = append(out, Section{Kind: s.kind, Title: s.title, Entries: entries})
		}
	}
	return out
}

func (b *builder) entry(d *model.Declaration) Entry {
	e := Entry{
		Kind:      d.Kind,
		Name:      d.Name,
		Anchor:    Anchor(d.Name),
		Signature: d.Signature(),
		File:      d.File,
		Line:      d.Line(),
	}
	doc := d.Doc
	if doc != nil {
		e.Brief = b.prose(doc.Brief)
		e.Detailed = b.blocks(doc.Detailed)
		e.CopiedFrom = doc.CopiedFrom
		if r, ok := doc.First(model.TagReturns); ok {
			e.Returns = b.prose(r.Text)
		}
		e.Retvals = b.values(doc.All(model.TagRetval))
		e.Errors = b.values(doc.All(model.TagError))
		e.SeeAlso = b.seeAlso(doc)
		e.Assets = assets(doc)
	}
	e.Params = b.params(d)
	e.Callouts = b.callouts(d)
	switch {
	case d.Record != nil:
		e.Fields = b.fields(d.Record)
	case d.Typedef != nil && d.Typedef.Record != nil:
		e.Fields = b.fields(d.Typedef.Record)
	case d.Enum != nil:
		e.Constants = b.constants(d.Enum)
	case d.Typedef != nil && d.Typedef.Enum != nil:
		e.Constants = b.constants(d.Typedef.Enum)
	}
	return e
}

// params merges declared parameters with @param documentation. Documented
// names missing from the declaration are appended after the declared ones.
func (b *builder) params(d *model.Declaration) []ParamRow {
	var declared []model.Param
	switch {
	case d.Function != nil:
		declared = d.Function.Params
	case d.Typedef != nil && d.Typedef.Signature != nil:
		declared = d.Typedef.Signature.Params
	case d.Macro != nil:
		for _, p := range d.Macro.Params {
			declared = append(declared, model.Param{Name: p})
		}
	}
	tags := d.Doc.All(model.TagParam)
	used := make(map[int]bool, len(tags))

	var rows []ParamRow
	for _, p := range declared {
		row := ParamRow{Name: p.Name, Type: p.Type}
		for i, t := range tags {
			if !used[i] && t.Arg == p.Name && p.Name != "" {
				used[i] = true
				row.Direction = t.Direction
				row.Description = b.prose(t.Text)
				break
			}
		}
		if row.Description == nil && p.Comment != "" {
			row.Description = b.prose(p.Comment)
		}
		rows = append(rows, row)
	}
	for i, t := range tags {
		if !used[i] {
			rows = append(rows, ParamRow{Name: t.Arg, Direction: t.Direction, Description: b.prose(t.Text)})
		}
	}
	if fn := d.Function; fn != nil && fn.Variadic {
		rows = append(rows, ParamRow{Name: "..."})
	}
	return rows
}

func (b *builder) values(tags []model.Tag) []ValueRow {
	var rows []ValueRow
	for _, t := range tags {
		rows = append(rows, ValueRow{Value: t.Arg, Description: b.prose(t.Text)})
	}
	return rows
}

func (b *builder) seeAlso(doc *model.DocComment) Prose {
	var out Prose
	for i, t := range doc.All(model.TagSee) {
		if i > 0 {
			out = append(out, Span{Kind: SpanText, Text: ", "})
		}
		out = append(out, b.link(t.Arg, ""))
	}
	return out
}

func (b *builder) callouts(d *model.Declaration) []Callout {
	var out []Callout
	for _, c := range calloutTags {
		for _, t := range d.Doc.All(c.tag) {
			text := t.Text
			if c.tag == model.TagDeprecated && text == "" {
				text = "Deprecated."
			}
			out = append(out, Callout{Kind: c.kind, Text: b.prose(text)})
		}
	}
	if d.Internal() {
		t, _ := d.Doc.First(model.TagInternal)
		text := t.Text
		if text == "" {
			text = "Internal API."
		}
		out = append(out, Callout{Kind: CalloutInternal, Text: b.prose(text)})
	}
	if d.Excluded {
		out = append(out, Callout{Kind: CalloutExcluded, Text: Prose{{Kind: SpanText, Text: ExcludedNote(d.Conditions)}}})
	}
	return out
}

// ExcludedNote describes the condition set an excluded declaration needs.
func ExcludedNote(conds []model.Condition) string {
	if len(conds) == 0 {
		return "Not available in the current configuration."
	}
	parts := make([]string, len(conds))
	for i, c := range conds {
		parts[i] = c.String()
	}
	return "Available only when " + strings.Join(parts, " and ") + "."
}

func assets(doc *model.DocComment) []Asset {
	var out []Asset
	for _, k := range assetTags {
		for _, t := range doc.All(k) {
			out = append(out, Asset{
				Kind:     k,
				Path:     t.Path,
				Fragment: t.Fragment,
				Caption:  t.Caption,
				Format:   t.Format,
				Code:     exampleCode(t),
			})
		}
	}
	return out
}

func exampleCode(t model.Tag) string {
	if t.Kind != model.TagExample {
		return ""
	}
	return t.Text
}

func (b *builder) fields(r *model.Record) []FieldRow {
	var rows []FieldRow
	for _, f := range r.Fields {
		row := FieldRow{Name: f.Name, Type: f.Type, NestedKind: f.NestedKind}
		if f.Doc != nil {
			row.Description = b.prose(f.Doc.Brief)
		}
		if f.Nested != nil {
			row.Nested = b.fields(f.Nested)
		}
		rows = append(rows, row)
	}
	return rows
}

func (b *builder) constants(e *model.Enum) []ConstantRow {
	var rows []ConstantRow
	for _, c := range e.Constants {
		row := ConstantRow{Name: c.Name}
		switch {
		case c.HasValue:
			row.Value = strconv.FormatInt(c.Value, 10)
		case c.Expr != "":
			row.Value = c.Expr
		}
		if c.Doc != nil {
			row.Description = b.prose(c.Doc.Brief)
		}
		rows = append(rows, row)
	}
	return rows
}
