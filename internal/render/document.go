// Package render builds the structural documentation model: one Document per
// page, per group and for ungrouped symbols. Formatters only read it.
package render

import "github.com/phobologic/headerdoc/internal/model"

// DocKind classifies a Document.
type DocKind string

const (
	DocPage  DocKind = "page"
	DocGroup DocKind = "group"
	DocOther DocKind = "other"
)

// SpanKind classifies a piece of prose.
type SpanKind string

const (
	SpanText     SpanKind = "text"
	SpanLink     SpanKind = "link"
	SpanCode     SpanKind = "code"
	SpanEmphasis SpanKind = "emphasis"
	SpanStrong   SpanKind = "strong"
)

// Span is one run of prose. Links carry the target document and anchor.
type Span struct {
	Kind     SpanKind
	Text     string
	Document string
	Anchor   string
}

// Prose is a sequence of spans.
type Prose []Span

// PlainText returns the prose without markup.
func (p Prose) PlainText() string {
	var n int
	for _, s := range p {
		n += len(s.Text)
	}
	b := make([]byte, 0, n)
	for _, s := range p {
		b = append(b, s.Text...)
	}
	return string(b)
}

// Block is a detailed-description paragraph or a verbatim code block.
type Block struct {
	Prose Prose
	Code  string
	Lang  string
}

// IsCode reports whether the block is verbatim code.
func (b Block) IsCode() bool {
	return b.Code != ""
}

// CalloutKind names a call-out box.
type CalloutKind string

const (
	CalloutDeprecated CalloutKind = "deprecated"
	CalloutNote       CalloutKind = "note"
	CalloutWarning    CalloutKind = "warning"
	CalloutTodo       CalloutKind = "todo"
	CalloutBug        CalloutKind = "bug"
	CalloutSince      CalloutKind = "since"
	CalloutPre        CalloutKind = "pre"
	CalloutPost       CalloutKind = "post"
	CalloutInternal   CalloutKind = "internal"
	CalloutExcluded   CalloutKind = "excluded"
)

// Callout is one call-out box.
type Callout struct {
	Kind CalloutKind
	Text Prose
}

// Asset is an @image/@include/@snippet/@example reference. The file behind
// Path is never read; Code holds verbatim @example text when present.
type Asset struct {
	Kind     model.TagKind
	Path     string
	Fragment string
	Caption  string
	Format   string
	Code     string
}

// ParamRow is one row of a parameter table.
type ParamRow struct {
	Name        string
	Type        string
	Direction   string
	Description Prose
}

// ValueRow is one row of a retval or error table.
type ValueRow struct {
	Value       string
	Description Prose
}

// FieldRow is one struct/union member. Nested holds the members of an
// anonymous nested struct/union, rendered as a sub-table.
type FieldRow struct {
	Name        string
	Type        string
	Description Prose
	NestedKind  model.DeclKind
	Nested      []FieldRow
}

// ConstantRow is one enumerator.
type ConstantRow struct {
	Name        string
	Value       string
	Description Prose
}

// Entry is one documented symbol inside a Section.
type Entry struct {
	Kind       model.DeclKind
	Name       string
	Anchor     string
	Signature  string
	File       string
	Line       int
	Brief      Prose
	Detailed   []Block
	Params     []ParamRow
	Returns    Prose
	Retvals    []ValueRow
	Errors     []ValueRow
	SeeAlso    Prose
	Callouts   []Callout
	Fields     []FieldRow
	Constants  []ConstantRow
	Assets     []Asset
	CopiedFrom string
}

// SectionKind identifies the fixed per-kind sections.
type SectionKind string

const (
	SectionMacros   SectionKind = "macros"
	SectionTypedefs SectionKind = "typedefs"
	SectionEnums    SectionKind = "enums"
	SectionRecords  SectionKind = "structs"
	SectionFuncs    SectionKind = "functions"
)

// sectionOrder is the fixed order sections appear in.
var sectionOrder = []struct {
	kind  SectionKind
	title string
}{
	{SectionMacros, "Macros"},
	{SectionTypedefs, "Typedefs"},
	{SectionEnums, "Enums"},
	{SectionRecords, "Structs/Unions"},
	{SectionFuncs, "Functions"},
}

// Section groups entries of one kind.
type Section struct {
	Kind    SectionKind
	Title   string
	Entries []Entry
}

// Document is one output unit.
type Document struct {
	ID       string
	Kind     DocKind
	Title    string
	Brief    Prose
	Detailed []Block
	Callouts []Callout
	Assets   []Asset
	SeeAlso  Prose
	Sections []Section
}

// EntryCount returns the number of entries across all sections.
func (d *Document) EntryCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Entries)
	}
	return n
}
