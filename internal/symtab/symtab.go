// Package symtab merges per-file declarations into one table and resolves
// copydoc, cross-references and group membership.
package symtab

import (
	"fmt"
	"slices"

	"github.com/phobologic/headerdoc/internal/model"
)

// OtherID is the document ID of the implicit bucket for ungrouped symbols.
const OtherID = "other"

// copiedTags are the tag kinds @copydoc transfers from its target.
var copiedTags = []model.TagKind{
	model.TagParam, model.TagReturns, model.TagRetval, model.TagError,
}

// Table holds the canonical declarations in insertion order. It is not safe
// for concurrent use; the engine inserts from a single goroutine.
type Table struct {
	decls      []*model.Declaration
	symbols    map[string]*model.Declaration
	constants  map[string]*model.Declaration // enumerators of named enums
	tags       map[string]*model.Declaration // struct/union/enum tag names
	pages      []*model.Declaration
	pageIDs    map[string]*model.Declaration
	groups     []*model.Declaration
	groupIDs   map[string]*model.Declaration
	duplicates []*model.Declaration

	members  map[string][]*model.Declaration
	memberOf map[*model.Declaration][]string
	refs     []model.CrossReference
	refIndex map[refKey]int
	diags    []model.Diagnostic
}

type refKey struct{ source, target string }

// New returns an empty Table.
func New() *Table {
	return &Table{
		symbols:   make(map[string]*model.Declaration),
		constants: make(map[string]*model.Declaration),
		tags:      make(map[string]*model.Declaration),
		pageIDs:   make(map[string]*model.Declaration),
		groupIDs:  make(map[string]*model.Declaration),
		members:   make(map[string][]*model.Declaration),
		memberOf:  make(map[*model.Declaration][]string),
		refIndex:  make(map[refKey]int),
	}
}

func (t *Table) warn(code model.DiagCode, d *model.Declaration, symbol, msg string) {
	diag := model.Diagnostic{Severity: model.SeverityWarning, Code: code, Symbol: symbol, Message: msg}
	if d != nil {
		diag.File, diag.Line = d.File, d.Line()
	}
	t.diags = append(t.diags, diag)
}

func location(d *model.Declaration) string {
	return fmt.Sprintf("%s:%d", d.File, d.Line())
}

// Insert adds d to the table. A declaration whose name is already taken is
// merged when the signatures match and reported as a MergeConflict
// otherwise; the first declaration stays canonical either way.
func (t *Table) Insert(d *model.Declaration) {
	switch d.Kind {
	case model.KindPage:
		t.insertPage(d)
		return
	case model.KindGroup:
		t.insertGroup(d)
		return
	}
	if d.Name == "" {
		t.decls = append(t.decls, d)
		return
	}

	prev, ok := t.symbols[d.Name]
	if !ok {
		t.symbols[d.Name] = d
		t.decls = append(t.decls, d)
		t.index(d)
		return
	}
	if prev.Kind != d.Kind || shape(prev) != shape(d) {
		t.warn(model.MergeConflict, d, d.Name, fmt.Sprintf(
			"%s %s conflicts with %s declared at %s; keeping the first",
			d.Kind, d.Name, prev.Kind, location(prev)))
		return
	}
	t.merge(prev, d)
}

// shape is the part of a declaration that must agree for two declarations
// of one name to merge. Parameter names may differ between prototypes.
func shape(d *model.Declaration) string {
	if d.Kind != model.KindFunction || d.Function == nil {
		return d.Signature()
	}
	f := *d.Function
	f.Params = make([]model.Param, len(d.Function.Params))
	for i, p := range d.Function.Params {
		f.Params[i] = model.Param{Type: p.Type}
	}
	return model.FunctionSignature(d.Name, &f)
}

// merge folds a compatible redeclaration into the canonical one.
func (t *Table) merge(prev, d *model.Declaration) {
	if briefOf(prev.Doc) == "" && briefOf(d.Doc) != "" {
		prev.Doc = d.Doc
	} else if prev.Doc == nil && d.Doc != nil {
		prev.Doc = d.Doc
	}
	// a definition completes an earlier forward declaration
	if prev.Record == nil && d.Record != nil {
		prev.Record = d.Record
	}
	if prev.Enum != nil && d.Enum != nil && len(prev.Enum.Constants) == 0 {
		prev.Enum = d.Enum
		t.index(prev)
	}
	if prev.Excluded && !d.Excluded {
		prev.Excluded, prev.Conditions = false, d.Conditions
	}
	if d.Function != nil {
		d.Function.DuplicateOf = location(prev)
	}
	t.duplicates = append(t.duplicates, d)
}

func briefOf(doc *model.DocComment) string {
	if doc == nil {
		return ""
	}
	return doc.Brief
}

// index registers secondary names: enumerators of named enums and tag names.
func (t *Table) index(d *model.Declaration) {
	enum := d.Enum
	if d.Typedef != nil {
		if d.Typedef.TagName != "" && d.Typedef.TagName != d.Name {
			if _, ok := t.tags[d.Typedef.TagName]; !ok {
				t.tags[d.Typedef.TagName] = d
			}
		}
		enum = d.Typedef.Enum
	}
	if enum == nil {
		return
	}
	for _, c := range enum.Constants {
		if _, ok := t.constants[c.Name]; !ok {
			t.constants[c.Name] = d
		}
	}
}

func (t *Table) insertPage(d *model.Declaration) {
	if prev, ok := t.pageIDs[d.Name]; ok {
		t.warn(model.MergeConflict, d, d.Name, fmt.Sprintf("page %q already declared at %s", d.Name, location(prev)))
		return
	}
	t.pageIDs[d.Name] = d
	t.pages = append(t.pages, d)
}

// insertGroup merges repeated @defgroup/@addtogroup blocks for one ID.
func (t *Table) insertGroup(d *model.Declaration) {
	prev, ok := t.groupIDs[d.Name]
	if !ok {
		t.groupIDs[d.Name] = d
		t.groups = append(t.groups, d)
		return
	}
	if prev.Group.Title == "" {
		prev.Group.Title = d.Group.Title
	}
	if briefOf(prev.Doc) == "" && briefOf(d.Doc) != "" {
		prev.Doc = d.Doc
	}
}

// Lookup returns the canonical declaration for a symbol name. Enumerators of
// named enums resolve to their enum and tag names to their typedef.
func (t *Table) Lookup(name string) (*model.Declaration, bool) {
	if d, ok := t.symbols[name]; ok {
		return d, true
	}
	if d, ok := t.constants[name]; ok {
		return d, true
	}
	d, ok := t.tags[name]
	return d, ok
}

// Page returns the page with the given ID.
func (t *Table) Page(id string) (*model.Declaration, bool) {
	d, ok := t.pageIDs[id]
	return d, ok
}

// Group returns the group with the given ID.
func (t *Table) Group(id string) (*model.Declaration, bool) {
	d, ok := t.groupIDs[id]
	return d, ok
}

// Decls returns the canonical symbol declarations in insertion order.
func (t *Table) Decls() []*model.Declaration { return t.decls }

// Pages returns the pages in insertion order.
func (t *Table) Pages() []*model.Declaration { return t.pages }

// Groups returns the groups in insertion order.
func (t *Table) Groups() []*model.Declaration { return t.groups }

// Duplicates returns merged redeclarations.
func (t *Table) Duplicates() []*model.Declaration { return t.duplicates }

// Diagnostics returns merge and resolution diagnostics in the order they
// were raised.
func (t *Table) Diagnostics() []model.Diagnostic { return t.diags }

// documented returns every declaration that carries its own doc comment:
// pages and groups first, then symbols.
func (t *Table) documented() []*model.Declaration {
	all := make([]*model.Declaration, 0, len(t.pages)+len(t.groups)+len(t.decls))
	all = append(all, t.pages...)
	all = append(all, t.groups...)
	all = append(all, t.decls...)
	return all
}

// ResolveCopydoc copies documentation into every declaration carrying
// @copydoc. Resolution is single-hop: a target that itself uses @copydoc is
// reported as unresolved and nothing is copied.
func (t *Table) ResolveCopydoc() {
	for _, d := range t.documented() {
		tag, ok := d.Doc.First(model.TagCopydoc)
		if !ok {
			continue
		}
		target, found := t.Lookup(tag.Arg)
		switch {
		case !found:
			t.warn(model.UnresolvedReference, d, tag.Arg, fmt.Sprintf("@copydoc target %q not found", tag.Arg))
			continue
		case target == d:
			t.warn(model.UnresolvedReference, d, tag.Arg, fmt.Sprintf("@copydoc %q refers to itself", tag.Arg))
			continue
		case target.Doc.Has(model.TagCopydoc):
			t.warn(model.UnresolvedReference, d, tag.Arg, fmt.Sprintf("@copydoc target %q uses @copydoc itself; chains are not followed", tag.Arg))
			continue
		case target.Doc.Empty():
			t.warn(model.UnresolvedReference, d, tag.Arg, fmt.Sprintf("@copydoc target %q has no documentation", tag.Arg))
			continue
		}
		copyDoc(d.Doc, target.Doc)
		d.Doc.CopiedFrom = target.Name
	}
}

func copyDoc(dst, src *model.DocComment) {
	if dst.Tags == nil {
		dst.Tags = make(map[model.TagKind][]model.Tag)
	}
	dst.Brief = src.Brief
	dst.Detailed = append([]string(nil), src.Detailed...)
	for _, k := range copiedTags {
		if tags := src.All(k); len(tags) > 0 {
			dst.Tags[k] = append([]model.Tag(nil), tags...)
		} else {
			delete(dst.Tags, k)
		}
	}
	// references inside the copied prose belong to the copy as well
	for _, r := range src.All(model.TagRef) {
		if !slices.ContainsFunc(dst.All(model.TagRef), func(x model.Tag) bool { return x.Arg == r.Arg }) {
			dst.Add(r)
		}
	}
}

// ResolveReferences turns every @ref and @see target into a CrossReference.
// Targets may be symbols, enumerators of named enums, tag names, pages or
// groups.
func (t *Table) ResolveReferences() {
	for _, d := range t.documented() {
		if d.Doc == nil {
			continue
		}
		for _, kind := range []model.TagKind{model.TagRef, model.TagSee} {
			for _, tag := range d.Doc.All(kind) {
				t.resolve(d, tag.Arg)
			}
		}
	}
}

func (t *Table) resolve(src *model.Declaration, target string) {
	if target == "" {
		return
	}
	key := refKey{src.Name, target}
	if _, seen := t.refIndex[key]; seen {
		return
	}
	ref := model.CrossReference{Source: src.Name, Target: target, State: model.Unresolved}
	if d, ok := t.Resolve(target); ok {
		ref.State = model.Resolved
		ref.TargetKind = d.Kind
		ref.Anchor = t.DocumentOf(d)
	} else {
		t.warn(model.UnresolvedReference, src, target, fmt.Sprintf("reference to unknown symbol %q", target))
	}
	t.refIndex[key] = len(t.refs)
	t.refs = append(t.refs, ref)
}

// Resolve looks target up across symbols, pages and groups.
func (t *Table) Resolve(target string) (*model.Declaration, bool) {
	if d, ok := t.Lookup(target); ok {
		return d, true
	}
	if d, ok := t.pageIDs[target]; ok {
		return d, true
	}
	d, ok := t.groupIDs[target]
	return d, ok
}

// References returns the resolved cross-references in discovery order.
func (t *Table) References() []model.CrossReference { return t.refs }

// Reference returns the cross-reference from source to target, if recorded.
func (t *Table) Reference(source, target string) (model.CrossReference, bool) {
	i, ok := t.refIndex[refKey{source, target}]
	if !ok {
		return model.CrossReference{}, false
	}
	return t.refs[i], true
}

// DocumentOf returns the ID of the document that renders d: the page or
// group itself, the first known @ingroup group, or "other".
func (t *Table) DocumentOf(d *model.Declaration) string {
	switch d.Kind {
	case model.KindPage, model.KindGroup:
		return d.Name
	}
	for _, g := range d.Doc.All(model.TagIngroup) {
		if _, ok := t.groupIDs[g.Arg]; ok {
			return g.Arg
		}
	}
	return OtherID
}

// BuildGroups collects @ingroup membership. Unknown groups are reported
// and the membership is dropped.
func (t *Table) BuildGroups() {
	for _, d := range t.decls {
		for _, g := range d.Doc.All(model.TagIngroup) {
			group, ok := t.groupIDs[g.Arg]
			if !ok {
				t.warn(model.UnresolvedReference, d, g.Arg, fmt.Sprintf("@ingroup %q names an unknown group", g.Arg))
				continue
			}
			if slices.Contains(t.memberOf[d], g.Arg) {
				continue
			}
			t.memberOf[d] = append(t.memberOf[d], g.Arg)
			t.members[g.Arg] = append(t.members[g.Arg], d)
			if d.Name != "" {
				group.Group.Members = append(group.Group.Members, d.Name)
			}
		}
	}
}

// Members returns the declarations belonging to group id in insertion order.
func (t *Table) Members(id string) []*model.Declaration {
	return t.members[id]
}

// Ungrouped returns declarations with no known group, in insertion order.
func (t *Table) Ungrouped() []*model.Declaration {
	var out []*model.Declaration
	for _, d := range t.decls {
		if len(t.memberOf[d]) == 0 {
			out = append(out, d)
		}
	}
	return out
}

// ResolveAll runs copydoc resolution, reference resolution and group building
// in that order.
func (t *Table) ResolveAll() {
	t.ResolveCopydoc()
	t.ResolveReferences()
	t.BuildGroups()
}
