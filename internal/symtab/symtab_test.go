package symtab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/headerdoc/internal/comment"
	"github.com/phobologic/headerdoc/internal/model"
)

func fn(name, doc string, line int, params ...model.Param) *model.Declaration {
	d := &model.Declaration{
		Kind:     model.KindFunction,
		Name:     name,
		File:     "a.h",
		Range:    model.Range{Start: model.Position{Line: line}},
		Function: &model.Function{ReturnType: "int", Params: params},
	}
	if doc != "" {
		d.Doc = comment.Parse(doc)
	}
	return d
}

func macro(name, value string, line int) *model.Declaration {
	return &model.Declaration{
		Kind:  model.KindMacro,
		Name:  name,
		File:  "a.h",
		Range: model.Range{Start: model.Position{Line: line}},
		Macro: &model.Macro{Value: value},
	}
}

func group(id, title string) *model.Declaration {
	return &model.Declaration{
		Kind:  model.KindGroup,
		Name:  id,
		File:  "a.h",
		Doc:   comment.Parse("/** @defgroup " + id + " " + title + " */"),
		Group: &model.Group{ID: id, Title: title},
	}
}

func page(id, title, doc string) *model.Declaration {
	return &model.Declaration{
		Kind: model.KindPage,
		Name: id,
		File: "a.h",
		Doc:  comment.Parse(doc),
		Page: &model.Page{ID: id, Title: title},
	}
}

func codes(diags []model.Diagnostic) []model.DiagCode {
	var out []model.DiagCode
	for _, d := range diags {
		out = append(out, d.Code)
	}
	return out
}

func TestDuplicatePrototypesMerge(t *testing.T) {
	t.Parallel()

	tab := New()
	p := model.Param{Name: "lvl", Type: "enum ApiLogLevel"}
	first := fn("api_set_log_level", "", 10, p)
	second := fn("api_set_log_level", "", 13, p)
	tab.Insert(first)
	tab.Insert(second)

	require.Len(t, tab.Decls(), 1)
	assert.Same(t, first, tab.Decls()[0])
	require.Len(t, tab.Duplicates(), 1)
	assert.Equal(t, "a.h:10", second.Function.DuplicateOf)
	assert.Empty(t, tab.Diagnostics())
}

func TestMergePrefersNonEmptyBrief(t *testing.T) {
	t.Parallel()

	tab := New()
	tab.Insert(fn("f", "", 1))
	tab.Insert(fn("f", "/** Documented later. */", 2))
	tab.Insert(fn("f", "/** Too late. */", 3))

	d, ok := tab.Lookup("f")
	require.True(t, ok)
	assert.Equal(t, "Documented later.", d.Doc.Brief)
}

func TestMergeIgnoresParamNames(t *testing.T) {
	t.Parallel()

	tab := New()
	tab.Insert(fn("f", "", 1, model.Param{Name: "a", Type: "int"}))
	tab.Insert(fn("f", "", 2, model.Param{Name: "b", Type: "int"}))
	assert.Empty(t, tab.Diagnostics())
	assert.Len(t, tab.Duplicates(), 1)
}

func TestMergeConflict(t *testing.T) {
	t.Parallel()

	tab := New()
	first := fn("thing", "/** Function. */", 1, model.Param{Name: "a", Type: "int"})
	tab.Insert(first)
	tab.Insert(macro("thing", "1", 5))
	tab.Insert(fn("thing", "", 9, model.Param{Name: "a", Type: "int"}, model.Param{Name: "b", Type: "int"}))

	require.Len(t, tab.Decls(), 1)
	d, _ := tab.Lookup("thing")
	assert.Same(t, first, d)
	assert.Equal(t, []model.DiagCode{model.MergeConflict, model.MergeConflict}, codes(tab.Diagnostics()))
	assert.Equal(t, 5, tab.Diagnostics()[0].Line)
	assert.Equal(t, model.SeverityWarning, tab.Diagnostics()[0].Severity)
}

func TestForwardDeclarationCompleted(t *testing.T) {
	t.Parallel()

	tab := New()
	fwd := &model.Declaration{Kind: model.KindStruct, Name: "Opaque", File: "a.h"}
	full := &model.Declaration{Kind: model.KindStruct, Name: "Opaque", File: "a.h",
		Record: &model.Record{Fields: []model.Field{{Name: "x", Type: "int"}}}}
	tab.Insert(fwd)
	tab.Insert(full)
	require.Len(t, tab.Decls(), 1)
	require.NotNil(t, tab.Decls()[0].Record)
	assert.Len(t, tab.Decls()[0].Record.Fields, 1)
}

func TestCopydoc(t *testing.T) {
	t.Parallel()

	tab := New()
	target := fn("resource_open", `/**
 * @brief Opens a resource.
 * @param [in]  uri   Resource identifier.
 * @param [out] outH  Receives handle on success.
 * @returns 0 on success; negative error code otherwise.
 * @ingroup core
 */`, 1)
	alias := fn("open_resource", `/**
 * @ingroup core
 * @brief Alias using @copydoc to inherit docs.
 * @copydoc resource_open
 */`, 10)
	tab.Insert(alias)
	tab.Insert(target)
	tab.ResolveCopydoc()

	assert.Empty(t, tab.Diagnostics())
	assert.Equal(t, "Opens a resource.", alias.Doc.Brief)
	assert.Equal(t, "resource_open", alias.Doc.CopiedFrom)
	require.Len(t, alias.Doc.All(model.TagParam), 2)
	assert.Equal(t, "uri", alias.Doc.All(model.TagParam)[0].Arg)
	assert.True(t, alias.Doc.Has(model.TagReturns))

	// ingroup is not copied, the alias keeps its own
	require.Len(t, alias.Doc.All(model.TagIngroup), 1)
}

func TestCopydocChainIsNotFollowed(t *testing.T) {
	t.Parallel()

	tab := New()
	a := fn("a", "/** @copydoc b */", 1)
	b := fn("b", "/** @copydoc c */", 2)
	c := fn("c", "/** Real docs. */", 3)
	tab.Insert(a)
	tab.Insert(b)
	tab.Insert(c)
	tab.ResolveCopydoc()

	assert.Empty(t, a.Doc.Brief)
	assert.Empty(t, a.Doc.CopiedFrom)
	assert.Equal(t, "Real docs.", b.Doc.Brief)
	require.Len(t, tab.Diagnostics(), 1)
	assert.Equal(t, model.UnresolvedReference, tab.Diagnostics()[0].Code)
	assert.Equal(t, "b", tab.Diagnostics()[0].Symbol)
}

func TestCopydocUnresolved(t *testing.T) {
	t.Parallel()

	tab := New()
	d := fn("a", "/** @copydoc missing */", 1)
	tab.Insert(d)
	tab.ResolveCopydoc()
	assert.Equal(t, []model.DiagCode{model.UnresolvedReference}, codes(tab.Diagnostics()))
	assert.Empty(t, d.Doc.Brief)
}

func TestResolveReferences(t *testing.T) {
	t.Parallel()

	tab := New()
	tab.Insert(group("core", "Core API"))
	tab.Insert(page("getting_started", "Getting Started", `/**
 * @page getting_started Getting Started
 * See \ref init_library and \ref api_version.
 */`))
	tab.Insert(fn("init_library", "/** Init. @ingroup core @see shutdown_library */", 1))
	tab.Insert(fn("compute_wrapper", `/** Wrapper calling \ref init_library then \ref nowhere. @see getting_started, core */`, 2))
	tab.Insert(&model.Declaration{
		Kind: model.KindEnum, Name: "ApiLogLevel", File: "a.h",
		Enum: &model.Enum{Constants: []model.EnumConstant{{Name: "API_LOG_DEBUG", Value: 10, HasValue: true}}},
	})
	tab.Insert(fn("uses_const", `/** Pass \ref API_LOG_DEBUG. */`, 3))
	tab.ResolveAll()

	ref, ok := tab.Reference("compute_wrapper", "init_library")
	require.True(t, ok)
	assert.Equal(t, model.Resolved, ref.State)
	assert.Equal(t, model.KindFunction, ref.TargetKind)
	assert.Equal(t, "core", ref.Anchor)

	ref, ok = tab.Reference("compute_wrapper", "nowhere")
	require.True(t, ok)
	assert.Equal(t, model.Unresolved, ref.State)

	ref, _ = tab.Reference("compute_wrapper", "getting_started")
	assert.Equal(t, model.KindPage, ref.TargetKind)
	assert.Equal(t, "getting_started", ref.Anchor)

	ref, _ = tab.Reference("compute_wrapper", "core")
	assert.Equal(t, model.KindGroup, ref.TargetKind)

	ref, _ = tab.Reference("getting_started", "api_version")
	assert.Equal(t, model.Unresolved, ref.State)

	ref, _ = tab.Reference("uses_const", "API_LOG_DEBUG")
	assert.Equal(t, model.Resolved, ref.State)
	assert.Equal(t, model.KindEnum, ref.TargetKind)
	assert.Equal(t, OtherID, ref.Anchor)

	unresolved := 0
	for _, d := range tab.Diagnostics() {
		if d.Code == model.UnresolvedReference {
			unresolved++
		}
	}
	// shutdown_library, nowhere, api_version
	assert.Equal(t, 3, unresolved)
}

func TestBuildGroups(t *testing.T) {
	t.Parallel()

	tab := New()
	tab.Insert(group("core", "Core API"))
	tab.Insert(group("http", "HTTP Helpers"))
	a := fn("a", "/** A. @ingroup core */", 1)
	b := fn("b", "/** B. @ingroup http core */", 2)
	c := fn("c", "/** C. @ingroup missing */", 3)
	d := fn("d", "", 4)
	for _, x := range []*model.Declaration{a, b, c, d} {
		tab.Insert(x)
	}
	tab.BuildGroups()

	assert.Equal(t, []*model.Declaration{a, b}, tab.Members("core"))
	assert.Equal(t, []*model.Declaration{b}, tab.Members("http"))
	assert.Equal(t, []*model.Declaration{c, d}, tab.Ungrouped())

	core, _ := tab.Group("core")
	assert.Equal(t, []string{"a", "b"}, core.Group.Members)

	require.Len(t, tab.Diagnostics(), 1)
	assert.Equal(t, "missing", tab.Diagnostics()[0].Symbol)

	assert.Equal(t, "http", tab.DocumentOf(b))
	assert.Equal(t, OtherID, tab.DocumentOf(c))
}

func TestRepeatedGroupMerges(t *testing.T) {
	t.Parallel()

	tab := New()
	tab.Insert(group("core", ""))
	tab.Insert(group("core", "Core API"))
	require.Len(t, tab.Groups(), 1)
	assert.Equal(t, "Core API", tab.Groups()[0].Group.Title)
	assert.Empty(t, tab.Diagnostics())
}

func TestDuplicatePage(t *testing.T) {
	t.Parallel()

	tab := New()
	tab.Insert(page("p", "One", "/** @page p One */"))
	tab.Insert(page("p", "Two", "/** @page p Two */"))
	require.Len(t, tab.Pages(), 1)
	assert.Equal(t, "One", tab.Pages()[0].Page.Title)
	assert.Equal(t, []model.DiagCode{model.MergeConflict}, codes(tab.Diagnostics()))
}
