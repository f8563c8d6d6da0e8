// Package parse drives one header through scanning, conditional tracking,
// statement assembly and doc-comment pairing.
package parse

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/headerdoc/internal/comment"
	"github.com/phobologic/headerdoc/internal/cond"
	"github.com/phobologic/headerdoc/internal/decl"
	"github.com/phobologic/headerdoc/internal/lang"
	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/scan"
)

var (
	commentRe = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
	linkageRe = regexp.MustCompile(`^(extern\s*"C(\+\+)?"|namespace(\s+[A-Za-z_][A-Za-z0-9_:]*)?)$`)
)

// Result is the outcome of parsing one file. When Err is set the file was
// FileFatal: Decls is empty and Diagnostics explains why.
type Result struct {
	File        *model.SourceFile
	Decls       []*model.Declaration
	Diagnostics []model.Diagnostic
	Err         error
}

// File parses src with p. defined seeds the conditional tracker.
func File(ctx context.Context, p *decl.Parser, src *model.SourceFile, defined map[string]bool) *Result {
	f := &fileParser{
		ctx:     ctx,
		parser:  p,
		res:     &Result{File: src},
		scanner: scan.New(src.Text),
		tracker: cond.NewTracker(defined),
	}
	f.run()
	return f.res
}

type fileParser struct {
	ctx     context.Context
	parser  *decl.Parser
	res     *Result
	scanner *scan.Scanner
	tracker *cond.Tracker

	pending *model.DocComment
	last    []*model.Declaration
	guard   string // symbol of an #ifndef that may open an include guard

	// statement assembly
	buf     strings.Builder
	start   int
	cond    []model.Condition
	active  bool
	depth   int
	parens  int
	fnBody  bool
	linkage int
}

func (f *fileParser) run() {
	for seg := range f.scanner.Segments() {
		if err := f.ctx.Err(); err != nil {
			f.fatal(0, err)
			return
		}
		var err error
		switch seg.Kind {
		case scan.Code:
			err = f.code(seg)
		case scan.StringOrCharLiteral:
			f.guard = ""
			f.appendText(seg)
		case scan.LineComment, scan.BlockComment:
			if f.inStatement() {
				f.appendText(seg)
			}
		case scan.DocBlockComment:
			f.doc(seg)
		case scan.Directive:
			err = f.directive(seg)
		}
		if err != nil {
			f.fatal(seg.Range.Start.Line, err)
			return
		}
	}
	if err := f.scanner.Err(); err != nil {
		f.fatal(0, err)
		return
	}
	if f.inStatement() {
		f.warn(model.DeclarationSkipped, f.scanner.Position(f.start).Line, "",
			fmt.Sprintf("incomplete declaration at end of file: %q", summary(f.buf.String())))
		f.reset()
	}
	if err := f.tracker.Close(f.scanner.Position(len(f.res.File.Text))); err != nil {
		f.fatal(0, err)
		return
	}
	f.res.File.Blocks = f.tracker.Blocks()
}

func (f *fileParser) fatal(line int, err error) {
	f.res.Err = err
	f.res.Decls = nil
	f.res.File.Blocks = f.tracker.Blocks()
	f.res.Diagnostics = append(f.res.Diagnostics, model.Diagnostic{
		Severity: model.SeverityFatal,
		Code:     model.FileFatal,
		File:     f.res.File.Path,
		Line:     line,
		Message:  err.Error(),
	})
}

func (f *fileParser) warn(code model.DiagCode, line int, symbol, msg string) {
	f.res.Diagnostics = append(f.res.Diagnostics, model.Diagnostic{
		Severity: model.SeverityWarning,
		Code:     code,
		File:     f.res.File.Path,
		Line:     line,
		Symbol:   symbol,
		Message:  msg,
	})
}

func (f *fileParser) inStatement() bool {
	return f.buf.Len() > 0
}

func (f *fileParser) begin(off int) {
	f.start = off
	f.cond = f.tracker.Conditions()
	f.active = f.tracker.Active()
	f.guard = ""
}

func (f *fileParser) reset() {
	f.buf.Reset()
	f.depth, f.parens, f.fnBody = 0, 0, false
}

func (f *fileParser) appendText(seg scan.Segment) {
	if !f.inStatement() {
		f.begin(seg.Range.Start.Offset)
	}
	f.buf.WriteString(seg.Text)
}

// blankOut keeps newlines so offsets inside the statement stay aligned.
func blankOut(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c != '\n' && c != '\r' {
			b[i] = ' '
		}
	}
	return string(b)
}

func (f *fileParser) code(seg scan.Segment) error {
	text := seg.Text
	base := seg.Range.Start.Offset
	for i := 0; i < len(text); i++ {
		c := text[i]
		if !f.inStatement() {
			if isSpace(c) {
				continue
			}
			f.begin(base + i)
		}
		switch c {
		case '(':
			f.parens++
		case ')':
			f.parens--
		case '{':
			if f.depth == 0 {
				prefix := lang.CollapseWhitespace(commentRe.ReplaceAllString(f.buf.String(), " "))
				if linkageRe.MatchString(prefix) {
					f.linkage++
					f.reset()
					continue
				}
				f.fnBody = strings.HasSuffix(prefix, ")")
			}
			f.depth++
		case '}':
			if f.depth == 0 {
				if f.linkage > 0 && strings.TrimSpace(f.buf.String()) == "" {
					f.linkage--
					f.reset()
					continue
				}
				break
			}
			f.depth--
			if f.depth == 0 && f.fnBody {
				f.buf.WriteByte(c)
				if err := f.statement(); err != nil {
					return err
				}
				continue
			}
		case ';':
			if f.depth == 0 && f.parens <= 0 {
				f.buf.WriteByte(c)
				if err := f.statement(); err != nil {
					return err
				}
				continue
			}
		}
		f.buf.WriteByte(c)
	}
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// statement classifies the assembled statement and pairs it with the
// pending doc comment.
func (f *fileParser) statement() error {
	text, start := f.buf.String(), f.start
	conds, active := f.cond, f.active
	f.reset()

	doc := f.pending
	f.pending = nil

	decls, err := f.parser.ParseStatement(f.ctx, text)
	if err != nil {
		if f.ctx.Err() != nil {
			return f.ctx.Err()
		}
		f.warn(model.DeclarationSkipped, f.scanner.Position(start).Line, "", err.Error())
		f.last = nil
		return nil
	}

	for i, d := range decls {
		d.Range = model.Range{
			Start: f.scanner.Position(start + d.Range.Start.Offset),
			End:   f.scanner.Position(start + d.Range.End.Offset),
		}
		f.place(d, conds, active)
		switch {
		case d.Kind == model.KindEnumConstant && d.Doc != nil:
			// the constant's own doc wins over the enum's
		case i == 0:
			d.Doc = doc
		case doc != nil:
			d.Doc = doc.Clone()
		}
	}
	f.res.Decls = append(f.res.Decls, decls...)
	f.last = decls
	return nil
}

func (f *fileParser) place(d *model.Declaration, conds []model.Condition, active bool) {
	d.File = f.res.File.Path
	d.Conditions = conds
	d.Excluded = !active
}

func (f *fileParser) doc(seg scan.Segment) {
	if f.inStatement() {
		f.buf.WriteString(seg.Text)
		return
	}
	f.guard = ""
	if comment.IsMemberDoc(seg.Text) {
		dc := comment.Parse(seg.Text)
		for _, d := range f.last {
			if d.Doc == nil {
				d.Doc = dc
				break
			}
		}
		return
	}

	dc := comment.Parse(seg.Text)
	if f.standalone(dc, seg) {
		return
	}
	f.pending = dc
}

// standalone turns @page, @mainpage, @defgroup and @file comments into
// their own units. It reports whether dc was consumed.
func (f *fileParser) standalone(dc *model.DocComment, seg scan.Segment) bool {
	var d *model.Declaration
	switch {
	case dc.Has(model.TagPage) || dc.Has(model.TagMainpage):
		t, ok := dc.First(model.TagPage)
		if !ok {
			t, _ = dc.First(model.TagMainpage)
		}
		id := t.Arg
		if id == "" {
			id = "index"
		}
		d = &model.Declaration{Kind: model.KindPage, Name: id, Page: &model.Page{ID: id, Title: t.Text}}
	case dc.Has(model.TagDefgroup):
		t, _ := dc.First(model.TagDefgroup)
		if t.Arg == "" {
			f.warn(model.DeclarationSkipped, seg.Range.Start.Line, "", "@defgroup without an identifier")
			return true
		}
		d = &model.Declaration{Kind: model.KindGroup, Name: t.Arg, Group: &model.Group{ID: t.Arg, Title: t.Text}}
	case dc.Has(model.TagFile):
		if f.res.File.Doc == nil {
			f.res.File.Doc = dc
		}
		return true
	default:
		return false
	}
	d.Range = seg.Range
	d.Doc = dc
	f.place(d, f.tracker.Conditions(), f.tracker.Active())
	f.res.Decls = append(f.res.Decls, d)
	return true
}

func (f *fileParser) directive(seg scan.Segment) error {
	if f.inStatement() {
		// directives inside a declaration only affect conditional state
		f.buf.WriteString(blankOut(seg.Text))
		return f.tracker.Directive(seg)
	}

	name, arg := cond.Split(seg.Text)
	guard := f.guard
	f.guard = ""

	active := f.tracker.Active()
	conds := f.tracker.Conditions()
	if err := f.tracker.Directive(seg); err != nil {
		return err
	}

	switch name {
	case "ifndef":
		f.guard = strings.TrimSpace(arg)
	case "define":
		return f.define(seg, guard, conds, active)
	case "if", "ifdef", "elif", "else", "endif":
	default:
		f.pending = nil
	}
	return nil
}

func (f *fileParser) define(seg scan.Segment, guard string, conds []model.Condition, active bool) error {
	d, member, err := decl.ParseMacro(seg.Text)
	if err != nil {
		f.warn(model.DeclarationSkipped, seg.Range.Start.Line, "", err.Error())
		return nil
	}
	if guard != "" && d.Name == guard && !d.Macro.FunctionLike && d.Macro.Value == "" {
		f.tracker.MarkGuard()
		return nil
	}

	d.Range = seg.Range
	f.place(d, conds, active)
	d.Doc = f.pending
	f.pending = nil
	if member != "" && d.Doc == nil {
		d.Doc = comment.Parse(member)
	}
	f.res.Decls = append(f.res.Decls, d)
	f.last = []*model.Declaration{d}
	return nil
}

func summary(s string) string {
	s = lang.CollapseWhitespace(commentRe.ReplaceAllString(s, " "))
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}
