// Package mdx formats rendered documents as MDX pages with YAML
// frontmatter and Fumadocs call-out components.
package mdx

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/render"
)

// Ext is the file extension of formatted documents.
const Ext = ".mdx"

type frontmatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description,omitempty"`
	Generator   string `yaml:"generator"`
}

var calloutStyle = map[render.CalloutKind]struct{ typ, title string }{
	render.CalloutDeprecated: {"warn", "Deprecated"},
	render.CalloutNote:       {"info", "Note"},
	render.CalloutWarning:    {"warn", "Warning"},
	render.CalloutTodo:       {"info", "TODO"},
	render.CalloutBug:        {"error", "Bug"},
	render.CalloutSince:      {"info", "Since"},
	render.CalloutPre:        {"info", "Precondition"},
	render.CalloutPost:       {"info", "Postcondition"},
	render.CalloutInternal:   {"warn", "Internal"},
	render.CalloutExcluded:   {"info", "Conditional"},
}

var textEscaper = strings.NewReplacer("<", "&lt;", ">", "&gt;", "{", "&#123;", "}", "&#125;")

type writer struct {
	b   bytes.Buffer
	doc string
}

// Format renders doc as an MDX page.
func Format(doc *render.Document) ([]byte, error) {
	fm, err := yaml.Marshal(frontmatter{
		Title:       doc.Title,
		Description: oneLine(doc.Brief.PlainText()),
		Generator:   model.Generator,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding frontmatter for %s: %w", doc.ID, err)
	}

	w := &writer{doc: doc.ID}
	w.b.WriteString("---\n")
	w.b.Write(fm)
	w.b.WriteString("---\n\n")

	w.para(w.prose(doc.Brief))
	w.blocks(doc.Detailed)
	w.callouts(doc.Callouts)
	w.assets(doc.Assets)
	if len(doc.SeeAlso) > 0 {
		w.para("**See also:** " + w.prose(doc.SeeAlso))
	}

	for _, s := range doc.Sections {
		w.para("## " + s.Title)
		for i := range s.Entries {
			w.entry(&s.Entries[i])
		}
	}

	out := bytes.TrimRight(w.b.Bytes(), "\n")
	return append(out, '\n'), nil
}

func (w *writer) para(s string) {
	if s == "" {
		return
	}
	w.b.WriteString(s)
	w.b.WriteString("\n\n")
}

func (w *writer) entry(e *render.Entry) {
	w.para(fmt.Sprintf("### %s [#%s]", escape(e.Name), e.Anchor))
	w.fence("c", e.Signature)
	w.para(w.prose(e.Brief))
	w.blocks(e.Detailed)
	if e.CopiedFrom != "" {
		w.para("*Documentation copied from* " + code(e.CopiedFrom) + ".")
	}

	if len(e.Params) > 0 {
		w.para("**Parameters**")
		rows := make([][]string, len(e.Params))
		for i, p := range e.Params {
			rows[i] = []string{codeOrEmpty(p.Name), p.Direction, codeOrEmpty(p.Type), w.cell(p.Description)}
		}
		w.table([]string{"Name", "Direction", "Type", "Description"}, rows)
	}

	if len(e.Returns) > 0 || len(e.Retvals) > 0 {
		w.para("**Returns**")
		w.para(w.prose(e.Returns))
		w.values("Value", e.Retvals)
	}

	if len(e.Errors) > 0 {
		w.para("**Errors**")
		w.values("Code", e.Errors)
	}

	if len(e.SeeAlso) > 0 {
		w.para("**See also:** " + w.prose(e.SeeAlso))
	}

	w.callouts(e.Callouts)

	if len(e.Fields) > 0 {
		w.para("**Fields**")
		var rows [][]string
		w.fieldRows(&rows, e.Fields, 0)
		w.table([]string{"Name", "Type", "Description"}, rows)
	}

	if len(e.Constants) > 0 {
		w.para("**Values**")
		rows := make([][]string, len(e.Constants))
		for i, c := range e.Constants {
			rows[i] = []string{code(c.Name), codeOrEmpty(c.Value), w.cell(c.Description)}
		}
		w.table([]string{"Name", "Value", "Description"}, rows)
	}

	w.assets(e.Assets)

	if e.File != "" {
		w.para(fmt.Sprintf("<sub>Declared in %s</sub>", code(fmt.Sprintf("%s:%d", e.File, e.Line))))
	}
}

// fieldRows flattens nested anonymous members into indented rows below
// their parent field.
func (w *writer) fieldRows(rows *[][]string, fields []render.FieldRow, depth int) {
	indent := strings.Repeat("&nbsp;&nbsp;", depth)
	if depth > 0 {
		indent += "↳ "
	}
	for _, f := range fields {
		typ := f.Type
		if f.Nested != nil && typ == "" {
			typ = string(f.NestedKind)
		}
		name := indent
		if f.Name != "" {
			name += code(f.Name)
		} else {
			name += "*anonymous*"
		}
		*rows = append(*rows, []string{name, codeOrEmpty(typ), w.cell(f.Description)})
		if f.Nested != nil {
			w.fieldRows(rows, f.Nested, depth+1)
		}
	}
}

func (w *writer) values(head string, vals []render.ValueRow) {
	if len(vals) == 0 {
		return
	}
	rows := make([][]string, len(vals))
	for i, v := range vals {
		rows[i] = []string{code(v.Value), w.cell(v.Description)}
	}
	w.table([]string{head, "Description"}, rows)
}

// table writes a GFM table. Columns after the first that are empty in
// every row are dropped.
func (w *writer) table(head []string, rows [][]string) {
	keep := make([]bool, len(head))
	keep[0] = true
	for _, r := range rows {
		for i, c := range r {
			if c != "" {
				keep[i] = true
			}
		}
	}
	line := func(cells []string) {
		w.b.WriteString("|")
		for i, c := range cells {
			if keep[i] {
				w.b.WriteString(" " + c + " |")
			}
		}
		w.b.WriteString("\n")
	}
	line(head)
	sep := make([]string, len(head))
	for i := range sep {
		sep[i] = "---"
	}
	line(sep)
	for _, r := range rows {
		line(r)
	}
	w.b.WriteString("\n")
}

func (w *writer) blocks(blocks []render.Block) {
	for _, b := range blocks {
		if b.IsCode() {
			w.fence(b.Lang, b.Code)
			continue
		}
		w.para(w.prose(b.Prose))
	}
}

func (w *writer) fence(lang, text string) {
	if text == "" {
		return
	}
	ticks := "```"
	for strings.Contains(text, ticks) {
		ticks += "`"
	}
	fmt.Fprintf(&w.b, "%s%s\n%s\n%s\n\n", ticks, lang, text, ticks)
}

func (w *writer) callouts(cs []render.Callout) {
	for _, c := range cs {
		style, ok := calloutStyle[c.Kind]
		if !ok {
			style.typ, style.title = "info", string(c.Kind)
		}
		fmt.Fprintf(&w.b, "<Callout type=%q title=%q>\n\n%s\n\n</Callout>\n\n", style.typ, style.title, w.prose(c.Text))
	}
}

func (w *writer) assets(as []render.Asset) {
	for _, a := range as {
		if a.Path != "" {
			var attrs []string
			attrs = append(attrs, attr("kind", string(a.Kind)), attr("src", a.Path))
			if a.Fragment != "" {
				attrs = append(attrs, attr("fragment", a.Fragment))
			}
			if a.Format != "" {
				attrs = append(attrs, attr("format", a.Format))
			}
			if a.Caption != "" {
				attrs = append(attrs, attr("caption", a.Caption))
			}
			w.para("<AssetRef " + strings.Join(attrs, " ") + " />")
		}
		if a.Code != "" {
			w.para("**Example**")
			w.fence("c", a.Code)
		}
	}
}

func (w *writer) prose(p render.Prose) string {
	var sb strings.Builder
	for _, s := range p {
		switch s.Kind {
		case render.SpanLink:
			fmt.Fprintf(&sb, "[%s](%s)", escape(s.Text), w.href(s))
		case render.SpanCode:
			sb.WriteString(code(s.Text))
		case render.SpanEmphasis:
			sb.WriteString("*" + escape(s.Text) + "*")
		case render.SpanStrong:
			sb.WriteString("**" + escape(s.Text) + "**")
		default:
			sb.WriteString(escape(s.Text))
		}
	}
	return strings.TrimSpace(sb.String())
}

// cell renders prose for a table cell, which must stay on one line.
func (w *writer) cell(p render.Prose) string {
	return strings.ReplaceAll(oneLine(w.prose(p)), "|", `\|`)
}

func (w *writer) href(s render.Span) string {
	switch {
	case s.Document == w.doc && s.Anchor != "":
		return "#" + s.Anchor
	case s.Anchor != "":
		return "./" + s.Document + "#" + s.Anchor
	default:
		return "./" + s.Document
	}
}

func escape(s string) string {
	return textEscaper.Replace(s)
}

func code(s string) string {
	if strings.Contains(s, "`") {
		return "`` " + s + " ``"
	}
	return "`" + s + "`"
}

func codeOrEmpty(s string) string {
	if s == "" {
		return ""
	}
	return code(s)
}

func attr(name, value string) string {
	return fmt.Sprintf(`%s="%s"`, name, strings.ReplaceAll(value, `"`, "&quot;"))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
