package render

import (
	"regexp"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
)

// inlineRe matches the inline commands that survive comment parsing:
// \ref X, \link X text \endlink and the styling commands.
var inlineRe = regexp.MustCompile(
	`[@\\](?:ref[ \t]+([A-Za-z_][A-Za-z0-9_:]*(?:\(\))?)` +
		`|link[ \t]+([A-Za-z_][A-Za-z0-9_:]*)[ \t]*(.*?)[ \t]*[@\\]endlink` +
		`|(p|c|a|b|e|em)[ \t]+([^\s.,;:()]+))`)

var fenceRe = regexp.MustCompile("(?s)^```([A-Za-z0-9_+-]*)\n(.*?)\n?```$")

// prose converts comment text into spans, resolving references with link.
func (b *builder) prose(text string) Prose {
	if text == "" {
		return nil
	}
	var out Prose
	emit := func(s Span) {
		if s.Text == "" {
			return
		}
		if s.Kind == SpanText && len(out) > 0 && out[len(out)-1].Kind == SpanText {
			out[len(out)-1].Text += s.Text
			return
		}
		out = append(out, s)
	}

	last := 0
	for _, m := range inlineRe.FindAllStringSubmatchIndex(text, -1) {
		emit(Span{Kind: SpanText, Text: text[last:m[0]]})
		last = m[1]
		switch {
		case m[2] >= 0:
			emit(b.link(text[m[2]:m[3]], ""))
		case m[4] >= 0:
			label := ""
			if m[6] >= 0 {
				label = text[m[6]:m[7]]
			}
			emit(b.link(text[m[4]:m[5]], label))
		case m[8] >= 0:
			word := text[m[10]:m[11]]
			switch text[m[8]:m[9]] {
			case "p", "c":
				emit(Span{Kind: SpanCode, Text: word})
			case "b":
				emit(Span{Kind: SpanStrong, Text: word})
			default:
				emit(Span{Kind: SpanEmphasis, Text: word})
			}
		}
	}
	emit(Span{Kind: SpanText, Text: text[last:]})
	return out
}

// link resolves target to a span. Unknown or hidden targets become text.
func (b *builder) link(target, label string) Span {
	if label == "" {
		label = target
	}
	d, ok := b.table.Resolve(strings.TrimSuffix(target, "()"))
	if !ok || !b.visible(d) {
		return Span{Kind: SpanText, Text: label}
	}
	s := Span{Kind: SpanLink, Text: label, Document: b.table.DocumentOf(d)}
	if d.Kind != model.KindPage && d.Kind != model.KindGroup {
		s.Anchor = Anchor(d.Name)
	}
	return s
}

// blocks converts detailed paragraphs, splitting out fenced code.
func (b *builder) blocks(paras []string) []Block {
	var out []Block
	for _, p := range paras {
		if m := fenceRe.FindStringSubmatch(p); m != nil {
			out = append(out, Block{Code: m[2], Lang: m[1]})
			continue
		}
		if pr := b.prose(p); len(pr) > 0 {
			out = append(out, Block{Prose: pr})
		}
	}
	return out
}

// Anchor returns the in-document anchor for a symbol name.
func Anchor(name string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			sb.WriteRune(r)
			dash = false
		case !dash && sb.Len() > 0:
			sb.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}
