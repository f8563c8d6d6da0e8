// Package comment parses Doxygen-style doc comments into model.DocComment.
package comment

import (
	"regexp"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
)

var (
	tagRe       = regexp.MustCompile(`(?:^|[ \t])[@\\]([A-Za-z_][A-Za-z0-9_]*)`)
	inlineRefRe = regexp.MustCompile(`[@\\]ref[ \t]+([A-Za-z_][A-Za-z0-9_:]*)`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// inline commands stay in running text instead of starting a tag paragraph.
var inline = map[string]bool{
	"a": true, "b": true, "c": true, "e": true, "em": true, "p": true,
	"n": true, "ref": true, "link": true, "endlink": true,
}

var aliases = map[string]model.TagKind{
	"brief":         model.TagBrief,
	"short":         model.TagBrief,
	"param":         model.TagParam,
	"tparam":        model.TagParam,
	"return":        model.TagReturns,
	"returns":       model.TagReturns,
	"result":        model.TagReturns,
	"retval":        model.TagRetval,
	"see":           model.TagSee,
	"sa":            model.TagSee,
	"since":         model.TagSince,
	"deprecated":    model.TagDeprecated,
	"internal":      model.TagInternal,
	"note":          model.TagNote,
	"remark":        model.TagNote,
	"remarks":       model.TagNote,
	"warning":       model.TagWarning,
	"attention":     model.TagWarning,
	"todo":          model.TagTodo,
	"bug":           model.TagBug,
	"error":         model.TagError,
	"copydoc":       model.TagCopydoc,
	"ingroup":       model.TagIngroup,
	"defgroup":      model.TagDefgroup,
	"addtogroup":    model.TagDefgroup,
	"page":          model.TagPage,
	"mainpage":      model.TagMainpage,
	"file":          model.TagFile,
	"image":         model.TagImage,
	"include":       model.TagInclude,
	"includelineno": model.TagInclude,
	"verbinclude":   model.TagInclude,
	"snippet":       model.TagSnippet,
	"snippetlineno": model.TagSnippet,
	"example":       model.TagExample,
	"author":        model.TagAuthor,
	"authors":       model.TagAuthor,
	"version":       model.TagVersion,
	"pre":           model.TagPre,
	"post":          model.TagPost,
}

// lineScoped tags take only the rest of their line; following lines are
// free text again.
var lineScoped = map[string]bool{
	"page": true, "mainpage": true, "defgroup": true, "addtogroup": true,
	"file": true, "ingroup": true, "copydoc": true, "image": true,
	"include": true, "includelineno": true, "verbinclude": true,
	"snippet": true, "snippetlineno": true,
}

var imageFormats = map[string]bool{
	"html": true, "latex": true, "rtf": true, "docbook": true, "xml": true,
}

// item is one text paragraph run or one tag with its payload lines.
type item struct {
	name  string // raw tag name; empty for free text
	lines []string
	line  int
}

// IsMemberDoc reports whether raw is a trailing member comment (/**< ... */).
func IsMemberDoc(raw string) bool {
	return strings.HasPrefix(raw, "/**<")
}

// Parse converts a raw /** ... */ comment into a DocComment.
func Parse(raw string) *model.DocComment {
	items := split(clean(raw))
	return build(items)
}

// clean strips the delimiters and per-line decoration.
func clean(raw string) []string {
	body := strings.TrimPrefix(raw, "/**")
	body = strings.TrimPrefix(body, "<")
	body = strings.TrimSuffix(body, "*/")

	var lines []string
	for _, l := range strings.Split(body, "\n") {
		l = strings.TrimRight(l, " \t\r")
		l = strings.TrimLeft(l, " \t")
		if strings.HasPrefix(l, "*") {
			l = strings.TrimLeft(l, "*")
			l = strings.TrimPrefix(l, " ")
		}
		lines = append(lines, l)
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// blockTags returns the positions of tag markers in line that start a new
// tag paragraph: [markerStart, nameEnd] pairs plus the tag name.
func blockTags(line string) (spans [][2]int, names []string) {
	for _, m := range tagRe.FindAllStringSubmatchIndex(line, -1) {
		name := line[m[2]:m[3]]
		if inline[name] {
			continue
		}
		start := m[0]
		if line[start] == ' ' || line[start] == '\t' {
			start++
		}
		spans = append(spans, [2]int{start, m[3]})
		names = append(names, name)
	}
	return pruneProse(line, spans, names)
}

// pruneProse drops mid-line @copydoc markers followed by several words:
// "@brief Alias using @copydoc to inherit docs." mentions the command
// rather than using it, since @copydoc takes exactly one argument.
func pruneProse(line string, spans [][2]int, names []string) ([][2]int, []string) {
	for k := len(spans) - 1; k >= 0; k-- {
		if names[k] != "copydoc" || spans[k][0] == leadingSpace(line) {
			continue
		}
		end := len(line)
		if k+1 < len(spans) {
			end = spans[k+1][0]
		}
		if len(strings.Fields(line[spans[k][1]:end])) > 1 {
			spans = append(spans[:k], spans[k+1:]...)
			names = append(names[:k], names[k+1:]...)
		}
	}
	return spans, names
}

func split(lines []string) []*item {
	cur := &item{}
	items := []*item{cur}
	inCode := false
	inExample := false

	for n, line := range lines {
		if inCode {
			if i := markerIndex(line, "endcode"); i >= 0 {
				if pre := strings.TrimRight(line[:i], " \t"); pre != "" {
					cur.lines = append(cur.lines, pre)
				}
				cur.lines = append(cur.lines, "```", "")
				inCode = false
				continue
			}
			cur.lines = append(cur.lines, line)
			continue
		}

		spans, names := blockTags(line)

		if inExample {
			if len(spans) == 0 || spans[0][0] != leadingSpace(line) {
				cur.lines = append(cur.lines, line)
				continue
			}
			inExample = false
		}

		if strings.TrimSpace(line) == "" {
			if cur.name != "" {
				cur = &item{line: n}
				items = append(items, cur)
			}
			cur.lines = append(cur.lines, "")
			continue
		}

		if len(spans) == 0 {
			cur.lines = append(cur.lines, line)
			continue
		}

		if pre := strings.TrimSpace(line[:spans[0][0]]); pre != "" {
			cur.lines = append(cur.lines, pre)
		}
		for k, sp := range spans {
			end := len(line)
			if k+1 < len(spans) {
				end = spans[k+1][0]
			}
			payload := strings.TrimSpace(line[sp[1]:end])
			switch names[k] {
			case "code":
				if cur.name != "" {
					cur = &item{line: n}
					items = append(items, cur)
				}
				cur.lines = append(cur.lines, "", "```c")
				inCode = true
			case "endcode":
			case "details":
				cur = &item{line: n}
				items = append(items, cur)
				cur.lines = append(cur.lines, "", payload)
			default:
				cur = &item{name: names[k], line: n}
				items = append(items, cur)
				cur.lines = append(cur.lines, payload)
				if names[k] == "example" {
					inExample = true
				}
			}
			if inCode {
				break
			}
		}
		if lineScoped[cur.name] {
			cur = &item{line: n + 1}
			items = append(items, cur)
		}
	}
	if inCode {
		cur.lines = append(cur.lines, "```")
	}
	return items
}

func leadingSpace(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

func markerIndex(line, name string) int {
	for _, prefix := range []string{"@", `\`} {
		if i := strings.Index(line, prefix+name); i >= 0 {
			return i
		}
	}
	return -1
}

func build(items []*item) *model.DocComment {
	doc := model.NewDocComment()
	var paragraphs []string
	var briefs []string
	var refs []string

	for _, it := range items {
		if it.name == "" {
			paragraphs = append(paragraphs, toParagraphs(it.lines)...)
			refs = append(refs, inlineRefs(strings.Join(it.lines, " "))...)
			continue
		}
		text := collapse(strings.Join(it.lines, " "))
		refs = append(refs, inlineRefs(text)...)

		kind, known := aliases[it.name]
		if !known {
			doc.Add(model.Tag{Kind: model.TagExtension, Name: it.name, Text: text, Line: it.line})
			continue
		}
		if kind == model.TagBrief {
			briefs = append(briefs, text)
			continue
		}
		for _, t := range payloadTags(kind, it, text) {
			doc.Add(t)
		}
	}

	if len(briefs) > 0 {
		brief, rest := firstSentence(strings.Join(briefs, " "))
		doc.Brief = brief
		if rest != "" {
			doc.Detailed = append(doc.Detailed, rest)
		}
		doc.Detailed = append(doc.Detailed, paragraphs...)
	} else if len(paragraphs) > 0 && !strings.HasPrefix(paragraphs[0], "```") {
		brief, rest := firstSentence(paragraphs[0])
		doc.Brief = brief
		if rest != "" {
			doc.Detailed = append(doc.Detailed, rest)
		}
		doc.Detailed = append(doc.Detailed, paragraphs[1:]...)
	} else {
		doc.Detailed = paragraphs
	}

	seen := make(map[string]bool)
	for _, r := range refs {
		if !seen[r] {
			seen[r] = true
			doc.Add(model.Tag{Kind: model.TagRef, Name: "ref", Arg: r})
		}
	}

	if doc.Has(model.TagCopydoc) {
		doc.Brief = ""
		doc.Detailed = nil
		delete(doc.Tags, model.TagParam)
		delete(doc.Tags, model.TagReturns)
		delete(doc.Tags, model.TagRetval)
	}
	return doc
}

func payloadTags(kind model.TagKind, it *item, text string) []model.Tag {
	base := model.Tag{Kind: kind, Name: it.name, Line: it.line}
	switch kind {
	case model.TagParam:
		t := base
		rest := text
		if strings.HasPrefix(rest, "[") {
			if end := strings.Index(rest, "]"); end > 0 {
				t.Direction = strings.ToLower(strings.ReplaceAll(rest[1:end], " ", ""))
				rest = strings.TrimSpace(rest[end+1:])
			}
		}
		t.Arg, t.Text = head(rest)
		return []model.Tag{t}

	case model.TagError, model.TagRetval:
		t := base
		t.Arg, t.Text = head(text)
		return []model.Tag{t}

	case model.TagSee:
		var out []model.Tag
		for _, part := range strings.Split(text, ",") {
			name, rest := head(strings.TrimSpace(part))
			if name == "" {
				continue
			}
			t := base
			t.Arg, t.Text = symbolName(name), rest
			out = append(out, t)
		}
		return out

	case model.TagCopydoc:
		t := base
		name, _ := head(text)
		t.Arg = symbolName(name)
		return []model.Tag{t}

	case model.TagIngroup:
		var out []model.Tag
		for _, g := range strings.Fields(text) {
			t := base
			t.Arg = g
			out = append(out, t)
		}
		return out

	case model.TagDefgroup, model.TagPage, model.TagFile:
		t := base
		t.Arg, t.Text = head(text)
		return []model.Tag{t}

	case model.TagMainpage:
		t := base
		t.Arg, t.Text = "index", text
		return []model.Tag{t}

	case model.TagImage:
		t := base
		first, rest := head(text)
		if imageFormats[strings.ToLower(first)] {
			t.Format = strings.ToLower(first)
			first, rest = head(rest)
		}
		t.Path = first
		t.Caption = strings.Trim(rest, `"`)
		return []model.Tag{t}

	case model.TagInclude:
		t := base
		t.Path, _ = head(text)
		return []model.Tag{t}

	case model.TagSnippet:
		t := base
		var rest string
		t.Path, rest = head(text)
		t.Fragment, _ = head(rest)
		return []model.Tag{t}

	case model.TagExample:
		t := base
		if len(it.lines) > 0 {
			t.Path, _ = head(strings.TrimSpace(it.lines[0]))
		}
		t.Text = verbatim(it.lines[1:])
		return []model.Tag{t}

	default:
		t := base
		t.Text = text
		return []model.Tag{t}
	}
}

// head splits s into its first word and the trimmed remainder.
func head(s string) (string, string) {
	s = strings.TrimSpace(s)
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// symbolName strips call parentheses and trailing punctuation from a reference.
func symbolName(s string) string {
	s = strings.TrimRight(s, ".;:")
	return strings.TrimSuffix(s, "()")
}

func inlineRefs(s string) []string {
	var out []string
	for _, m := range inlineRefRe.FindAllStringSubmatch(s, -1) {
		out = append(out, symbolName(m[1]))
	}
	return out
}

func verbatim(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// toParagraphs groups lines into blank-line separated paragraphs. Fenced
// code is kept line-for-line.
func toParagraphs(lines []string) []string {
	var out []string
	var buf []string
	fenced := false
	flush := func() {
		if len(buf) == 0 {
			return
		}
		if strings.HasPrefix(buf[0], "```") {
			out = append(out, strings.Join(buf, "\n"))
		} else if hasListItem(buf) {
			for i := range buf {
				buf[i] = strings.TrimSpace(buf[i])
			}
			out = append(out, strings.Join(buf, "\n"))
		} else if p := collapse(strings.Join(buf, " ")); p != "" {
			out = append(out, p)
		}
		buf = nil
	}
	for _, l := range lines {
		if strings.HasPrefix(l, "```") {
			if !fenced {
				flush()
				fenced = true
				buf = append(buf, l)
				continue
			}
			buf = append(buf, l)
			fenced = false
			flush()
			continue
		}
		if fenced {
			buf = append(buf, l)
			continue
		}
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		buf = append(buf, l)
	}
	flush()
	return out
}

func hasListItem(lines []string) bool {
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(l, "- ") || strings.HasPrefix(l, "+ ") {
			return true
		}
	}
	return false
}

var abbreviations = []string{"e.g.", "i.e.", "etc.", "vs.", "approx."}

// firstSentence splits s after the first sentence terminator that is
// followed by whitespace and an upper-case letter.
func firstSentence(s string) (string, string) {
	s = collapse(s)
	for i := 0; i+2 < len(s); i++ {
		c := s[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if s[i+1] != ' ' || !isUpper(s[i+2]) {
			continue
		}
		if c == '.' && endsWithAbbrev(s[:i+1]) {
			continue
		}
		return s[:i+1], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

func endsWithAbbrev(s string) bool {
	lower := strings.ToLower(s)
	for _, a := range abbreviations {
		if strings.HasSuffix(lower, a) {
			return true
		}
	}
	return false
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
