// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// the generated API index.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/render"
)

// Ext is the file extension of the encoded index.
const Ext = ".toon"

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts the rendered documents and the resolved cross-references
// into one TOON index. Only symbols visible in docs are listed.
func Encode(project string, docs []render.Document, refs []model.CrossReference) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", encodeValue(project)))
	parts = append(parts, fmt.Sprintf("generator: %s", encodeValue(model.Generator)))

	var symbolRows [][]string
	var docRows [][]string
	for i := range docs {
		doc := &docs[i]
		docRows = append(docRows, []string{doc.ID, doc.Title, strconv.Itoa(doc.EntryCount())})
		for _, s := range doc.Sections {
			for j := range s.Entries {
				e := &s.Entries[j]
				symbolRows = append(symbolRows, []string{
					e.Name,
					string(e.Kind),
					e.File,
					strconv.Itoa(e.Line),
					doc.ID,
					e.Signature,
					e.Brief.PlainText(),
				})
			}
		}
	}
	parts = append(parts, formatTabular("symbols", []string{"name", "kind", "file", "line", "group", "signature", "brief"}, symbolRows))

	var refRows [][]string
	for i := range refs {
		r := &refs[i]
		refRows = append(refRows, []string{r.Source, r.Target, string(r.State)})
	}
	parts = append(parts, formatTabular("references", []string{"source", "target", "state"}, refRows))

	parts = append(parts, formatTabular("documents", []string{"id", "title", "entries"}, docRows))

	return strings.Join(parts, "\n") + "\n"
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") || strings.HasPrefix(value, "#") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
