package decl

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
)

var (
	continuationRe = regexp.MustCompile(`[ \t]*\\\r?\n`)
	defineRe       = regexp.MustCompile(`^\s*#\s*define\s+([A-Za-z_][A-Za-z0-9_]*)`)
	memberDocRe    = regexp.MustCompile(`(?s)/\*\*<.*?\*/`)
)

// ErrNotDefine is returned by ParseMacro for directives other than #define.
var ErrNotDefine = fmt.Errorf("%w: not a #define", ErrUnrecognized)

// JoinContinuations removes backslash-newline continuation markers, keeping
// the physical line breaks so the replacement text reads as written.
func JoinContinuations(s string) string {
	return continuationRe.ReplaceAllString(s, "\n")
}

// ParseMacro parses a #define directive. A trailing /**< */ comment is
// returned separately as the macro's member documentation.
func ParseMacro(directive string) (*model.Declaration, string, error) {
	text := JoinContinuations(directive)
	m := defineRe.FindStringSubmatchIndex(text)
	if m == nil {
		return nil, "", ErrNotDefine
	}
	name := text[m[2]:m[3]]
	rest := text[m[1]:]

	var memberDoc string
	if loc := memberDocRe.FindStringIndex(rest); loc != nil {
		memberDoc = rest[loc[0]:loc[1]]
		rest = rest[:loc[0]] + rest[loc[1]:]
	}

	mac := &model.Macro{}
	if strings.HasPrefix(rest, "(") {
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return nil, "", fmt.Errorf("%w: unclosed parameter list in macro %s", ErrUnrecognized, name)
		}
		mac.FunctionLike = true
		if list := strings.TrimSpace(rest[1:end]); list != "" {
			for _, p := range strings.Split(list, ",") {
				p = strings.TrimSpace(p)
				if strings.HasSuffix(p, "...") {
					mac.Variadic = true
				}
				mac.Params = append(mac.Params, p)
			}
		}
		rest = rest[end+1:]
	}
	mac.Value = cleanValue(rest)

	return &model.Declaration{
		Kind:  model.KindMacro,
		Name:  name,
		Macro: mac,
	}, memberDoc, nil
}

// cleanValue strips comments from a replacement list and trims each line,
// dropping blank ones.
func cleanValue(s string) string {
	s = commentRe.ReplaceAllString(s, " ")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		return ""
	}
	lines[0] = strings.TrimSpace(lines[0])
	return strings.Join(lines, "\n")
}

