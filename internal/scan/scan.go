// Package scan splits C/C++ header text into lexical segments: code,
// comments, literals and preprocessor directives.
package scan

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
)

// Kind is the lexical class of a Segment.
type Kind int

const (
	Code Kind = iota
	LineComment
	BlockComment
	DocBlockComment
	Directive
	StringOrCharLiteral
)

func (k Kind) String() string {
	switch k {
	case Code:
		return "code"
	case LineComment:
		return "line_comment"
	case BlockComment:
		return "block_comment"
	case DocBlockComment:
		return "doc_comment"
	case Directive:
		return "directive"
	case StringOrCharLiteral:
		return "literal"
	default:
		return "unknown"
	}
}

var (
	ErrUnterminatedComment = errors.New("unterminated block comment")
	ErrUnterminatedLiteral = errors.New("unterminated string or character literal")
)

// Segment is one lexical span of the input.
type Segment struct {
	Kind  Kind
	Text  string
	Range model.Range
}

// Blank reports whether a Code segment holds only whitespace.
func (s Segment) Blank() bool {
	return s.Kind == Code && strings.TrimSpace(s.Text) == ""
}

// Scanner produces segments for one source text.
type Scanner struct {
	src        string
	lineStarts []int
	err        error
}

// New returns a Scanner over src.
func New(src string) *Scanner {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Scanner{src: src, lineStarts: starts}
}

// Err returns the error that stopped the most recent iteration, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Position converts a byte offset into a line/column position.
func (s *Scanner) Position(off int) model.Position {
	line := sort.Search(len(s.lineStarts), func(i int) bool { return s.lineStarts[i] > off }) - 1
	if line < 0 {
		line = 0
	}
	return model.Position{Line: line + 1, Column: off - s.lineStarts[line] + 1, Offset: off}
}

func (s *Scanner) segment(kind Kind, start, end int) Segment {
	return Segment{
		Kind:  kind,
		Text:  s.src[start:end],
		Range: model.Range{Start: s.Position(start), End: s.Position(end)},
	}
}

func (s *Scanner) fail(sentinel error, off int) {
	s.err = fmt.Errorf("line %d: %w", s.Position(off).Line, sentinel)
}

// Segments returns the segment sequence. Each call restarts from the
// beginning of the text and clears any previous error. Iteration stops at
// the first unterminated comment or literal; check Err afterwards.
func (s *Scanner) Segments() iter.Seq[Segment] {
	return func(yield func(Segment) bool) {
		s.err = nil
		src := s.src
		codeStart := 0
		lineHasCode := false

		flush := func(end int) bool {
			if end > codeStart {
				return yield(s.segment(Code, codeStart, end))
			}
			return true
		}

		i := 0
		for i < len(src) {
			ch := src[i]
			switch {
			case ch == '/' && i+1 < len(src) && src[i+1] == '/':
				if !flush(i) {
					return
				}
				end := lineEnd(src, i)
				if !yield(s.segment(LineComment, i, end)) {
					return
				}
				i, codeStart = end, end

			case ch == '/' && i+1 < len(src) && src[i+1] == '*':
				if !flush(i) {
					return
				}
				close := strings.Index(src[i+2:], "*/")
				if close < 0 {
					s.fail(ErrUnterminatedComment, i)
					return
				}
				end := i + 2 + close + 2
				kind := BlockComment
				if isDocOpener(src[i:end]) {
					kind = DocBlockComment
				}
				if !yield(s.segment(kind, i, end)) {
					return
				}
				i, codeStart = end, end

			case ch == '"' || ch == '\'':
				if !flush(i) {
					return
				}
				end, ok := literalEnd(src, i)
				if !ok {
					s.fail(ErrUnterminatedLiteral, i)
					return
				}
				lineHasCode = true
				if !yield(s.segment(StringOrCharLiteral, i, end)) {
					return
				}
				i, codeStart = end, end

			case ch == '#' && !lineHasCode:
				if !flush(i) {
					return
				}
				end, ok := directiveEnd(src, i)
				if !ok {
					s.fail(ErrUnterminatedComment, i)
					return
				}
				if !yield(s.segment(Directive, i, end)) {
					return
				}
				i, codeStart = end, end

			default:
				if ch == '\n' {
					lineHasCode = false
				} else if ch != ' ' && ch != '\t' && ch != '\r' && ch != '\f' && ch != '\v' {
					lineHasCode = true
				}
				i++
			}
		}
		flush(len(src))
	}
}

// isDocOpener reports whether a block comment uses the /** opener followed
// by something other than '/'.
func isDocOpener(comment string) bool {
	return len(comment) > 4 && strings.HasPrefix(comment, "/**") && comment[3] != '/'
}

// lineEnd returns the offset of the newline ending the line comment that
// starts at i, honouring backslash continuations.
func lineEnd(src string, i int) int {
	for i < len(src) {
		if src[i] == '\n' {
			if continued(src, i) {
				i++
				continue
			}
			if i > 0 && src[i-1] == '\r' {
				return i - 1
			}
			return i
		}
		i++
	}
	return len(src)
}

// continued reports whether the newline at nl is escaped by a backslash.
func continued(src string, nl int) bool {
	j := nl - 1
	if j >= 0 && src[j] == '\r' {
		j--
	}
	return j >= 0 && src[j] == '\\'
}

// literalEnd returns the offset just past the literal opened at i.
func literalEnd(src string, i int) (int, bool) {
	quote := src[i]
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			return 0, false
		case quote:
			return j + 1, true
		}
	}
	return 0, false
}

// directiveEnd returns the end of the logical directive line starting at i.
// Embedded comments and quoted text are part of the directive. Quotes that
// are not closed on the line are tolerated (#error lines may contain
// apostrophes); an unterminated block comment is not.
func directiveEnd(src string, i int) (int, bool) {
	j := i + 1
	for j < len(src) {
		switch {
		case src[j] == '\n':
			if continued(src, j) {
				j++
				continue
			}
			if src[j-1] == '\r' {
				return j - 1, true
			}
			return j, true
		case src[j] == '/' && j+1 < len(src) && src[j+1] == '*':
			close := strings.Index(src[j+2:], "*/")
			if close < 0 {
				return 0, false
			}
			j += 2 + close + 2
		case src[j] == '/' && j+1 < len(src) && src[j+1] == '/':
			return lineEnd(src, j), true
		case src[j] == '"' || src[j] == '\'':
			end, ok := literalEnd(src, j)
			if !ok {
				j++
				continue
			}
			j = end
		default:
			j++
		}
	}
	return len(src), true
}
