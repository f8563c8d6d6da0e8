// Package cond tracks nested conditional-compilation regions and the
// definition set they are evaluated against.
package cond

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/scan"
)

var (
	// ErrUnbalanced reports a stray #else/#elif/#endif or a block left open at EOF.
	ErrUnbalanced = errors.New("unbalanced conditional")

	directiveRe = regexp.MustCompile(`^\s*#\s*([A-Za-z_]+)\b(.*)$`)
	commentRe   = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
	identRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	definedRe   = regexp.MustCompile(`^(!?)\s*defined\s*(?:\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)|([A-Za-z_][A-Za-z0-9_]*))$`)
)

type frame struct {
	kind      model.DirectiveKind
	symbol    string
	start     model.Position
	parentOn  bool
	taken     bool // some earlier branch was satisfied
	on        bool // current branch is satisfied
	guard     bool
	branch    model.Condition
	negations []model.Condition
}

// Tracker follows #if/#ifdef/#ifndef/#elif/#else/#endif nesting and the
// #define/#undef statements that are live in the current region.
type Tracker struct {
	defined map[string]bool
	stack   []*frame
	blocks  []model.ConditionalBlock
}

// NewTracker returns a Tracker seeded with the configured definitions. The
// map is copied.
func NewTracker(defined map[string]bool) *Tracker {
	d := make(map[string]bool, len(defined))
	for k, v := range defined {
		if v {
			d[k] = true
		}
	}
	return &Tracker{defined: d}
}

// Directive processes one directive segment. Directives the tracker does not
// care about (#include, #pragma, #error, ...) are ignored. A stray
// #else/#elif/#endif returns ErrUnbalanced.
func (t *Tracker) Directive(seg scan.Segment) error {
	name, arg := Split(seg.Text)
	switch name {
	case "ifdef":
		sym := firstWord(arg)
		t.push(model.DirIfdef, sym, seg.Range.Start, model.Condition{Symbol: sym, Defined: true}, t.defined[sym])
	case "ifndef":
		sym := firstWord(arg)
		t.push(model.DirIfndef, sym, seg.Range.Start, model.Condition{Symbol: sym, Defined: false}, !t.defined[sym])
	case "if":
		c, on := t.eval(arg)
		t.push(model.DirIf, c.Symbol, seg.Range.Start, c, on)
	case "elif":
		f, err := t.top(seg, "#elif")
		if err != nil {
			return err
		}
		c, on := t.eval(arg)
		f.negations = append(f.negations, negate(f.branch))
		f.branch = c
		f.on = on && !f.taken
		f.taken = f.taken || on
	case "else":
		f, err := t.top(seg, "#else")
		if err != nil {
			return err
		}
		f.negations = append(f.negations, negate(f.branch))
		f.branch = model.Condition{}
		f.on = !f.taken
		f.taken = true
	case "endif":
		f, err := t.top(seg, "#endif")
		if err != nil {
			return err
		}
		t.stack = t.stack[:len(t.stack)-1]
		t.blocks = append(t.blocks, model.ConditionalBlock{
			Kind:   f.kind,
			Symbol: f.symbol,
			Range:  model.Range{Start: f.start, End: seg.Range.End},
		})
	case "define":
		if t.Active() {
			if sym := firstWord(arg); sym != "" {
				t.defined[macroName(sym)] = true
			}
		}
	case "undef":
		if t.Active() {
			delete(t.defined, firstWord(arg))
		}
	}
	return nil
}

// Split returns the directive name and the rest of its text with comments
// and continuations removed.
func Split(text string) (string, string) {
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")
	m := directiveRe.FindStringSubmatch(commentRe.ReplaceAllString(text, " "))
	if m == nil {
		return "", ""
	}
	return m[1], strings.TrimSpace(m[2])
}

func (t *Tracker) push(kind model.DirectiveKind, sym string, start model.Position, c model.Condition, on bool) {
	t.stack = append(t.stack, &frame{
		kind:     kind,
		symbol:   sym,
		start:    start,
		parentOn: t.Active(),
		taken:    on,
		on:       on,
		branch:   c,
	})
}

func (t *Tracker) top(seg scan.Segment, what string) (*frame, error) {
	if len(t.stack) == 0 {
		return nil, fmt.Errorf("line %d: %s without matching #if: %w", seg.Range.Start.Line, what, ErrUnbalanced)
	}
	return t.stack[len(t.stack)-1], nil
}

// eval understands 0, 1, X, defined(X) and !defined(X). Anything else is
// recorded verbatim and treated as satisfied.
func (t *Tracker) eval(expr string) (model.Condition, bool) {
	expr = strings.TrimSpace(expr)
	for strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") && balanced(expr[1:len(expr)-1]) {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	switch {
	case expr == "0":
		return model.Condition{Expr: "0"}, false
	case expr == "1":
		return model.Condition{Expr: "1"}, true
	case identRe.MatchString(expr):
		return model.Condition{Symbol: expr, Defined: true}, t.defined[expr]
	}
	if m := definedRe.FindStringSubmatch(expr); m != nil {
		sym := m[2]
		if sym == "" {
			sym = m[3]
		}
		want := m[1] == ""
		return model.Condition{Symbol: sym, Defined: want}, t.defined[sym] == want
	}
	return model.Condition{Expr: expr}, true
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func negate(c model.Condition) model.Condition {
	switch {
	case c.Expr == "0":
		return model.Condition{Expr: "1"}
	case c.Expr == "1":
		return model.Condition{Expr: "0"}
	case c.Expr != "":
		return model.Condition{Expr: "!(" + c.Expr + ")"}
	case c.Symbol == "":
		return c
	}
	return model.Condition{Symbol: c.Symbol, Defined: !c.Defined}
}

// Active reports whether every enclosing branch is satisfied by the
// current definition set.
func (t *Tracker) Active() bool {
	if len(t.stack) == 0 {
		return true
	}
	f := t.stack[len(t.stack)-1]
	return f.parentOn && f.on
}

// Depth returns the current nesting depth.
func (t *Tracker) Depth() int {
	return len(t.stack)
}

// Conditions returns the conjunction governing the current position,
// outermost first. Trivial "1" conditions are omitted.
func (t *Tracker) Conditions() []model.Condition {
	var out []model.Condition
	for _, f := range t.stack {
		if f.guard {
			continue
		}
		for _, c := range append(append([]model.Condition(nil), f.negations...), f.branch) {
			if (c.Symbol == "" && c.Expr == "") || c.Expr == "1" {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// MarkGuard flags the innermost block as an include guard. Guard blocks
// do not contribute to Conditions.
func (t *Tracker) MarkGuard() {
	if len(t.stack) > 0 {
		t.stack[len(t.stack)-1].guard = true
	}
}

// Defined reports whether sym is currently defined.
func (t *Tracker) Defined(sym string) bool {
	return t.defined[sym]
}

// Blocks returns the closed blocks in the order their #endif was seen.
func (t *Tracker) Blocks() []model.ConditionalBlock {
	return t.blocks
}

// Close ends tracking at EOF. Open blocks are closed at end and reported
// with ErrUnbalanced.
func (t *Tracker) Close(end model.Position) error {
	if len(t.stack) == 0 {
		return nil
	}
	open := t.stack[0]
	n := len(t.stack)
	for i := len(t.stack) - 1; i >= 0; i-- {
		f := t.stack[i]
		t.blocks = append(t.blocks, model.ConditionalBlock{
			Kind:   f.kind,
			Symbol: f.symbol,
			Range:  model.Range{Start: f.start, End: end},
		})
	}
	t.stack = nil
	return fmt.Errorf("line %d: %d conditional block(s) not closed by #endif: %w", open.start.Line, n, ErrUnbalanced)
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// macroName strips a function-like parameter list from a #define name.
func macroName(s string) string {
	if i := strings.IndexByte(s, '('); i >= 0 {
		return s[:i]
	}
	return s
}
