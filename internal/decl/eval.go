package decl

import (
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

var (
	intSuffixRe = regexp.MustCompile(`\b(0[xX][0-9A-Fa-f]+|[0-9]+)[uUlL]+\b`)
	identRe     = regexp.MustCompile(`\b[A-Za-z_][A-Za-z0-9_]*\b`)
	charLitRe   = regexp.MustCompile(`'(\\.|[^'\\])'`)
)

// EvalConst evaluates a C integer constant expression as used in enumerator
// initialisers. Identifiers are looked up in known. It reports false when
// the expression uses anything else (casts, sizeof, unknown names).
func EvalConst(expr string, known map[string]int64) (int64, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0, false
	}
	expr = charLitRe.ReplaceAllStringFunc(expr, func(lit string) string {
		r, _, _, err := strconv.UnquoteChar(lit[1:len(lit)-1], '\'')
		if err != nil {
			return lit
		}
		return strconv.Itoa(int(r))
	})
	expr = intSuffixRe.ReplaceAllString(expr, "$1")
	// Go spells C's bitwise complement as unary ^
	expr = strings.ReplaceAll(expr, "~", "^")

	ok := true
	expr = identRe.ReplaceAllStringFunc(expr, func(id string) string {
		if id[0] >= '0' && id[0] <= '9' {
			return id
		}
		v, found := known[id]
		if !found {
			ok = false
			return id
		}
		return "(" + strconv.FormatInt(v, 10) + ")"
	})
	if !ok {
		return 0, false
	}

	node, err := parser.ParseExpr(expr)
	if err != nil {
		return 0, false
	}
	val, ok := evalNode(node)
	if !ok {
		return 0, false
	}
	return constant.Int64Val(val)
}

func evalNode(n ast.Expr) (constant.Value, bool) {
	switch n := n.(type) {
	case *ast.BasicLit:
		if n.Kind != token.INT {
			return nil, false
		}
		lit := n.Value
		// C octal: a leading zero without the Go 0o prefix
		if len(lit) > 1 && lit[0] == '0' && lit[1] >= '0' && lit[1] <= '9' {
			lit = "0o" + lit[1:]
		}
		v := constant.MakeFromLiteral(lit, token.INT, 0)
		return v, v.Kind() == constant.Int
	case *ast.ParenExpr:
		return evalNode(n.X)
	case *ast.UnaryExpr:
		x, ok := evalNode(n.X)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case token.SUB, token.ADD, token.XOR:
			return constant.UnaryOp(n.Op, x, 0), true
		}
		return nil, false
	case *ast.BinaryExpr:
		x, ok := evalNode(n.X)
		if !ok {
			return nil, false
		}
		y, ok := evalNode(n.Y)
		if !ok {
			return nil, false
		}
		switch n.Op {
		case token.SHL, token.SHR:
			s, ok := constant.Uint64Val(y)
			if !ok || s > 63 {
				return nil, false
			}
			return constant.Shift(x, n.Op, uint(s)), true
		case token.QUO, token.REM:
			if constant.Sign(y) == 0 {
				return nil, false
			}
			op := n.Op
			if op == token.QUO {
				op = token.QUO_ASSIGN // integer division
			}
			return constant.BinaryOp(x, op, y), true
		case token.ADD, token.SUB, token.MUL, token.AND, token.OR, token.XOR, token.AND_NOT:
			return constant.BinaryOp(x, n.Op, y), true
		}
	}
	return nil, false
}
