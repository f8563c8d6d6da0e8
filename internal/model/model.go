// Package model defines core data structures for headerdoc.
package model

import (
	"fmt"
	"strings"
)

// Generator names the tool in generated output. Files carrying Marker on
// a line of their own are treated as generated and may be overwritten.
const (
	Generator = "headerdoc"
	Marker    = "generator: " + Generator
)

// Position is a location in a source file. Line and Column are 1-based,
// Offset is a 0-based byte offset.
type Position struct {
	Line   int
	Column int
	Offset int
}

// Range is a half-open byte range [Start, End) in a source file.
type Range struct {
	Start Position
	End   Position
}

// DirectiveKind is the kind of a conditional compilation directive.
type DirectiveKind string

const (
	DirIfdef  DirectiveKind = "ifdef"
	DirIfndef DirectiveKind = "ifndef"
	DirIf     DirectiveKind = "if"
	DirElif   DirectiveKind = "elif"
	DirElse   DirectiveKind = "else"
	DirEndif  DirectiveKind = "endif"
)

// ConditionalBlock is one region governed by a conditional directive.
type ConditionalBlock struct {
	Kind   DirectiveKind
	Symbol string
	Range  Range
}

// SourceFile is one input header.
type SourceFile struct {
	Path     string
	Language string
	Text     string
	Blocks   []ConditionalBlock
	Doc      *DocComment // @file comment, if any
}

// Condition is one conjunct of a guard: Symbol must (or must not) be defined.
// Expr is set instead of Symbol for #if expressions that are not understood.
type Condition struct {
	Symbol  string
	Defined bool
	Expr    string
}

func (c Condition) String() string {
	switch {
	case c.Expr != "":
		return c.Expr
	case c.Defined:
		return c.Symbol + " defined"
	default:
		return c.Symbol + " not defined"
	}
}

// DeclKind is the variant tag of a Declaration.
type DeclKind string

const (
	KindFunction     DeclKind = "function"
	KindMacro        DeclKind = "macro"
	KindTypedef      DeclKind = "typedef"
	KindEnum         DeclKind = "enum"
	KindEnumConstant DeclKind = "enum_constant"
	KindStruct       DeclKind = "struct"
	KindUnion        DeclKind = "union"
	KindField        DeclKind = "field"
	KindPage         DeclKind = "page"
	KindGroup        DeclKind = "group"
)

// Param is one function parameter.
type Param struct {
	Name    string
	Type    string
	Comment string
}

// Function is the payload of a function declaration or function-pointer typedef.
type Function struct {
	ReturnType  string
	Params      []Param
	Variadic    bool
	HasBody     bool
	Storage     []string // static, inline, extern
	DuplicateOf string
}

// Macro is the payload of a #define.
type Macro struct {
	FunctionLike bool
	Params       []string
	Variadic     bool
	Value        string
}

// TypedefKind classifies what a typedef aliases.
type TypedefKind string

const (
	TypedefScalar          TypedefKind = "scalar"
	TypedefFunctionPointer TypedefKind = "function_pointer"
	TypedefStruct          TypedefKind = "struct"
	TypedefUnion           TypedefKind = "union"
	TypedefEnum            TypedefKind = "enum"
)

// Typedef is the payload of a typedef declaration.
type Typedef struct {
	Underlying TypedefKind
	Type       string
	TagName    string
	Signature  *Function
	Record     *Record
	Enum       *Enum
}

// EnumConstant is one enumerator.
type EnumConstant struct {
	Name     string
	Value    int64
	HasValue bool
	Expr     string
	Doc      *DocComment
}

// Enum is the payload of an enum declaration.
type Enum struct {
	Constants []EnumConstant
}

// Field is one struct or union member. Nested is set for anonymous nested
// struct/union members, whose fields are exposed under this field's name.
type Field struct {
	Name       string
	Type       string
	Doc        *DocComment
	Nested     *Record
	NestedKind DeclKind
}

// Record is the payload of a struct or union.
type Record struct {
	Fields []Field
}

// Page is the payload of a @page or @mainpage unit.
type Page struct {
	ID    string
	Title string
}

// Group is the payload of a @defgroup unit.
type Group struct {
	ID      string
	Title   string
	Members []string
}

// Declaration is a tagged variant over every documentable entity. Exactly
// one payload pointer matching Kind is set (EnumConstant uses Constant).
type Declaration struct {
	Kind       DeclKind
	Name       string
	File       string
	Range      Range
	Conditions []Condition
	Excluded   bool
	Doc        *DocComment

	Function *Function
	Macro    *Macro
	Typedef  *Typedef
	Enum     *Enum
	Constant *EnumConstant
	Record   *Record
	Page     *Page
	Group    *Group
}

// Line returns the 1-based line the declaration starts on.
func (d *Declaration) Line() int {
	return d.Range.Start.Line
}

// Internal reports whether the declaration is tagged @internal.
func (d *Declaration) Internal() bool {
	return d.Doc != nil && d.Doc.Has(TagInternal)
}

// Signature renders a normalised one-line signature used both for display
// and for duplicate detection.
func (d *Declaration) Signature() string {
	switch d.Kind {
	case KindFunction:
		return FunctionSignature(d.Name, d.Function)
	case KindMacro:
		m := d.Macro
		if m == nil {
			return "#define " + d.Name
		}
		head := "#define " + d.Name
		if m.FunctionLike {
			head += "(" + strings.Join(m.Params, ", ") + ")"
		}
		if m.Value != "" {
			head += " " + m.Value
		}
		return head
	case KindTypedef:
		t := d.Typedef
		if t == nil {
			return "typedef " + d.Name
		}
		switch t.Underlying {
		case TypedefFunctionPointer:
			if t.Signature != nil {
				return fmt.Sprintf("typedef %s (*%s)(%s)", t.Signature.ReturnType, d.Name, paramList(t.Signature))
			}
		case TypedefStruct, TypedefUnion, TypedefEnum:
			if t.Record != nil || t.Enum != nil {
				tag := string(t.Underlying)
				if t.TagName != "" {
					tag += " " + t.TagName
				}
				return fmt.Sprintf("typedef %s { ... } %s", tag, d.Name)
			}
		}
		return fmt.Sprintf("typedef %s %s", t.Type, d.Name)
	case KindEnum:
		return joinNonEmpty("enum", d.Name)
	case KindStruct:
		return joinNonEmpty("struct", d.Name)
	case KindUnion:
		return joinNonEmpty("union", d.Name)
	case KindEnumConstant:
		if d.Constant != nil && d.Constant.HasValue {
			return fmt.Sprintf("%s = %d", d.Name, d.Constant.Value)
		}
		return d.Name
	default:
		return d.Name
	}
}

// FunctionSignature formats name and f as a C prototype without the
// trailing semicolon.
func FunctionSignature(name string, f *Function) string {
	if f == nil {
		return name + "()"
	}
	if f.ReturnType == "" {
		return name + "(" + paramList(f) + ")"
	}
	return f.ReturnType + " " + name + "(" + paramList(f) + ")"
}

func paramList(f *Function) string {
	parts := make([]string, 0, len(f.Params)+1)
	for _, p := range f.Params {
		parts = append(parts, joinType(p.Type, p.Name))
	}
	if f.Variadic {
		parts = append(parts, "...")
	}
	if len(parts) == 0 {
		return "void"
	}
	return strings.Join(parts, ", ")
}

// joinType joins a type and a declarator name, keeping pointer stars on the type.
func joinType(typ, name string) string {
	if name == "" {
		return typ
	}
	if strings.HasSuffix(typ, "*") {
		return typ + " " + name
	}
	if i := strings.Index(typ, "["); i >= 0 {
		// array suffix belongs after the name
		return strings.TrimSpace(typ[:i]) + " " + name + typ[i:]
	}
	return typ + " " + name
}

func joinNonEmpty(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// RefState is the resolution state of a cross-reference.
type RefState string

const (
	Resolved   RefState = "resolved"
	Unresolved RefState = "unresolved"
)

// CrossReference is a @ref/@see edge produced by the resolution pass.
type CrossReference struct {
	Source     string
	Target     string
	State      RefState
	TargetKind DeclKind
	Anchor     string // document ID of the referent, set when resolved
}

// Severity classifies a Diagnostic.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityFatal   Severity = "fatal"
)

// DiagCode is the error taxonomy of the engine.
type DiagCode string

const (
	FileFatal           DiagCode = "file_fatal"
	DeclarationSkipped  DiagCode = "declaration_skipped"
	MergeConflict       DiagCode = "merge_conflict"
	UnresolvedReference DiagCode = "unresolved_reference"
)

// Diagnostic is a non-fatal warning or a file-fatal error. Diagnostics are
// reported alongside output and never replace it.
type Diagnostic struct {
	Severity Severity
	Code     DiagCode
	File     string
	Line     int
	Symbol   string
	Message  string
}

func (d Diagnostic) String() string {
	loc := d.File
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.File, d.Line)
	}
	if loc == "" {
		loc = "<resolve>"
	}
	return fmt.Sprintf("%s: %s: %s", loc, d.Code, d.Message)
}
