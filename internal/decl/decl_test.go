package decl

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/headerdoc/internal/lang"
	"github.com/phobologic/headerdoc/internal/model"
)

func newParser(t *testing.T) *Parser {
	t.Helper()
	p := NewParser(lang.Languages["c"])
	t.Cleanup(p.Close)
	return p
}

func parseOne(t *testing.T, src string) *model.Declaration {
	t.Helper()
	decls, err := newParser(t).ParseStatement(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	return decls[0]
}

func TestPrototype(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "int http_get(const char* path, char* buf, int size);")
	assert.Equal(t, model.KindFunction, d.Kind)
	assert.Equal(t, "http_get", d.Name)
	assert.False(t, d.Function.HasBody)
	assert.Equal(t, "int", d.Function.ReturnType)
	require.Len(t, d.Function.Params, 3)
	assert.Equal(t, model.Param{Name: "path", Type: "const char*"}, d.Function.Params[0])
	assert.Equal(t, "int http_get(const char* path, char* buf, int size)", d.Signature())
}

func TestVoidParams(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "const char* api_version(void);")
	assert.Empty(t, d.Function.Params)
	assert.Equal(t, "const char*", d.Function.ReturnType)
	assert.Equal(t, "const char* api_version(void)", d.Signature())
}

func TestWhitespaceNormalization(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "ApiHandle   create_handle   (  const char*  name , int   flags );")
	assert.Equal(t, "create_handle", d.Name)
	assert.Equal(t, "ApiHandle create_handle(const char* name, int flags)", d.Signature())

	for _, src := range []string{
		"char* f(char* p);",
		"char *f(char *p);",
		"char * f(char * p);",
		"char\t*f(char\t*\tp);",
	} {
		d := parseOne(t, src)
		assert.Equal(t, "char* f(char* p)", d.Signature(), src)
	}
}

func TestInlineDefinitionVersusPrototype(t *testing.T) {
	t.Parallel()

	proto := parseOne(t, "static /*inline*/ int maybe_inline  (int x, int y);")
	assert.Equal(t, "maybe_inline", proto.Name)
	assert.False(t, proto.Function.HasBody)
	assert.Equal(t, []string{"static"}, proto.Function.Storage)
	assert.Equal(t, "int", proto.Function.ReturnType)

	def := parseOne(t, "static inline int definitely_inline   (int x, int y)   { return x * y; }")
	assert.Equal(t, "definitely_inline", def.Name)
	assert.True(t, def.Function.HasBody)
	assert.Equal(t, []string{"static", "inline"}, def.Function.Storage)
	assert.Equal(t, "int definitely_inline(int x, int y)", def.Signature())
}

func TestParamComments(t *testing.T) {
	t.Parallel()

	d := parseOne(t, `int param_styles(
    /*in*/  const char* key,
    /*out*/ ApiValue*   out_value   /* may be NULL */
);`)
	require.Len(t, d.Function.Params, 2)
	assert.Equal(t, model.Param{Name: "key", Type: "const char*", Comment: "in"}, d.Function.Params[0])
	assert.Equal(t, model.Param{Name: "out_value", Type: "ApiValue*", Comment: "out; may be NULL"}, d.Function.Params[1])
}

func TestVariadic(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "int logf(const char* fmt, ...);")
	assert.True(t, d.Function.Variadic)
	assert.Len(t, d.Function.Params, 1)
	assert.Equal(t, "int logf(const char* fmt, ...)", d.Signature())
}

func TestFunctionPointerTypedef(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "typedef void (*ApiCompletionCb)(int status, void* user);")
	assert.Equal(t, model.KindTypedef, d.Kind)
	assert.Equal(t, "ApiCompletionCb", d.Name)
	assert.Equal(t, model.TypedefFunctionPointer, d.Typedef.Underlying)
	require.NotNil(t, d.Typedef.Signature)
	assert.Equal(t, "void", d.Typedef.Signature.ReturnType)
	require.Len(t, d.Typedef.Signature.Params, 2)
	assert.Equal(t, "user", d.Typedef.Signature.Params[1].Name)
	assert.Equal(t, "typedef void (*ApiCompletionCb)(int status, void* user)", d.Signature())

	anon := parseOne(t, "typedef int (*AnonFnPtr)(const char*);")
	assert.Equal(t, "AnonFnPtr", anon.Name)
	require.Len(t, anon.Typedef.Signature.Params, 1)
	assert.Equal(t, model.Param{Type: "const char*"}, anon.Typedef.Signature.Params[0])
}

func TestScalarTypedef(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "typedef struct ApiHandle_t* ApiHandle;")
	assert.Equal(t, "ApiHandle", d.Name)
	assert.Equal(t, "struct ApiHandle_t*", d.Typedef.Type)
	assert.Nil(t, d.Typedef.Record)
	assert.Equal(t, "typedef struct ApiHandle_t* ApiHandle", d.Signature())

	u := parseOne(t, "typedef unsigned long api_size_t;")
	assert.Equal(t, model.TypedefScalar, u.Typedef.Underlying)
	assert.Equal(t, "unsigned long", u.Typedef.Type)
}

func TestStructTypedefWithBody(t *testing.T) {
	t.Parallel()

	d := parseOne(t, `typedef struct ApiConfig {
  int                timeout_ms;
  int                retries;
  const char*        base_url;
  ApiCompletionCb    on_ready;   /**< Optional callback when ready. */
} ApiConfig;`)
	assert.Equal(t, model.TypedefStruct, d.Typedef.Underlying)
	assert.Equal(t, "ApiConfig", d.Typedef.TagName)
	require.NotNil(t, d.Typedef.Record)

	fields := d.Typedef.Record.Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "base_url", fields[2].Name)
	assert.Equal(t, "const char*", fields[2].Type)
	require.NotNil(t, fields[3].Doc)
	assert.Equal(t, "Optional callback when ready.", fields[3].Doc.Brief)
	assert.Nil(t, fields[0].Doc)
}

func TestNestedAnonymousUnion(t *testing.T) {
	t.Parallel()

	d := parseOne(t, `typedef struct ApiComplex {
  int          id;
  double       weights[4];
  const char*  label;
  union {
    int    i;
    double d;
  } variant;
} ApiComplex;`)
	fields := d.Typedef.Record.Fields
	require.Len(t, fields, 4)
	assert.Equal(t, "double[4]", fields[1].Type)

	variant := fields[3]
	assert.Equal(t, "variant", variant.Name)
	assert.Equal(t, "union", variant.Type)
	assert.Equal(t, model.KindUnion, variant.NestedKind)
	require.NotNil(t, variant.Nested)
	require.Len(t, variant.Nested.Fields, 2)
	assert.Equal(t, "d", variant.Nested.Fields[1].Name)
	assert.Equal(t, "double", variant.Nested.Fields[1].Type)
}

func TestFunctionPointerField(t *testing.T) {
	t.Parallel()

	d := parseOne(t, "struct Ops { void (*cb)(int); int a, *b; };")
	assert.Equal(t, model.KindStruct, d.Kind)
	fields := d.Record.Fields
	require.Len(t, fields, 3)
	assert.Equal(t, "void (*)(int)", fields[0].Type)
	assert.Equal(t, "int", fields[1].Type)
	assert.Equal(t, "int*", fields[2].Type)
}

func TestNamedEnum(t *testing.T) {
	t.Parallel()

	d := parseOne(t, `enum ApiLogLevel {
  API_LOG_DEBUG = 10,
  API_LOG_INFO  = 20,
  /** Warnings. */
  API_LOG_WARN  = 30,
  API_LOG_ERROR,
};`)
	assert.Equal(t, model.KindEnum, d.Kind)
	assert.Equal(t, "ApiLogLevel", d.Name)
	cs := d.Enum.Constants
	require.Len(t, cs, 4)
	assert.Equal(t, int64(10), cs[0].Value)
	assert.Equal(t, int64(31), cs[3].Value)
	assert.True(t, cs[3].HasValue)
	require.NotNil(t, cs[2].Doc)
	assert.Equal(t, "Warnings.", cs[2].Doc.Brief)
}

func TestAnonymousEnum(t *testing.T) {
	t.Parallel()

	decls, err := newParser(t).ParseStatement(context.Background(), `enum {
  API_DEFAULT_TIMEOUT_MS = 5000,
  API_MAX_RETRIES        = 5,
};`)
	require.NoError(t, err)
	require.Len(t, decls, 2)
	assert.Equal(t, model.KindEnumConstant, decls[0].Kind)
	assert.Equal(t, "API_DEFAULT_TIMEOUT_MS", decls[0].Name)
	assert.Equal(t, int64(5000), decls[0].Constant.Value)
	assert.Equal(t, int64(5), decls[1].Constant.Value)
}

func TestForwardDeclarations(t *testing.T) {
	t.Parallel()

	s := parseOne(t, "struct Opaque;")
	assert.Equal(t, model.KindStruct, s.Kind)
	assert.Nil(t, s.Record)

	u := parseOne(t, "union Value;")
	assert.Equal(t, model.KindUnion, u.Kind)
}

func TestLinkageSpecification(t *testing.T) {
	t.Parallel()

	p := NewParser(lang.Languages["cpp"])
	t.Cleanup(p.Close)
	decls, err := p.ParseStatement(context.Background(), `extern "C" int f(int a);`)
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, "f", decls[0].Name)
}

func TestUnrecognized(t *testing.T) {
	t.Parallel()

	for _, src := range []string{
		"int global_counter;",
		"struct { int x; } anon_instance_without_name_is_fine_but_struct_is_anon;",
		"this is not C at all {",
	} {
		_, err := newParser(t).ParseStatement(context.Background(), src)
		assert.True(t, errors.Is(err, ErrUnrecognized), "%q: %v", src, err)
	}
}

func TestParseMacro(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		src          string
		wantName     string
		functionLike bool
		params       []string
		variadic     bool
		value        string
	}{
		{"constant", "#define API_OK 0", "API_OK", false, nil, false, "0"},
		{"expression", "#define API_ERROR_INVALID (-22)", "API_ERROR_INVALID", false, nil, false, "(-22)"},
		{"function-like", "#define API_MIN(a,b) (( (a) < (b) ) ? (a) : (b))", "API_MIN", true, []string{"a", "b"}, false, "(( (a) < (b) ) ? (a) : (b))"},
		{"space before paren", "#define WRAP (x)", "WRAP", false, nil, false, "(x)"},
		{"empty", "#define GUARD_H", "GUARD_H", false, nil, false, ""},
		{"spaced hash", "  #  define SPACED 1 /* note */", "SPACED", false, nil, false, "1"},
		{
			"continuation",
			"#define API_LOGF(fmt, ...)    \\\n  do {                        \\\n    printf((fmt), __VA_ARGS__); \\\n  } while (0)",
			"API_LOGF", true, []string{"fmt", "..."}, true,
			"do {\n    printf((fmt), __VA_ARGS__);\n  } while (0)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, _, err := ParseMacro(tt.src)
			require.NoError(t, err)
			assert.Equal(t, model.KindMacro, d.Kind)
			assert.Equal(t, tt.wantName, d.Name)
			assert.Equal(t, tt.functionLike, d.Macro.FunctionLike)
			assert.Equal(t, tt.params, d.Macro.Params)
			assert.Equal(t, tt.variadic, d.Macro.Variadic)
			assert.Equal(t, tt.value, d.Macro.Value)
			assert.NotContains(t, d.Macro.Value, "\\\n")
		})
	}
}

func TestParseMacroMemberDoc(t *testing.T) {
	t.Parallel()

	d, doc, err := ParseMacro("#define API_FLAG 0x4 /**< Enables the flag. */")
	require.NoError(t, err)
	assert.Equal(t, "0x4", d.Macro.Value)
	assert.Equal(t, "/**< Enables the flag. */", doc)
}

func TestParseMacroRejectsOtherDirectives(t *testing.T) {
	t.Parallel()

	_, _, err := ParseMacro("#include <stdio.h>")
	assert.True(t, errors.Is(err, ErrUnrecognized))
}

func TestEvalConst(t *testing.T) {
	t.Parallel()

	known := map[string]int64{"A": 4}
	tests := []struct {
		expr string
		want int64
		ok   bool
	}{
		{"5000", 5000, true},
		{"0x10", 16, true},
		{"010", 8, true},
		{"10u", 10, true},
		{"(-22)", -22, true},
		{"1 << 3", 8, true},
		{"A | 1", 5, true},
		{"~0", -1, true},
		{"'a'", 97, true},
		{"7 / 2", 3, true},
		{"B + 1", 0, false},
		{"sizeof(int)", 0, false},
		{"1 / 0", 0, false},
	}
	for _, tt := range tests {
		got, ok := EvalConst(tt.expr, known)
		assert.Equal(t, tt.ok, ok, tt.expr)
		if tt.ok {
			assert.Equal(t, tt.want, got, tt.expr)
		}
	}
}
