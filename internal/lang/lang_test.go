package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForExtension(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ext  string
		want string
	}{
		{".h", "c"},
		{".H", "c"},
		{".hpp", "cpp"},
		{".hh", "cpp"},
		{".py", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ForExtension(tt.ext))
		})
	}
}

func TestForPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "c", ForPath("include/api.h"))
	assert.Equal(t, "cpp", ForPath("include/api.hpp"))
	assert.Equal(t, "c", ForPath("README"))
}

func TestLanguagesRegistered(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"c", "cpp"} {
		l, ok := Languages[name]
		require.True(t, ok, "%s language not registered", name)
		assert.NotNil(t, l.GetLanguage())
	}
}

func TestNewParser(t *testing.T) {
	t.Parallel()

	p := Languages["c"].NewParser()
	require.NotNil(t, p)

	src := []byte("int f(void);")
	tree, err := p.ParseCtx(context.Background(), nil, src)
	require.NoError(t, err)
	defer tree.Close()

	root := tree.RootNode()
	assert.Equal(t, "translation_unit", root.Type())
	assert.Equal(t, "int f(void);", NodeText(root.NamedChild(0), src))
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "const char *", CollapseWhitespace("  const\tchar\n  * "))
}
