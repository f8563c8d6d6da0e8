package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func paths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}

func TestDiscoverHeaders(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "api.h", "int f(void);")
	writeFile(t, dir, "include/util.hpp", "int g();")
	// Sources are not documented
	writeFile(t, dir, "src/api.c", "int f(void) { return 0; }")
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.h", "int h(void);")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	got := paths(entries)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(entries), got)
	}

	// Should be sorted
	if entries[0].Path != "api.h" || entries[0].Language != "c" {
		t.Errorf("entry 0: got %+v", entries[0])
	}
	if entries[1].Path != "include/util.hpp" || entries[1].Language != "cpp" {
		t.Errorf("entry 1: got %+v", entries[1])
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "api.h", "")
	writeFile(t, dir, "node_modules/pkg.h", "")
	writeFile(t, dir, "build/generated.h", "")
	writeFile(t, dir, ".hidden/secret.h", "")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Path != "api.h" {
		t.Errorf("expected api.h, got %q", entries[0].Path)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "generated/\n*_internal.h\n")
	writeFile(t, dir, "api.h", "")
	writeFile(t, dir, "api_internal.h", "")
	writeFile(t, dir, "generated/config.h", "")

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := paths(entries); len(got) != 1 || got[0] != "api.h" {
		t.Errorf("got %v, want [api.h]", got)
	}
}

func TestDiscoverIncludeExclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "top.h", "")
	writeFile(t, dir, "include/api.h", "")
	writeFile(t, dir, "include/private/impl.h", "")
	writeFile(t, dir, "tests/fixture.h", "")

	tests := []struct {
		name string
		opts Options
		want []string
	}{
		{"all", Options{}, []string{"include/api.h", "include/private/impl.h", "tests/fixture.h", "top.h"}},
		{"include dir", Options{Include: []string{"include/**"}}, []string{"include/api.h", "include/private/impl.h"}},
		{"exclude private", Options{Include: []string{"include/**"}, Exclude: []string{"**/private/**"}}, []string{"include/api.h"}},
		{"root match", Options{Include: []string{"**/top.h"}}, []string{"top.h"}},
		{"exclude tests", Options{Exclude: []string{"tests/*"}}, []string{"include/api.h", "include/private/impl.h", "top.h"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entries, err := Files(dir, tt.opts)
			if err != nil {
				t.Fatalf("Files: %v", err)
			}
			got := paths(entries)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("entry %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDiscoverBadPattern(t *testing.T) {
	t.Parallel()

	if _, err := Files(t.TempDir(), Options{Include: []string{"[a-"}}); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.h", "")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.h"), filepath.Join(dir, "link.h"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(dir, Options{})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].Path != "real.h" {
		t.Errorf("expected real.h, got %q", entries[0].Path)
	}
}

func TestInputs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "include/a.h", "")
	writeFile(t, dir, "include/b.h", "")
	writeFile(t, dir, "extra.inc", "")

	single := filepath.Join(dir, "extra.inc")
	inc := filepath.Join(dir, "include")
	entries, err := Inputs([]string{single, inc, filepath.Join(inc, "a.h")}, Options{})
	if err != nil {
		t.Fatalf("Inputs: %v", err)
	}

	want := []string{
		filepath.ToSlash(single),
		filepath.ToSlash(filepath.Join(inc, "a.h")),
		filepath.ToSlash(filepath.Join(inc, "b.h")),
	}
	got := paths(entries)
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %q, want %q", i, got[i], want[i])
		}
	}
	// unknown extensions parse as C
	if entries[0].Language != "c" {
		t.Errorf("language = %q, want c", entries[0].Language)
	}

	if _, err := Inputs([]string{filepath.Join(dir, "missing.h")}, Options{}); err == nil {
		t.Error("expected error for missing input")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
