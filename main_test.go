package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/headerdoc/internal/output"
)

const torture = "testdata/api-torture.h"

func writeTestFile(t *testing.T, root, rel, content string) {
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

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestRunBasic(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--out", out, torture}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	for _, name := range []string{"getting_started.mdx", "core.mdx", "http.mdx", "types.mdx", "other.mdx"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}

	core := readFile(t, filepath.Join(out, "core.mdx"))
	if !strings.HasPrefix(core, "---\ntitle: Core API\n") {
		t.Errorf("unexpected frontmatter:\n%s", core[:min(len(core), 200)])
	}
	if !strings.Contains(core, "### api_version [#api_version]") {
		t.Error("missing api_version entry")
	}
	if strings.Contains(core, "experimental_feature_toggle") {
		t.Error("excluded symbol rendered by default")
	}
	if !strings.Contains(stderr.String(), "Generated 5 API page(s) from 1 header file(s)") {
		t.Errorf("missing summary line, stderr:\n%s", stderr.String())
	}
}

func TestRunDefine(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"-D", "EXPERIMENTAL", "--out", out, torture}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}
	if !strings.Contains(readFile(t, filepath.Join(out, "core.mdx")), "### experimental_feature_toggle [#experimental_feature_toggle]") {
		t.Error("defined symbol should be rendered")
	}
}

func TestRunToonStdout(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--format", "toon", "--stdout", "--project", "torture", torture}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v\nstderr: %s", err, stderr.String())
	}

	out := stdout.String()
	if !strings.HasPrefix(out, "project: torture\ngenerator: headerdoc\n") {
		t.Errorf("missing header, got:\n%s", out)
	}
	if !strings.Contains(out, "  api_version,function,testdata/api-torture.h,") {
		t.Errorf("missing api_version symbol row:\n%s", out)
	}
	if !strings.Contains(out, "documents[5]{id,title,entries}:") {
		t.Errorf("expected 5 documents:\n%s", out)
	}
}

func TestRunCheck(t *testing.T) {
	t.Parallel()
	out := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--out", out, torture}, &stdout, &stderr); err != nil {
		t.Fatalf("generate: %v", err)
	}

	stdout.Reset()
	if err := run([]string{"--check", "--out", out, torture}, &stdout, &stderr); err != nil {
		t.Fatalf("check on fresh output: %v", err)
	}

	// hand edit
	path := filepath.Join(out, "http.mdx")
	if err := os.WriteFile(path, []byte(readFile(t, path)+"edited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	stdout.Reset()
	err := run([]string{"--check", "--out", out, torture}, &stdout, &stderr)
	if !errors.Is(err, output.ErrStale) {
		t.Fatalf("expected ErrStale, got %v", err)
	}
	if !strings.Contains(stdout.String(), "--- a/http.mdx") || !strings.Contains(stdout.String(), "-edited") {
		t.Errorf("expected a diff for http.mdx, got:\n%s", stdout.String())
	}
}

func TestRunRemovesStalePages(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	out := filepath.Join(dir, "docs")
	writeTestFile(t, dir, "a.h", "/** @defgroup old Old */\n/** F. @ingroup old */\nint f(void);\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--out", out, filepath.Join(dir, "a.h")}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "old.mdx")); err != nil {
		t.Fatalf("old.mdx not generated: %v", err)
	}

	writeTestFile(t, dir, "a.h", "/** F. */\nint f(void);\n")
	if err := run([]string{"--out", out, filepath.Join(dir, "a.h")}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := os.Stat(filepath.Join(out, "old.mdx")); !os.IsNotExist(err) {
		t.Error("stale old.mdx should be removed")
	}
	if _, err := os.Stat(filepath.Join(out, "other.mdx")); err != nil {
		t.Errorf("other.mdx missing: %v", err)
	}
}

func TestRunWarnings(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "bad.h", "#ifdef X\nint lost(void);\n")
	writeTestFile(t, dir, "good.h", "/** See \\ref nowhere. */\nint kept(void);\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--out", filepath.Join(dir, "out"), dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected two warnings and a summary, got:\n%s", stderr.String())
	}
	if !strings.HasPrefix(lines[0], "Warning: "+filepath.ToSlash(filepath.Join(dir, "bad.h"))) || !strings.Contains(lines[0], "file_fatal") {
		t.Errorf("line 0: got %q", lines[0])
	}
	if !strings.Contains(lines[1], "unresolved_reference") {
		t.Errorf("line 1: got %q", lines[1])
	}
	if !strings.Contains(readFile(t, filepath.Join(dir, "out", "other.mdx")), "kept") {
		t.Error("good.h should still be documented")
	}
}

func TestRunVersion(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"version"}, {"--version"}} {
		var stdout, stderr bytes.Buffer
		if err := run(args, &stdout, &stderr); err != nil {
			t.Fatalf("run %v: %v", args, err)
		}
		if got := stdout.String(); got != "headerdoc dev\n" {
			t.Errorf("run %v: got %q", args, got)
		}
	}
}

func TestRunNoFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "readme.txt", "hello")

	var stdout, stderr bytes.Buffer
	err := run([]string{"--out", filepath.Join(dir, "out"), dir}, &stdout, &stderr)
	if err == nil || err.Error() != "no header files found" {
		t.Fatalf("expected no header files error, got %v", err)
	}
}

func TestRunInvalidFormat(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	err := run([]string{"--format", "html", torture}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "invalid output format") {
		t.Fatalf("expected invalid format error, got %v", err)
	}
}

func TestRunCheckAndWatchConflict(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--check", "--watch", torture}, &stdout, &stderr); err == nil {
		t.Fatal("expected error for --check with --watch")
	}
}

func TestRunMaxFileSize(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "small.h", "int f(void);\n")
	writeTestFile(t, dir, "big.h", "/* "+strings.Repeat("x", 200)+" */\nint g(void);\n")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"--max-file-size", "100", "--stdout", "--format", "toon", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stderr.String(), "big.h: skipped (>100 bytes)") {
		t.Errorf("expected size warning, got:\n%s", stderr.String())
	}
	if strings.Contains(stdout.String(), "big.h") {
		t.Error("big.h should be skipped")
	}
}
