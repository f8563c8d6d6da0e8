// Package output writes generated documents to a directory and compares
// them against what is already there.
package output

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/phobologic/headerdoc/internal/model"
)

var (
	// ErrStale is returned in check mode when the directory differs from
	// the generated output.
	ErrStale = errors.New("generated output is out of date")

	// ErrNotGenerated is returned when a hand-written file occupies the
	// name of a generated one.
	ErrNotGenerated = errors.New("refusing to overwrite file without generator marker")
)

// File is one generated output file, named relative to the output directory.
type File struct {
	Name string
	Data []byte
}

// Report describes what Write did, or in check mode what it would do.
type Report struct {
	Written   []string
	Unchanged []string
	Removed   []string
	Diffs     []string
}

// Changed reports whether anything was, or would be, written or removed.
func (r *Report) Changed() bool {
	return len(r.Written) > 0 || len(r.Removed) > 0
}

// Write syncs dir with files. Generated files in dir that are no longer
// produced are removed; other files are left alone. With check set nothing
// is touched and ErrStale is returned alongside a unified diff per change.
func Write(dir string, files []File, check bool) (*Report, error) {
	if !check {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	rep := &Report{}
	want := make(map[string]bool, len(files))
	for _, f := range files {
		want[f.Name] = true
		path := filepath.Join(dir, f.Name)

		old, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			old = nil
		case err != nil:
			return rep, fmt.Errorf("reading %s: %w", path, err)
		case !IsGenerated(old):
			return rep, fmt.Errorf("%s: %w", path, ErrNotGenerated)
		}

		if bytes.Equal(old, f.Data) {
			rep.Unchanged = append(rep.Unchanged, f.Name)
			continue
		}
		rep.Written = append(rep.Written, f.Name)
		if check {
			rep.Diffs = append(rep.Diffs, diff(f.Name, old, f.Data))
			continue
		}
		if err := os.WriteFile(path, f.Data, 0o644); err != nil {
			return rep, fmt.Errorf("writing %s: %w", path, err)
		}
	}

	stale, err := staleFiles(dir, want)
	if err != nil {
		return rep, err
	}
	for _, name := range stale {
		path := filepath.Join(dir, name)
		rep.Removed = append(rep.Removed, name)
		if check {
			old, _ := os.ReadFile(path)
			rep.Diffs = append(rep.Diffs, diff(name, old, nil))
			continue
		}
		if err := os.Remove(path); err != nil {
			return rep, fmt.Errorf("removing stale %s: %w", path, err)
		}
	}

	if check && rep.Changed() {
		return rep, ErrStale
	}
	return rep, nil
}

// staleFiles lists generated files in dir that are not in want.
func staleFiles(dir string, want map[string]bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing output directory: %w", err)
	}
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() || want[e.Name()] {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			continue
		}
		if IsGenerated(data) {
			out = append(out, e.Name())
		}
	}
	slices.Sort(out)
	return out, nil
}

// IsGenerated reports whether data carries the generator marker line.
func IsGenerated(data []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimRight(sc.Text(), "\r") == model.Marker {
			return true
		}
	}
	return false
}

func diff(name string, old, updated []byte) string {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(old)),
		B:        difflib.SplitLines(string(updated)),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(d)
	return text
}
