// Package discover finds header files to document.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/headerdoc/internal/lang"
)

// FileEntry represents a discovered header.
type FileEntry struct {
	Path     string // slash-separated, relative to the input it came from
	Language string
}

// Options filters discovery. Patterns are matched against slash-separated
// paths relative to the walked directory.
type Options struct {
	Include []string
	Exclude []string
}

type matcher struct {
	include []glob.Glob
	exclude []glob.Glob
}

var skipDirs = map[string]struct{}{
	"node_modules": {},
	".git":         {},
	".hg":          {},
	".svn":         {},
	"build":        {},
	"dist":         {},
	"out":          {},
	"CMakeFiles":   {},
}

func compile(patterns []string) ([]glob.Glob, error) {
	var out []glob.Glob
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", p, err)
		}
		out = append(out, g)
	}
	return out, nil
}

func newMatcher(opts Options) (*matcher, error) {
	inc, err := compile(opts.Include)
	if err != nil {
		return nil, err
	}
	exc, err := compile(opts.Exclude)
	if err != nil {
		return nil, err
	}
	return &matcher{include: inc, exclude: exc}, nil
}

func matchAny(globs []glob.Glob, rel string) bool {
	for _, g := range globs {
		if g.Match(rel) {
			return true
		}
		// "**/x.h" should also match "x.h" at the root
		if !strings.Contains(rel, "/") && g.Match("/"+rel) {
			return true
		}
	}
	return false
}

func (m *matcher) keep(rel string) bool {
	if len(m.include) > 0 && !matchAny(m.include, rel) {
		return false
	}
	return !matchAny(m.exclude, rel)
}

// Inputs expands command-line paths into headers. Directories are walked
// with Files; files are taken as given. Duplicates keep their first position.
func Inputs(paths []string, opts Options) ([]FileEntry, error) {
	seen := make(map[string]bool)
	var out []FileEntry
	add := func(e FileEntry) {
		if !seen[e.Path] {
			seen[e.Path] = true
			out = append(out, e)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", p, err)
		}
		if !info.IsDir() {
			add(FileEntry{Path: filepath.ToSlash(filepath.Clean(p)), Language: lang.ForPath(p)})
			continue
		}
		entries, err := Files(p, opts)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			e.Path = filepath.ToSlash(filepath.Join(p, e.Path))
			add(e)
		}
	}
	return out, nil
}

// Files discovers headers under root, sorted by path.
func Files(root string, opts Options) ([]FileEntry, error) {
	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}
	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip errors
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		langName := lang.ForExtension(filepath.Ext(name))
		if langName == "" {
			return nil
		}

		if !m.keep(rel) {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
