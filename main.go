// headerdoc generates API documentation from doc comments in C and C++
// headers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/headerdoc/internal/config"
	"github.com/phobologic/headerdoc/internal/discover"
	"github.com/phobologic/headerdoc/internal/engine"
	"github.com/phobologic/headerdoc/internal/mdx"
	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/output"
	"github.com/phobologic/headerdoc/internal/render"
	"github.com/phobologic/headerdoc/internal/toon"
	"github.com/phobologic/headerdoc/internal/watch"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// options holds flags that are not part of the persisted configuration.
type options struct {
	configFile string
	verbose    bool
	check      bool
	watch      bool
	toStdout   bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "headerdoc [paths...]",
		Short: "Generate API documentation from C/C++ header doc comments",
		Long: `headerdoc reads /** ... */ doc comments from C and C++ headers and writes
one page per @page, one per @defgroup and an "other" page for ungrouped
symbols. Paths may be headers or directories; directories are searched
for headers, honoring .gitignore. Defaults to the current directory.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{"."}
			}
			return runGenerate(cmd.Context(), cfg, opts, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetVersionTemplate("headerdoc {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default is ./.headerdoc.yaml)")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	pf.StringSliceP("define", "D", nil, "preprocessor symbol to treat as defined (repeatable)")
	pf.Bool("show-internal", false, "include @internal symbols")
	pf.Bool("show-excluded", false, "include symbols excluded by conditional compilation")
	pf.StringP("out", "o", "", "output directory (default docs/api)")
	pf.StringP("format", "f", "", "output format: mdx or toon (default mdx)")
	pf.String("project", "", "project name for the TOON index (default: directory name)")
	pf.StringSlice("include", nil, "glob of headers to include, relative to each input directory")
	pf.StringSlice("exclude", nil, "glob of headers to exclude, relative to each input directory")
	pf.IntP("workers", "j", 0, "parser workers (default GOMAXPROCS)")
	pf.Int64("max-file-size", 0, "skip headers larger than this many bytes (default 1000000)")

	f := cmd.Flags()
	f.BoolVar(&opts.check, "check", false, "report differences against the output directory without writing")
	f.BoolVar(&opts.watch, "watch", false, "regenerate when headers change")
	f.BoolVar(&opts.toStdout, "stdout", false, "print output instead of writing files")

	cmd.AddCommand(newVersionCmd(stdout), newIndexCmd(opts, stdout, stderr))
	return cmd
}

func newVersionCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(stdout, "headerdoc %s\n", version)
		},
	}
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	cfg, err := config.NewLoader(".", opts.configFile, cmd.Flags()).Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func runGenerate(ctx context.Context, cfg *config.Config, opts *options, paths []string, stdout, stderr io.Writer) error {
	if opts.check && opts.watch {
		return errors.New("--check and --watch cannot be combined")
	}

	err := generate(ctx, cfg, opts, paths, stdout, stderr)
	if !opts.watch {
		return err
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	w, err := watch.New(paths, watch.DefaultDebounce)
	if err != nil {
		return err
	}
	defer w.Close()

	_, _ = fmt.Fprintf(stderr, "watching %s for changes\n", strings.Join(paths, ", "))
	err = w.Run(ctx, func(files []string) {
		if opts.verbose {
			_, _ = fmt.Fprintf(stderr, "changed: %s\n", strings.Join(files, ", "))
		}
		if err := generate(ctx, cfg, opts, paths, stdout, stderr); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: %v\n", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// build discovers, reads and documents the inputs, reporting diagnostics
// on stderr.
func build(ctx context.Context, cfg *config.Config, opts *options, paths []string, stderr io.Writer) (*engine.Result, int, error) {
	entries, err := discover.Inputs(paths, discover.Options{Include: cfg.Include, Exclude: cfg.Exclude})
	if err != nil {
		return nil, 0, fmt.Errorf("discovering headers: %w", err)
	}
	entries = filterBySize(entries, cfg.MaxFileSize, stderr)
	if len(entries) == 0 {
		return nil, 0, errors.New("no header files found")
	}

	inputs := make([]model.SourceFile, 0, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(e.Path)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: failed to read %s: %v\n", e.Path, err)
			continue
		}
		inputs = append(inputs, model.SourceFile{Path: e.Path, Language: e.Language, Text: string(data)})
	}

	start := time.Now()
	res, err := engine.Run(ctx, inputs, engine.Options{
		Defined: cfg.Defined(),
		Render:  render.Options{ShowInternal: cfg.ShowInternal, ShowExcluded: cfg.ShowExcluded},
		Workers: cfg.Workers,
	})
	if err != nil {
		return nil, 0, err
	}

	for _, d := range res.Diagnostics {
		_, _ = fmt.Fprintf(stderr, "Warning: %s\n", d)
	}
	if opts.verbose {
		for _, f := range res.Files {
			_, _ = fmt.Fprintf(stderr, "parsed %s: %d declaration(s)\n", f.File.Path, len(f.Decls))
		}
		_, _ = fmt.Fprintf(stderr, "processed %d header(s) in %s\n", len(inputs), time.Since(start).Round(time.Millisecond))
	}
	return res, len(inputs), nil
}

func generate(ctx context.Context, cfg *config.Config, opts *options, paths []string, stdout, stderr io.Writer) error {
	res, nfiles, err := build(ctx, cfg, opts, paths, stderr)
	if err != nil {
		return err
	}

	files, err := format(cfg, res, paths)
	if err != nil {
		return err
	}

	if opts.toStdout {
		for _, f := range files {
			_, _ = stdout.Write(f.Data)
		}
		return nil
	}

	rep, err := output.Write(cfg.Out, files, opts.check)
	if errors.Is(err, output.ErrStale) {
		for _, d := range rep.Diffs {
			_, _ = fmt.Fprint(stdout, d)
		}
		return fmt.Errorf("%s: %w", cfg.Out, err)
	}
	if err != nil {
		return err
	}
	if opts.check {
		_, _ = fmt.Fprintf(stderr, "%s is up to date\n", cfg.Out)
		return nil
	}

	if opts.verbose {
		for _, name := range rep.Removed {
			_, _ = fmt.Fprintf(stderr, "removed stale %s\n", filepath.Join(cfg.Out, name))
		}
	}
	_, _ = fmt.Fprintf(stderr, "Generated %d API page(s) from %d header file(s) in %s\n", len(files), nfiles, cfg.Out)
	return nil
}

// format renders the documents in the configured output format.
func format(cfg *config.Config, res *engine.Result, paths []string) ([]output.File, error) {
	if cfg.Format == "toon" {
		data := toon.Encode(projectName(cfg, paths), res.Documents, res.Table.References())
		return []output.File{{Name: "index" + toon.Ext, Data: []byte(data)}}, nil
	}

	files := make([]output.File, 0, len(res.Documents))
	for i := range res.Documents {
		doc := &res.Documents[i]
		data, err := mdx.Format(doc)
		if err != nil {
			return nil, err
		}
		files = append(files, output.File{Name: doc.ID + mdx.Ext, Data: data})
	}
	return files, nil
}

func projectName(cfg *config.Config, paths []string) string {
	if cfg.Project != "" {
		return cfg.Project
	}
	abs, err := filepath.Abs(paths[0])
	if err != nil {
		return filepath.Base(paths[0])
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	return filepath.Base(abs)
}

func filterBySize(files []discover.FileEntry, maxSize int64, stderr io.Writer) []discover.FileEntry {
	if maxSize <= 0 {
		return files
	}
	var kept []discover.FileEntry
	for _, f := range files {
		fi, err := os.Stat(f.Path)
		if err != nil {
			kept = append(kept, f) // keep if can't stat
			continue
		}
		if fi.Size() > maxSize {
			_, _ = fmt.Fprintf(stderr, "Warning: %s: skipped (>%d bytes)\n", f.Path, maxSize)
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
