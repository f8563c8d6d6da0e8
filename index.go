package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/headerdoc/internal/mdx"
	"github.com/phobologic/headerdoc/internal/render"
)

const (
	sentinelStart = "<!-- headerdoc:start -->"
	sentinelEnd   = "<!-- headerdoc:end -->"
)

// newIndexCmd implements `headerdoc index`, which writes (or updates) a
// list of the generated API pages in a Markdown file.
func newIndexCmd(opts *options, stdout, stderr io.Writer) *cobra.Command {
	var (
		dryRun bool
		srcs   []string
	)
	cmd := &cobra.Command{
		Use:   "index [flags] [path-to-markdown]",
		Short: "Write an API page index into a Markdown file",
		Long: `Write a list of the generated API pages to a Markdown file. The section is
wrapped in sentinel comments so it can be updated in place on subsequent
runs without touching surrounding content. Creates the file if it does not
exist.

path-to-markdown defaults to ./README.md.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			res, nfiles, err := build(cmd.Context(), cfg, opts, srcs, stderr)
			if err != nil {
				return err
			}

			path := "README.md"
			if len(args) > 0 {
				path = args[0]
			}
			link := func(id string) string {
				if cfg.Format != "mdx" {
					return ""
				}
				target := filepath.Join(cfg.Out, id+mdx.Ext)
				if rel, err := filepath.Rel(filepath.Dir(path), target); err == nil {
					target = rel
				}
				return filepath.ToSlash(target)
			}
			section := generateSection(res.Documents, nfiles, link)

			// --dry-run with no path: just print the section itself.
			if dryRun && len(args) == 0 {
				_, _ = fmt.Fprintln(stdout, section)
				return nil
			}

			existing, _ := os.ReadFile(path)
			updated := applySection(string(existing), section)

			if dryRun {
				_, _ = fmt.Fprint(stdout, updated)
				return nil
			}

			if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}

			_, _ = fmt.Fprintf(stderr, "wrote headerdoc index to %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying the file")
	cmd.Flags().StringSliceVar(&srcs, "src", []string{"."}, "headers or directories to document")
	return cmd
}

// generateSection returns the sentinel-wrapped list of documents. link maps
// a document ID to its page; an empty link lists the title only.
func generateSection(docs []render.Document, nfiles int, link func(id string) string) string {
	var b strings.Builder
	b.WriteString("## API Reference\n\n")
	fmt.Fprintf(&b, "Generated by headerdoc from %d header file(s). Regenerate with `headerdoc index`.\n\n", nfiles)
	for i := range docs {
		d := &docs[i]
		title := d.Title
		if href := link(d.ID); href != "" {
			title = fmt.Sprintf("[%s](%s)", d.Title, href)
		}
		line := "- " + title
		if brief := strings.Join(strings.Fields(d.Brief.PlainText()), " "); brief != "" {
			line += ": " + brief
		}
		b.WriteString(line + "\n")
	}
	return sentinelStart + "\n" + strings.TrimRight(b.String(), "\n") + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
