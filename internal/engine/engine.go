// Package engine runs the whole pipeline: per-file parsing on a worker
// pool, then sequential symbol-table construction, resolution and
// rendering.
package engine

import (
	"context"
	"runtime"
	"sync"

	"github.com/phobologic/headerdoc/internal/decl"
	"github.com/phobologic/headerdoc/internal/lang"
	"github.com/phobologic/headerdoc/internal/model"
	"github.com/phobologic/headerdoc/internal/parse"
	"github.com/phobologic/headerdoc/internal/render"
	"github.com/phobologic/headerdoc/internal/symtab"
)

// Options configures a run.
type Options struct {
	Defined map[string]bool
	Render  render.Options
	Workers int // 0 means GOMAXPROCS
}

// Result is the outcome of a run. Files is in input order.
type Result struct {
	Files       []*parse.Result
	Table       *symtab.Table
	Documents   []render.Document
	Diagnostics []model.Diagnostic
}

// Run parses inputs concurrently and builds the documentation. Output is
// identical for identical inputs regardless of the worker count. On
// cancellation partial results are discarded and ctx.Err() is returned.
func Run(ctx context.Context, inputs []model.SourceFile, opts Options) (*Result, error) {
	files, err := parseAll(ctx, inputs, opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Files: files, Table: symtab.New()}
	for _, f := range files {
		res.Diagnostics = append(res.Diagnostics, f.Diagnostics...)
		for _, d := range f.Decls {
			res.Table.Insert(d)
		}
	}
	res.Table.ResolveAll()
	res.Diagnostics = append(res.Diagnostics, res.Table.Diagnostics()...)
	res.Documents = render.Build(res.Table, opts.Render)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

func parseAll(ctx context.Context, inputs []model.SourceFile, opts Options) ([]*parse.Result, error) {
	if len(inputs) == 0 {
		return nil, ctx.Err()
	}

	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(inputs) {
		numWorkers = len(inputs)
	}

	work := make(chan int, len(inputs))
	results := make([]*parse.Result, len(inputs))

	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each goroutine gets its own parsers
			parsers := make(map[string]*decl.Parser)
			defer func() {
				for _, p := range parsers {
					p.Close()
				}
			}()

			for idx := range work {
				if ctx.Err() != nil {
					continue
				}
				src := inputs[idx]
				l, ok := lang.Languages[src.Language]
				if !ok {
					l = lang.Languages[lang.ForPath(src.Path)]
				}
				p, ok := parsers[l.Name]
				if !ok {
					p = decl.NewParser(l)
					parsers[l.Name] = p
				}
				results[idx] = parse.File(ctx, p, &src, opts.Defined)
			}
		}()
	}

	for i := range inputs {
		work <- i
	}
	close(work)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
