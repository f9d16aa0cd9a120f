package builder

import (
	"context"
	"log/slog"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codeatlas-dev/codeatlas/internal/entity"
	"github.com/codeatlas-dev/codeatlas/internal/lang"
	"github.com/codeatlas-dev/codeatlas/internal/parser"
)

// ParseAll parses a path->content set in parallel across CPUs. Parsing
// is a pure function of one file's text, so files fan out freely. Files
// with no registered language are ignored; files that fail to parse are
// logged, counted and skipped. Results come back in path order.
func ParseAll(ctx context.Context, reg *lang.Registry, sources map[string][]byte) ([]*entity.ParsedFile, int, error) {
	paths := make([]string, 0, len(sources))
	for p := range sources {
		if reg.ForPath(p) != nil {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)

	parsed := make([]*entity.ParsedFile, len(paths))
	var mu sync.Mutex
	failedCount := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pf, err := parser.ParseFile(reg, path, sources[path])
			if err != nil {
				slog.Warn("builder.parse.skip", "path", path, "err", err)
				mu.Lock()
				failedCount++
				mu.Unlock()
				return nil
			}
			parsed[i] = pf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, failedCount, err
	}

	result := parsed[:0]
	for _, pf := range parsed {
		if pf != nil {
			result = append(result, pf)
		}
	}
	return result, failedCount, nil
}

// ProcessSources parses the given path->content set in parallel and then
// rebuilds each file's subgraph sequentially. Graph writes stay
// sequential per project for subgraph consistency.
//
// A file that fails to parse or build is logged and skipped; one bad
// file never aborts the batch.
func (b *Builder) ProcessSources(ctx context.Context, reg *lang.Registry, sources map[string][]byte) (*Stats, error) {
	parsed, failed, err := ParseAll(ctx, reg, sources)
	if err != nil {
		return &Stats{}, err
	}

	total := &Stats{FilesFailed: failed}
	for _, pf := range parsed {
		stats, err := b.ProcessFile(ctx, pf)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			slog.Error("builder.file.failed", "path", pf.Path, "err", err)
			total.FilesFailed++
			continue
		}
		total.Add(stats)
	}
	return total, nil
}
