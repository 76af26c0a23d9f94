package service

import (
	"context"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"datalocator/internal/model"
)

// BatchResult is the outcome for one row of a batch run.
type BatchResult struct {
	Index int
	Row   model.CatalogRow
	Path  string
	Probe model.ProbeResult
	Err   error
}

// DownloadAll downloads every row into destDir, running at most limit
// transfers at a time. Each row gets its own DataLocator; one failing row does
// not stop the others. Results are returned in input order.
func (l *Locator) DownloadAll(ctx context.Context, rows []model.CatalogRow, destDir string, ov model.CloudOverride, limit int) []BatchResult {
	if destDir != "" {
		destDir = filepath.Clean(destDir) + string(filepath.Separator)
	}
	return l.run(ctx, rows, limit, func(ctx context.Context, d *DataLocator, res *BatchResult) {
		res.Path, res.Err = d.Download(ctx, destDir, ov)
	})
}

// ProbeAll probes every row, running at most limit requests at a time.
func (l *Locator) ProbeAll(ctx context.Context, rows []model.CatalogRow, ov model.CloudOverride, limit int) []BatchResult {
	return l.run(ctx, rows, limit, func(ctx context.Context, d *DataLocator, res *BatchResult) {
		res.Probe, res.Err = d.ProbeRemoteSize(ctx, ov)
	})
}

func (l *Locator) run(ctx context.Context, rows []model.CatalogRow, limit int, fn func(context.Context, *DataLocator, *BatchResult)) []BatchResult {
	results := make([]BatchResult, len(rows))
	if limit <= 0 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, row := range rows {
		results[i] = BatchResult{Index: i, Row: row}
		res := &results[i]
		d := l.New(row)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				res.Err = err
				return nil
			}
			fn(ctx, d, res)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
