package service

import (
	"context"

	"datalocator/internal/model"
)

// RowService exposes locator operations on loosely typed rows, as received
// over HTTP or read from JSON files.
type RowService interface {
	// Summarize describes the row without network I/O.
	Summarize(fields map[string]any, ov model.CloudOverride) model.Summary

	// Probe returns the remote size of the row's product.
	Probe(ctx context.Context, fields map[string]any, ov model.CloudOverride) (model.ProbeResult, error)

	// Download fetches the row's product to dest and returns the local path.
	Download(ctx context.Context, fields map[string]any, dest string, ov model.CloudOverride) (string, error)
}

var _ RowService = (*Locator)(nil)

func (l *Locator) Summarize(fields map[string]any, ov model.CloudOverride) model.Summary {
	return l.FromFields(fields).Summarize(ov)
}

func (l *Locator) Probe(ctx context.Context, fields map[string]any, ov model.CloudOverride) (model.ProbeResult, error) {
	return l.FromFields(fields).ProbeRemoteSize(ctx, ov)
}

func (l *Locator) Download(ctx context.Context, fields map[string]any, dest string, ov model.CloudOverride) (string, error) {
	return l.FromFields(fields).Download(ctx, dest, ov)
}
