package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"datalocator/internal/address"
	"datalocator/internal/metrics"
	"datalocator/internal/model"
	"datalocator/internal/storage"
)

// DefaultTimeout bounds each Download and ProbeRemoteSize call.
const DefaultTimeout = 30 * time.Second

// Locator holds the shared, read-only dependencies of DataLocators: the
// address grammar, the storage backends and the HTTP fetcher. It is safe for
// concurrent use; the DataLocators it creates are independent of each other.
type Locator struct {
	parser      *address.Parser
	backends    storage.Registry
	fetcher     storage.Fetcher
	columns     model.ColumnMap
	timeout     time.Duration
	downloadDir string
	log         zerolog.Logger
	metrics     *metrics.Recorder
	tracer      trace.Tracer
}

// Option configures a Locator.
type Option func(*Locator)

// WithTimeout sets the per-operation deadline.
func WithTimeout(d time.Duration) Option {
	return func(l *Locator) {
		if d > 0 {
			l.timeout = d
		}
	}
}

// WithDownloadDir sets where downloads land when no destination is given.
func WithDownloadDir(dir string) Option {
	return func(l *Locator) {
		if dir != "" {
			l.downloadDir = dir
		}
	}
}

// WithColumns sets the column mapping used by FromFields.
func WithColumns(cols model.ColumnMap) Option {
	return func(l *Locator) { l.columns = cols }
}

// WithAccessURLColumn overrides only the column holding the access URL.
func WithAccessURLColumn(column string) Option {
	return func(l *Locator) { l.columns = l.columns.WithAccessURL(column) }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Locator) { l.log = log }
}

// WithMetrics sets the Prometheus recorder.
func WithMetrics(r *metrics.Recorder) Option {
	return func(l *Locator) { l.metrics = r }
}

// NewLocator constructs a Locator. fetcher serves rows without cloud metadata.
func NewLocator(parser *address.Parser, backends storage.Registry, fetcher storage.Fetcher, opts ...Option) *Locator {
	l := &Locator{
		parser:      parser,
		backends:    backends,
		fetcher:     fetcher,
		columns:     model.DefaultColumns(),
		timeout:     DefaultTimeout,
		downloadDir: ".",
		log:         zerolog.Nop(),
		tracer:      otel.Tracer("datalocator/internal/service"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// New binds a DataLocator to row. It performs no I/O.
func (l *Locator) New(row model.CatalogRow) *DataLocator {
	return &DataLocator{l: l, row: row}
}

// FromFields builds the row from a loosely typed record using the configured
// column mapping and binds a DataLocator to it.
func (l *Locator) FromFields(fields map[string]any) *DataLocator {
	return l.New(model.RowFromFields(fields, l.columns))
}

// DataLocator decides how to reach the file described by one catalog row.
// Every call resolves the address again from the row and the override it is
// given; nothing is cached between calls.
type DataLocator struct {
	l   *Locator
	row model.CatalogRow
}

// Row returns the bound catalog row.
func (d *DataLocator) Row() model.CatalogRow { return d.row }

// target is the outcome of one resolution.
type target struct {
	mode model.TransferMode
	addr *model.CloudAddress
	url  string
}

func (t target) String() string {
	if t.addr != nil {
		return t.addr.String()
	}
	return t.url
}

func (d *DataLocator) resolve(ov model.CloudOverride) (target, error) {
	url := strings.TrimSpace(d.row.AccessURL)
	if url == "" {
		return target{}, ErrMissingAccessURL
	}
	if strings.TrimSpace(d.row.CloudAccess) == "" {
		return target{mode: model.ModeDirect, url: url}, nil
	}
	addr, err := d.l.parser.Resolve(d.row.CloudAccess, ov)
	if err != nil {
		return target{}, err
	}
	if addr == nil {
		return target{mode: model.ModeDirect, url: url}, nil
	}
	return target{mode: model.ModeCloud, addr: addr, url: url}, nil
}

// Summarize describes the row and how it resolves under ov. It never fails
// and performs no network I/O; resolution problems are reported in the
// Diagnostic field.
func (d *DataLocator) Summarize(ov model.CloudOverride) model.Summary {
	s := model.Summary{
		ObsID:          d.row.ObsID,
		TargetName:     d.row.TargetName,
		InstrumentName: d.row.InstrumentName,
		AccessFormat:   d.row.AccessFormat,
		URL:            strings.TrimSpace(d.row.AccessURL),
	}

	tgt, err := d.resolve(ov)
	switch {
	case errors.Is(err, ErrMissingAccessURL):
		s.Diagnostic = err.Error()
		s.Mode = model.ModeDirect
		if a, perr := d.l.parser.Resolve(d.row.CloudAccess, ov); perr == nil && a != nil {
			s.Mode = model.ModeCloud
			s.Address = a
		}
		s.RawCloudAccess = d.row.CloudAccess
	case err != nil:
		s.Mode = model.ModeDirect
		s.RawCloudAccess = d.row.CloudAccess
		s.Diagnostic = err.Error()
	case tgt.mode == model.ModeCloud:
		s.Mode = model.ModeCloud
		s.Address = tgt.addr
		s.URL = ""
		if _, lerr := d.l.backends.Lookup(tgt.addr.Provider); lerr != nil {
			s.Diagnostic = lerr.Error()
		}
	default:
		s.Mode = model.ModeDirect
	}

	d.l.log.Debug().
		Str("obs_id", s.ObsID).
		Str("mode", string(s.Mode)).
		Str("diagnostic", s.Diagnostic).
		Msg("summarized row")
	return s
}

// Download transfers the product to local storage and returns the final
// path. dest may be empty (configured download directory), a directory, or a
// file path. The body is written to a temporary file that is renamed into
// place only after the complete content arrived, so a failure never leaves a
// file at the destination path.
func (d *DataLocator) Download(ctx context.Context, dest string, ov model.CloudOverride) (path string, err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.l.timeout)
	defer cancel()
	ctx, span := d.l.tracer.Start(ctx, "locator.download")
	defer span.End()

	tgt, err := d.resolve(ov)
	if err != nil {
		return "", d.finish(span, "download", tgt, start, err)
	}
	d.annotate(span, tgt)

	var (
		body io.ReadCloser
		info storage.ObjectInfo
	)
	if tgt.mode == model.ModeCloud {
		backend, lerr := d.l.backends.Lookup(tgt.addr.Provider)
		if lerr != nil {
			return "", d.finish(span, "download", tgt, start, transferFailure(ctx, lerr))
		}
		body, info, err = backend.Get(ctx, *tgt.addr)
	} else {
		body, info, err = d.l.fetcher.Fetch(ctx, tgt.url)
	}
	if err != nil {
		return "", d.finish(span, "download", tgt, start, transferFailure(ctx, err))
	}
	defer body.Close()

	key := ""
	if tgt.addr != nil {
		key = tgt.addr.Key
	}
	path = destination(dest, d.l.downloadDir, fileName(key, tgt.url, d.row.ObsID))

	n, err := writeAtomic(ctx, path, body, info.Size)
	if err != nil {
		return "", d.finish(span, "download", tgt, start, transferFailure(ctx, err))
	}

	d.l.metrics.AddBytes(string(tgt.mode), n)
	span.SetAttributes(attribute.Int64("locator.bytes", n))
	d.l.log.Info().
		Str("obs_id", d.row.ObsID).
		Str("path", path).
		Int64("bytes", n).
		Msg("downloaded")
	return path, d.finish(span, "download", tgt, start, nil)
}

// ProbeRemoteSize asks the remote side for the object's length without
// transferring the body. A missing object yields Found=false together with an
// error wrapping ErrNotFound. Size is -1 when the server does not report one.
func (d *DataLocator) ProbeRemoteSize(ctx context.Context, ov model.CloudOverride) (model.ProbeResult, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.l.timeout)
	defer cancel()
	ctx, span := d.l.tracer.Start(ctx, "locator.probe")
	defer span.End()

	tgt, err := d.resolve(ov)
	if err != nil {
		return model.ProbeResult{}, d.finish(span, "probe", tgt, start, err)
	}
	d.annotate(span, tgt)

	var info storage.ObjectInfo
	if tgt.mode == model.ModeCloud {
		backend, lerr := d.l.backends.Lookup(tgt.addr.Provider)
		if lerr != nil {
			return model.ProbeResult{}, d.finish(span, "probe", tgt, start, probeFailure(ctx, lerr))
		}
		info, err = backend.Stat(ctx, *tgt.addr)
	} else {
		info, err = d.l.fetcher.Head(ctx, tgt.url)
	}
	if err != nil {
		return model.ProbeResult{}, d.finish(span, "probe", tgt, start, probeFailure(ctx, err))
	}

	span.SetAttributes(attribute.Int64("locator.size", info.Size))
	return model.ProbeResult{Size: info.Size, Found: true}, d.finish(span, "probe", tgt, start, nil)
}

func (d *DataLocator) annotate(span trace.Span, tgt target) {
	span.SetAttributes(attribute.String("locator.mode", string(tgt.mode)))
	if tgt.addr != nil {
		span.SetAttributes(
			attribute.String("locator.provider", tgt.addr.Provider),
			attribute.String("locator.bucket", tgt.addr.Bucket),
			attribute.String("locator.key", tgt.addr.Key),
			attribute.String("locator.region", tgt.addr.Region),
		)
	}
}

// finish records the outcome of an operation and wraps err in an OpError.
func (d *DataLocator) finish(span trace.Span, op string, tgt target, start time.Time, err error) error {
	elapsed := time.Since(start)
	outcome := Outcome(err)
	d.l.metrics.Observe(op, string(tgt.mode), outcome, elapsed)

	if err == nil {
		span.SetStatus(codes.Ok, "")
		return nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)

	ev := d.l.log.Warn()
	if outcome == "error" {
		ev = d.l.log.Error()
	}
	ev = ev.Err(err).
		Str("op", op).
		Str("obs_id", d.row.ObsID).
		Str("mode", string(tgt.mode)).
		Str("outcome", outcome).
		Dur("elapsed", elapsed)
	if tgt.addr != nil {
		ev = ev.Str("bucket", tgt.addr.Bucket).Str("key", tgt.addr.Key).Str("region", tgt.addr.Region)
	}
	ev.Msg("operation failed")

	return &OpError{Op: op, Mode: tgt.mode, Target: tgt.String(), Err: err}
}

// String implements fmt.Stringer with the summary block under no override.
func (d *DataLocator) String() string {
	return fmt.Sprint(d.Summarize(model.NoOverride))
}
