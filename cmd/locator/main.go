package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"datalocator/internal/config"
	"datalocator/internal/logger"
	"datalocator/internal/model"
	"datalocator/internal/service"
)

// runner carries what every command needs once Before has run.
type runner struct {
	cfg *config.AppConfig
	log zerolog.Logger
	loc *service.Locator
	out io.Writer
}

func (r *runner) setup(c *cli.Context) error {
	r.cfg = config.Load()
	if c.IsSet("log-level") {
		r.cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("timeout") {
		r.cfg.Locator.Timeout = c.Duration("timeout")
	}
	if c.IsSet("aws-driver") {
		r.cfg.Locator.AWSDriver = c.String("aws-driver")
	}
	if c.IsSet("access-url-column") {
		r.cfg.Locator.AccessURLColumn = c.String("access-url-column")
	}
	r.log = logger.NewConsole(r.cfg.LogLevel)

	loc, err := service.NewFromConfig(r.cfg, r.log, nil)
	if err != nil {
		return err
	}
	r.loc = loc
	return nil
}

func overrideFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "bucket", Usage: "Read from this bucket instead of the one in the row"},
		&cli.StringFlag{Name: "region", Usage: "Use this bucket region instead of the one in the row"},
	}
}

// override builds the per-call override from --bucket and --region.
func override(c *cli.Context) model.CloudOverride {
	var ov model.CloudOverride
	if c.IsSet("bucket") {
		ov = model.OverrideBucket(c.String("bucket"))
	}
	if c.IsSet("region") {
		region := c.String("region")
		ov.Region = &region
	}
	return ov
}

// globalFlags override values config.Load already read from the
// environment, so only explicitly passed flags take effect.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "log-level", Usage: "zerolog level (env LOG_LEVEL)"},
		&cli.DurationFlag{Name: "timeout", Usage: "Deadline for each probe or download (env LOCATOR_TIMEOUT)"},
		&cli.StringFlag{Name: "aws-driver", Usage: "S3 client behind the aws provider: minio or sdk (env LOCATOR_AWS_DRIVER)"},
		&cli.StringFlag{Name: "access-url-column", Usage: "Row column holding the direct URL (env LOCATOR_ACCESS_URL_COLUMN)"},
	}
}

func rowFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "row", Usage: "Catalog row as a JSON object", Required: true}
}

func main() {
	r := &runner{out: os.Stdout}

	app := &cli.App{
		Name:  "locator",
		Usage: "Locate and download astronomy data products from catalog rows",
		Flags:  globalFlags(),
		Before: r.setup,
		Commands: []*cli.Command{
			{
				Name:  "summary",
				Usage: "Describe how a row resolves without touching the network",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "row", Usage: "Catalog row as a JSON object"},
					&cli.StringFlag{Name: "rows", Usage: "File of rows (JSON array or JSON lines), - for stdin"},
					&cli.BoolFlag{Name: "json", Usage: "Print summaries as JSON"},
				}, overrideFlags()...),
				Action: r.summary,
			},
			{
				Name:   "probe",
				Usage:  "Report the remote size of a row's product",
				Flags:  append([]cli.Flag{rowFlag()}, overrideFlags()...),
				Action: r.probe,
			},
			{
				Name:  "download",
				Usage: "Download a row's product",
				Flags: append([]cli.Flag{
					rowFlag(),
					&cli.StringFlag{Name: "dest", Usage: "Destination file or directory (defaults to LOCATOR_DOWNLOAD_DIR)"},
				}, overrideFlags()...),
				Action: r.download,
			},
			{
				Name:  "batch",
				Usage: "Download or probe many rows concurrently",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "rows", Usage: "File of rows (JSON array or JSON lines), - for stdin", Required: true},
					&cli.StringFlag{Name: "dest", Usage: "Destination directory (defaults to LOCATOR_DOWNLOAD_DIR)"},
					&cli.BoolFlag{Name: "probe-only", Usage: "Probe sizes instead of downloading"},
					&cli.IntFlag{Name: "concurrency", Usage: "Transfers in flight", EnvVars: []string{"LOCATOR_CONCURRENCY"}},
				}, overrideFlags()...),
				Action: r.batch,
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "locator:", err)
		stop()
		os.Exit(1)
	}
}

func (r *runner) summary(c *cli.Context) error {
	var rows []map[string]any
	switch {
	case c.IsSet("rows"):
		var err error
		if rows, err = readRows(c.String("rows"), os.Stdin); err != nil {
			return err
		}
	case c.IsSet("row"):
		row, err := parseRow(c.String("row"))
		if err != nil {
			return err
		}
		rows = append(rows, row)
	default:
		return errors.New("one of --row or --rows is required")
	}

	ov := override(c)
	summaries := make([]model.Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, r.loc.Summarize(row, ov))
	}

	if c.Bool("json") {
		enc := json.NewEncoder(r.out)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(r.out)
		}
		fmt.Fprintln(r.out, s.String())
	}
	return nil
}

func (r *runner) probe(c *cli.Context) error {
	row, err := parseRow(c.String("row"))
	if err != nil {
		return err
	}
	res, err := r.loc.Probe(c.Context, row, override(c))
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "%d\n", res.Size)
	return nil
}

func (r *runner) download(c *cli.Context) error {
	row, err := parseRow(c.String("row"))
	if err != nil {
		return err
	}
	path, err := r.loc.Download(c.Context, row, c.String("dest"), override(c))
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, path)
	return nil
}

func (r *runner) batch(c *cli.Context) error {
	fields, err := readRows(c.String("rows"), os.Stdin)
	if err != nil {
		return err
	}
	rows := make([]model.CatalogRow, len(fields))
	for i, f := range fields {
		rows[i] = r.loc.FromFields(f).Row()
	}

	limit := r.cfg.Locator.Concurrency
	if c.IsSet("concurrency") {
		limit = c.Int("concurrency")
	}

	ov := override(c)
	var results []service.BatchResult
	if c.Bool("probe-only") {
		results = r.loc.ProbeAll(c.Context, rows, ov, limit)
	} else {
		results = r.loc.DownloadAll(c.Context, rows, c.String("dest"), ov, limit)
	}
	return report(r.out, r.log, results, c.Bool("probe-only"))
}

// report prints one tab-separated line per row and returns an error naming
// how many rows failed.
func report(w io.Writer, log zerolog.Logger, results []service.BatchResult, probe bool) error {
	failed := 0
	for _, res := range results {
		id := res.Row.ObsID
		if id == "" {
			id = fmt.Sprintf("#%d", res.Index)
		}
		if res.Err != nil {
			failed++
			log.Warn().Err(res.Err).Str("obs_id", id).Str("outcome", service.Outcome(res.Err)).Bool("retryable", service.Retryable(res.Err)).Msg("row failed")
			fmt.Fprintf(w, "%s\t%s\t%v\n", id, service.Outcome(res.Err), res.Err)
			continue
		}
		if probe {
			fmt.Fprintf(w, "%s\tok\t%d\n", id, res.Probe.Size)
		} else {
			fmt.Fprintf(w, "%s\tok\t%s\n", id, res.Path)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d rows failed", failed, len(results))
	}
	return nil
}
