package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"datalocator/internal/address"
	"datalocator/internal/config"
	"datalocator/internal/metrics"
	"datalocator/internal/storage"
)

// NewFromConfig assembles a Locator from application configuration: the
// address grammar, one S3 backend shared by every configured provider, and
// the direct HTTP fetcher. rec may be nil.
func NewFromConfig(cfg *config.AppConfig, log zerolog.Logger, rec *metrics.Recorder) (*Locator, error) {
	parser, err := address.NewParser(cfg.Locator.CloudPattern,
		address.WithDefaultRegion(cfg.Locator.DefaultRegion),
		address.WithProviders(cfg.Locator.Providers...),
	)
	if err != nil {
		return nil, err
	}

	var backend storage.Backend
	switch cfg.Locator.AWSDriver {
	case "", "minio":
		backend, err = storage.NewMinIO(cfg.S3)
	case "sdk":
		backend, err = storage.NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown LOCATOR_AWS_DRIVER %q", cfg.Locator.AWSDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	backends := storage.Registry{}
	for _, name := range cfg.Locator.Providers {
		backends[name] = backend
	}

	return NewLocator(parser, backends, storage.NewHTTP(nil),
		WithTimeout(cfg.Locator.Timeout),
		WithDownloadDir(cfg.Locator.DownloadDir),
		WithAccessURLColumn(cfg.Locator.AccessURLColumn),
		WithLogger(log),
		WithMetrics(rec),
	), nil
}
