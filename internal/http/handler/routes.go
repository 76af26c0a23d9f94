package handler

import (
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datalocator/internal/model"
	"datalocator/internal/service"
)

// rowRequest is the body accepted by the locator endpoints.
type rowRequest struct {
	Row         map[string]any      `json:"row"`
	Override    model.CloudOverride `json:"override"`
	Destination string              `json:"destination"`
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// downloadDir confines every download the API performs.
func RegisterRoutes(app *fiber.App, svc service.RowService, gatherer prometheus.Gatherer, downloadDir string) {
	app.Get("/healthz", LivenessProbe())
	app.Get("/metrics", Metrics(gatherer))

	v1 := app.Group("/v1")
	v1.Post("/summary", SummarizeRow(svc))
	v1.Post("/probe", ProbeRow(svc))
	v1.Post("/download", DownloadRow(svc, downloadDir))
}

// LivenessProbe is a simple liveness probe.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// Metrics serves the Prometheus exposition format for gatherer.
func Metrics(gatherer prometheus.Gatherer) fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// parseRow decodes the request body. When ok is false the error response
// has already been written and err is the result of writing it.
func parseRow(c *fiber.Ctx) (req rowRequest, ok bool, err error) {
	if err := c.BodyParser(&req); err != nil {
		return req, false, writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "body must be a JSON object")
	}
	if len(req.Row) == 0 {
		return req, false, writeError(c, fiber.StatusBadRequest, "ROW_REQUIRED", "row is required")
	}
	return req, true, nil
}

// SummarizeRow describes how a row resolves. It never touches the network
// and answers 200 even for malformed cloud metadata.
func SummarizeRow(svc service.RowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, ok, err := parseRow(c)
		if !ok {
			return err
		}
		return c.JSON(svc.Summarize(req.Row, req.Override))
	}
}

// ProbeRow returns the remote size of a row's product.
func ProbeRow(svc service.RowService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, ok, err := parseRow(c)
		if !ok {
			return err
		}
		res, err := svc.Probe(c.UserContext(), req.Row, req.Override)
		if err != nil {
			return writeLocatorError(c, err)
		}
		return c.JSON(res)
	}
}

// DownloadRow downloads a row's product below downloadDir. The optional
// destination is relative to downloadDir and may not escape it.
func DownloadRow(svc service.RowService, downloadDir string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req, ok, err := parseRow(c)
		if !ok {
			return err
		}
		dest, ok := confine(downloadDir, req.Destination)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DESTINATION", "destination must be a relative path")
		}
		path, err := svc.Download(c.UserContext(), req.Row, dest, req.Override)
		if err != nil {
			return writeLocatorError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"path": path})
	}
}

// confine joins rel onto root, rejecting absolute paths and parent escapes.
// A trailing separator on rel is kept so it still names a directory.
func confine(root, rel string) (string, bool) {
	if rel == "" {
		return root + string(filepath.Separator), true
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	out := filepath.Join(root, clean)
	if strings.HasSuffix(rel, "/") || clean == "." {
		out += string(filepath.Separator)
	}
	return out, true
}
