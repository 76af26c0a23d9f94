package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"datalocator/internal/model"
	"datalocator/internal/service"
	serviceMocks "datalocator/internal/service/mocks"
)

const cloudRow = `{"access_url":"https://heasarc.gsfc.nasa.gov/FTP/chandra/obs.fits","cloud_access":"aws:nasa-heasarc/chandra/obs.fits","obsid":"4485"}`

func postJSON(app *fiber.App, path, body string) *http.Response {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	return resp
}

func decodeError(t *testing.T, r io.Reader) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(r).Decode(&body))
	return body
}

func opError(op string, err error) error {
	return &service.OpError{Op: op, Mode: model.ModeCloud, Target: "aws:nasa-heasarc/chandra/obs.fits (region us-east-1)", Err: err}
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	resp, _ := app.Test(req)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "locator_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	app := fiber.New()
	app.Get("/metrics", Metrics(reg))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "locator_test_total 1")
}

func TestSummarizeRow(t *testing.T) {
	mockSvc := new(serviceMocks.MockRowService)
	app := fiber.New()
	app.Post("/v1/summary", SummarizeRow(mockSvc))

	t.Run("success", func(t *testing.T) {
		addr := &model.CloudAddress{Provider: "aws", Bucket: "nasa-heasarc", Key: "chandra/obs.fits", Region: "us-east-1"}
		mockSvc.On("Summarize", mock.MatchedBy(func(f map[string]any) bool { return f["obsid"] == "4485" }), model.NoOverride).
			Return(model.Summary{ObsID: "4485", Mode: model.ModeCloud, Address: addr}).Once()

		resp := postJSON(app, "/v1/summary", `{"row":`+cloudRow+`}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got model.Summary
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, "4485", got.ObsID)
		assert.Equal(t, model.ModeCloud, got.Mode)
		assert.Equal(t, *addr, *got.Address)
	})

	t.Run("override is passed through", func(t *testing.T) {
		mockSvc.On("Summarize", mock.Anything, mock.MatchedBy(func(o model.CloudOverride) bool {
			return o.Bucket != nil && *o.Bucket == "mirror" && o.Region == nil
		})).Return(model.Summary{ObsID: "4485"}).Once()

		resp := postJSON(app, "/v1/summary", `{"row":`+cloudRow+`,"override":{"bucket":"mirror"}}`)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("missing row", func(t *testing.T) {
		resp := postJSON(app, "/v1/summary", `{}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "ROW_REQUIRED", decodeError(t, resp.Body).Error.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp := postJSON(app, "/v1/summary", `{"row":`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_BODY", decodeError(t, resp.Body).Error.Code)
	})

	mockSvc.AssertExpectations(t)
}

func TestProbeRow(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		code      string
		retryable bool
	}{
		{"not found", opError("probe", fmt.Errorf("head: %w", service.ErrNotFound)), http.StatusNotFound, "NOT_FOUND", false},
		{"access denied", opError("probe", service.ErrAccessDenied), http.StatusForbidden, "ACCESS_DENIED", false},
		{"resolution", opError("probe", fmt.Errorf("%w: bad cloud_access", service.ErrResolution)), http.StatusUnprocessableEntity, "RESOLUTION_ERROR", false},
		{"missing access url", &service.OpError{Op: "probe", Err: service.ErrMissingAccessURL}, http.StatusUnprocessableEntity, "RESOLUTION_ERROR", false},
		{"transfer", opError("probe", service.ErrTransfer), http.StatusBadGateway, "TRANSFER_ERROR", true},
		{"timeout", opError("probe", fmt.Errorf("%w: %w", service.ErrTimeout, service.ErrTransfer)), http.StatusGatewayTimeout, "TIMEOUT", true},
		{"unclassified", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(serviceMocks.MockRowService)
			app := fiber.New()
			app.Post("/v1/probe", ProbeRow(mockSvc))

			mockSvc.On("Probe", mock.Anything, mock.Anything, model.NoOverride).
				Return(model.ProbeResult{}, tt.err).Once()

			resp := postJSON(app, "/v1/probe", `{"row":`+cloudRow+`}`)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := decodeError(t, resp.Body)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.retryable, body.Error.Retryable)
			mockSvc.AssertExpectations(t)
		})
	}

	t.Run("success", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockRowService)
		app := fiber.New()
		app.Post("/v1/probe", ProbeRow(mockSvc))

		mockSvc.On("Probe", mock.Anything, mock.Anything, mock.MatchedBy(func(o model.CloudOverride) bool {
			return o.Region != nil && *o.Region == "us-west-2"
		})).Return(model.ProbeResult{Size: 2880, Found: true}, nil).Once()

		resp := postJSON(app, "/v1/probe", `{"row":`+cloudRow+`,"override":{"region":"us-west-2"}}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var got model.ProbeResult
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, model.ProbeResult{Size: 2880, Found: true}, got)
	})

	t.Run("not found message names the address", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockRowService)
		app := fiber.New()
		app.Post("/v1/probe", ProbeRow(mockSvc))

		mockSvc.On("Probe", mock.Anything, mock.Anything, mock.Anything).
			Return(model.ProbeResult{}, opError("probe", service.ErrNotFound)).Once()

		resp := postJSON(app, "/v1/probe", `{"row":`+cloudRow+`}`)
		assert.Contains(t, decodeError(t, resp.Body).Error.Message, "nasa-heasarc")
	})
}

func TestDownloadRow(t *testing.T) {
	root := t.TempDir()

	t.Run("success into root", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockRowService)
		app := fiber.New()
		app.Post("/v1/download", DownloadRow(mockSvc, root))

		want := filepath.Join(root, "obs.fits")
		mockSvc.On("Download", mock.Anything, mock.Anything, root+string(filepath.Separator), model.NoOverride).
			Return(want, nil).Once()

		resp := postJSON(app, "/v1/download", `{"row":`+cloudRow+`}`)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		var got map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, want, got["path"])
		mockSvc.AssertExpectations(t)
	})

	t.Run("relative destination", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockRowService)
		app := fiber.New()
		app.Post("/v1/download", DownloadRow(mockSvc, root))

		dest := filepath.Join(root, "chandra") + string(filepath.Separator)
		mockSvc.On("Download", mock.Anything, mock.Anything, dest, model.NoOverride).
			Return(filepath.Join(dest, "obs.fits"), nil).Once()

		resp := postJSON(app, "/v1/download", `{"row":`+cloudRow+`,"destination":"chandra/"}`)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		mockSvc.AssertExpectations(t)
	})

	t.Run("escaping destination", func(t *testing.T) {
		for _, dest := range []string{"../etc/passwd", "/tmp/x", "a/../../b"} {
			mockSvc := new(serviceMocks.MockRowService)
			app := fiber.New()
			app.Post("/v1/download", DownloadRow(mockSvc, root))

			resp := postJSON(app, "/v1/download", `{"row":`+cloudRow+`,"destination":"`+dest+`"}`)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, dest)
			assert.Equal(t, "INVALID_DESTINATION", decodeError(t, resp.Body).Error.Code)
			mockSvc.AssertNotCalled(t, "Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("transfer failure", func(t *testing.T) {
		mockSvc := new(serviceMocks.MockRowService)
		app := fiber.New()
		app.Post("/v1/download", DownloadRow(mockSvc, root))

		mockSvc.On("Download", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return("", opError("download", service.ErrTransfer)).Once()

		resp := postJSON(app, "/v1/download", `{"row":`+cloudRow+`}`)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.True(t, decodeError(t, resp.Body).Error.Retryable)
	})
}

func TestConfine(t *testing.T) {
	root := filepath.Join("srv", "data")
	sep := string(filepath.Separator)

	tests := []struct {
		rel  string
		want string
		ok   bool
	}{
		{"", root + sep, true},
		{".", root + sep, true},
		{"obs.fits", filepath.Join(root, "obs.fits"), true},
		{"chandra/", filepath.Join(root, "chandra") + sep, true},
		{"a/./b/../c.fits", filepath.Join(root, "a", "c.fits"), true},
		{"..", "", false},
		{"../x", "", false},
		{"/abs", "", false},
	}
	for _, tt := range tests {
		got, ok := confine(root, tt.rel)
		assert.Equal(t, tt.ok, ok, tt.rel)
		assert.Equal(t, tt.want, got, tt.rel)
	}
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	app.Post("/v1/summary", func(c *fiber.Ctx) error { return nil })

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp.Body).Error.Code)

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/v1/summary", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
