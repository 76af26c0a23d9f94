package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// httpFetcher fetches access URLs over plain HTTP(S).
type httpFetcher struct {
	client *http.Client
}

// NewHTTP creates a Fetcher. A nil client selects one with an
// OpenTelemetry-instrumented transport; per-request deadlines come from ctx.
func NewHTTP(client *http.Client) Fetcher {
	if client == nil {
		client = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &httpFetcher{client: client}
}

// Head issues a HEAD request. Servers that refuse HEAD are asked for the
// first byte instead and the total length is taken from Content-Range.
func (h *httpFetcher) Head(ctx context.Context, rawURL string) (ObjectInfo, error) {
	if err := checkScheme(rawURL); err != nil {
		return ObjectInfo{}, err
	}
	resp, err := h.do(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return ObjectInfo{}, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented {
		return h.rangeProbe(ctx, rawURL)
	}
	if err := statusError("head "+rawURL, resp); err != nil {
		return ObjectInfo{}, err
	}
	return responseInfo(rawURL, resp), nil
}

func (h *httpFetcher) rangeProbe(ctx context.Context, rawURL string) (ObjectInfo, error) {
	resp, err := h.do(ctx, http.MethodGet, rawURL, http.Header{"Range": {"bytes=0-0"}})
	if err != nil {
		return ObjectInfo{}, err
	}
	defer resp.Body.Close()

	if err := statusError("get "+rawURL, resp); err != nil {
		return ObjectInfo{}, err
	}
	info := responseInfo(rawURL, resp)
	if resp.StatusCode == http.StatusPartialContent {
		var first, last, total int64
		if _, err := fmt.Sscanf(resp.Header.Get("Content-Range"), "bytes %d-%d/%d", &first, &last, &total); err == nil {
			info.Size = total
		} else {
			info.Size = -1
		}
	}
	return info, nil
}

// Fetch issues a GET and returns the body for streaming.
func (h *httpFetcher) Fetch(ctx context.Context, rawURL string) (io.ReadCloser, ObjectInfo, error) {
	if err := checkScheme(rawURL); err != nil {
		return nil, ObjectInfo{}, err
	}
	resp, err := h.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if err := statusError("get "+rawURL, resp); err != nil {
		resp.Body.Close()
		return nil, ObjectInfo{}, err
	}
	return &transferReader{rc: resp.Body}, responseInfo(rawURL, resp), nil
}

func (h *httpFetcher) do(ctx context.Context, method, rawURL string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, wrap(ErrTransfer, method+" "+rawURL, err)
	}
	return resp, nil
}

func checkScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedScheme, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: %q has no host", ErrUnsupportedScheme, rawURL)
	}
	return nil
}

func statusError(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("%s: %w: status %s", op, classifyStatus(resp.StatusCode), resp.Status)
}

func responseInfo(rawURL string, resp *http.Response) ObjectInfo {
	info := ObjectInfo{
		Key:         keyFromURL(rawURL),
		Size:        resp.ContentLength,
		ETag:        resp.Header.Get("ETag"),
		ContentType: resp.Header.Get("Content-Type"),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			info.LastModified = t
		}
	}
	return info
}

func keyFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return path.Base(u.Path)
}

// compile-time interface checks
var (
	_ Fetcher = (*httpFetcher)(nil)
	_ Backend = (*minioStorage)(nil)
	_ Backend = (*sdkStorage)(nil)
)
