package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

// writeAtomic streams r into a temporary file next to dst and renames it into
// place once the copy is complete. On any failure the temporary file is
// removed and dst is left untouched. expected < 0 disables the length check.
func writeAtomic(ctx context.Context, dst string, r io.Reader, expected int64) (n int64, err error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory for %s: %w", dst, err)
	}

	tmpPath := filepath.Join(dir, "."+filepath.Base(dst)+"."+uuid.NewString()+".part")
	tmp, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	n, err = io.Copy(tmp, &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return n, err
	}
	if expected >= 0 && n != expected {
		return n, fmt.Errorf("%w: short body: got %d of %d bytes", ErrTransfer, n, expected)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return n, fmt.Errorf("rename into %s: %w", dst, err)
	}
	committed = true
	// the file is complete at this point; a failed directory sync only
	// weakens durability
	_ = syncDir(dir)
	return n, nil
}

// ctxReader stops a copy as soon as ctx is done, even when the underlying
// reader ignores cancellation.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// syncDir best-effort fsyncs a directory so that recently renamed files become durable.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	df, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		// Some filesystems (e.g., tmpfs) return EINVAL for directory sync.
		if errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return err
	}
	return nil
}

// destination picks the final path for a download. An empty dest means
// defaultDir; a dest that is an existing directory or ends in a separator
// receives the derived file name.
func destination(dest, defaultDir, name string) string {
	if dest == "" {
		return filepath.Join(defaultDir, name)
	}
	if strings.HasSuffix(dest, string(filepath.Separator)) || strings.HasSuffix(dest, "/") {
		return filepath.Join(dest, name)
	}
	if st, err := os.Stat(dest); err == nil && st.IsDir() {
		return filepath.Join(dest, name)
	}
	return dest
}

// fileName derives a local file name from an object key or URL. Archive
// download endpoints often carry the product path in a "uri" query parameter.
func fileName(key, rawURL, fallback string) string {
	if name := cleanBase(key); name != "" {
		return name
	}
	if u, err := url.Parse(rawURL); err == nil {
		if uri := u.Query().Get("uri"); uri != "" {
			if i := strings.LastIndexAny(uri, "/:"); i >= 0 {
				uri = uri[i+1:]
			}
			if name := cleanBase(uri); name != "" {
				return name
			}
		}
		if name := cleanBase(u.Path); name != "" {
			return name
		}
	}
	if name := cleanBase(fallback); name != "" {
		return name
	}
	return "download"
}

func cleanBase(p string) string {
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	base := path.Base(p)
	if base == "." || base == "/" || base == ".." {
		return ""
	}
	return base
}
