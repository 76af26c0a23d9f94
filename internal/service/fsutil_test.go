package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileName(t *testing.T) {
	tests := []struct {
		key, url, fallback, want string
	}{
		{"FTP/chandra/data/obs/6/4485/primary/acisf04485N004_cntr_img2.jpg", "https://x/y", "", "acisf04485N004_cntr_img2.jpg"},
		{"", "https://heasarc.gsfc.nasa.gov/FTP/chandra/obs123.fits", "", "obs123.fits"},
		{"", "https://mast.stsci.edu/portal/Download/file?uri=mast:HST/product/u24r0102t_c1f.fits", "", "u24r0102t_c1f.fits"},
		{"", "https://mast.stsci.edu/api/v0.1/Download/file?uri=mast:u24r0102t_c1f.fits", "", "u24r0102t_c1f.fits"},
		{"", "https://example.org/", "obs42", "obs42"},
		{"", "https://example.org", "", "download"},
		{"dir/", "", "", "dir"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fileName(tt.key, tt.url, tt.fallback), "%s %s", tt.key, tt.url)
	}
}

func TestDestination(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, filepath.Join("/data", "obs.fits"), destination("", "/data", "obs.fits"))
	assert.Equal(t, filepath.Join(dir, "obs.fits"), destination(dir, "/data", "obs.fits"))
	assert.Equal(t, filepath.Join("new", "obs.fits"), destination("new"+string(filepath.Separator), "/data", "obs.fits"))
	assert.Equal(t, filepath.Join(dir, "named.fits"), destination(filepath.Join(dir, "named.fits"), "/data", "obs.fits"))
}

func TestWriteAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("creates parent directories", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "a", "b", "obs.fits")
		n, err := writeAtomic(ctx, dst, strings.NewReader("hello"), 5)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)

		got, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "hello", string(got))
	})

	t.Run("unknown length", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "obs.fits")
		_, err := writeAtomic(ctx, dst, strings.NewReader("hello"), -1)
		require.NoError(t, err)
	})

	t.Run("length mismatch", func(t *testing.T) {
		dir := t.TempDir()
		_, err := writeAtomic(ctx, filepath.Join(dir, "obs.fits"), strings.NewReader("toolong"), 3)
		assert.ErrorIs(t, err, ErrTransfer)
		assertNoFiles(t, dir)
	})

	t.Run("canceled context", func(t *testing.T) {
		dir := t.TempDir()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := writeAtomic(cctx, filepath.Join(dir, "obs.fits"), strings.NewReader("hello"), 5)
		assert.ErrorIs(t, err, context.Canceled)
		assertNoFiles(t, dir)
	})
}
