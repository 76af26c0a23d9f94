package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datalocator/internal/model"
)

func TestParser_Resolve(t *testing.T) {
	p := MustParser("")

	tests := []struct {
		name    string
		raw     string
		ov      model.CloudOverride
		want    *model.CloudAddress
		wantErr bool
	}{
		{
			name: "provider bucket key with default region",
			raw:  "aws:heasarc-bucket/obs123.fits",
			want: &model.CloudAddress{Provider: "aws", Bucket: "heasarc-bucket", Key: "obs123.fits", Region: "us-east-1"},
		},
		{
			name: "nested key and explicit region",
			raw:  "aws:dh-fornaxdev/FTP/chandra/data/obs/6/4485/primary/acisf04485N004_cntr_img2.jpg?region=us-east-2",
			want: &model.CloudAddress{Provider: "aws", Bucket: "dh-fornaxdev", Key: "FTP/chandra/data/obs/6/4485/primary/acisf04485N004_cntr_img2.jpg", Region: "us-east-2"},
		},
		{
			name: "json form",
			raw:  `{"aws": {"bucket_name": "stpubdata", "key": "hst/public/u24r/u24r0102t/u24r0102t_c1f.fits", "region": "us-east-1"}}`,
			want: &model.CloudAddress{Provider: "aws", Bucket: "stpubdata", Key: "hst/public/u24r/u24r0102t/u24r0102t_c1f.fits", Region: "us-east-1"},
		},
		{
			name: "json form with aliases and no region",
			raw:  `{"aws": {"bucket": "b", "path": "/k.fits"}}`,
			want: &model.CloudAddress{Provider: "aws", Bucket: "b", Key: "k.fits", Region: "us-east-1"},
		},
		{
			name: "s3 uri",
			raw:  "s3://heasarc-bucket/dir/obs123.fits",
			want: &model.CloudAddress{Provider: "aws", Bucket: "heasarc-bucket", Key: "dir/obs123.fits", Region: "us-east-1"},
		},
		{
			name: "overrides applied after parsing",
			raw:  "aws:heasarc-bucket/obs123.fits",
			ov:   model.CloudOverride{Bucket: ptr("heasarc2-bucket"), Region: ptr("us-west-2")},
			want: &model.CloudAddress{Provider: "aws", Bucket: "heasarc2-bucket", Key: "obs123.fits", Region: "us-west-2"},
		},
		{name: "empty", raw: "   "},
		{name: "empty json object", raw: "{}"},
		{name: "masked value", raw: "--"},
		{name: "no separator", raw: "heasarc-bucket/obs123.fits", wantErr: true},
		{name: "missing key", raw: "aws:heasarc-bucket/", wantErr: true},
		{name: "unknown query", raw: "aws:b/k.fits?foo=bar", wantErr: true},
		{name: "bad json", raw: `{"aws": `, wantErr: true},
		{name: "unsupported provider", raw: `{"gcp": {"bucket_name": "b", "key": "k"}}`, wantErr: true},
		{name: "json without key", raw: `{"aws": {"bucket_name": "b"}}`, wantErr: true},
		{name: "s3 uri without key", raw: "s3://bucket", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Resolve(tt.raw, tt.ov)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrResolution)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParser_RegionMutationChangesOnlyRegion(t *testing.T) {
	p := MustParser("")
	rows := []string{
		"aws:heasarc-bucket/obs123.fits?region=us-east-1",
		"aws:dh-fornaxdev/FTP/chandra/data/obs/6/4485/primary/img.fits?region=us-east-1",
		"gcs:bucket-x/a/b/c.fits?region=us-east-1",
	}
	for _, raw := range rows {
		before, err := p.Resolve(raw, model.NoOverride)
		require.NoError(t, err)

		after, err := p.Resolve(strings.Replace(raw, "us-east-1", "us-east-2", 1), model.NoOverride)
		require.NoError(t, err)

		assert.Equal(t, "us-east-2", after.Region)
		after.Region = before.Region
		assert.Equal(t, *before, *after, raw)
	}
}

func TestParser_BucketMutation(t *testing.T) {
	p := MustParser("")
	raw := "aws:heasarc-bucket/obs123.fits"

	got, err := p.Resolve(strings.Replace(raw, "heasarc", "heasarc2", 1), model.NoOverride)
	require.NoError(t, err)
	assert.Equal(t, "heasarc2-bucket", got.Bucket)
	assert.Equal(t, "obs123.fits", got.Key)
}

func TestNewParser(t *testing.T) {
	t.Run("custom grammar", func(t *testing.T) {
		p, err := NewParser(`^(?P<provider>\w+)://(?P<region>[a-z0-9-]+)/(?P<bucket>[^/]+)/(?P<key>.+)$`, WithDefaultRegion("eu-west-1"))
		require.NoError(t, err)

		got, err := p.Resolve("aws://us-west-2/b/k.fits", model.NoOverride)
		require.NoError(t, err)
		assert.Equal(t, &model.CloudAddress{Provider: "aws", Bucket: "b", Key: "k.fits", Region: "us-west-2"}, got)
		assert.Equal(t, "eu-west-1", p.DefaultRegion())
	})

	t.Run("missing groups", func(t *testing.T) {
		_, err := NewParser(`^(?P<provider>\w+):(?P<bucket>.+)$`)
		assert.ErrorContains(t, err, `lacks group "key"`)
	})

	t.Run("invalid regexp", func(t *testing.T) {
		_, err := NewParser(`(`)
		assert.Error(t, err)
	})

	t.Run("provider preference for json", func(t *testing.T) {
		p, err := NewParser("", WithProviders("gcp", "aws"))
		require.NoError(t, err)
		got, err := p.Resolve(`{"aws": {"bucket_name": "a", "key": "k"}, "gcp": {"bucket_name": "g", "key": "k"}}`, model.NoOverride)
		require.NoError(t, err)
		assert.Equal(t, "gcp", got.Provider)
		assert.Equal(t, "g", got.Bucket)
	})
}

func TestErrMissingAccessURL(t *testing.T) {
	assert.ErrorIs(t, ErrMissingAccessURL, ErrResolution)
}

func ptr(s string) *string { return &s }
