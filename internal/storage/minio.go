package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"datalocator/internal/config"
	"datalocator/internal/model"
)

const defaultS3Endpoint = "s3.amazonaws.com"

// minioStorage implements Backend on top of minio-go against AWS S3 or any
// S3-compatible endpoint. Clients are created lazily, one per region, since a
// signed request is only valid for the region it was signed for.
// It is safe for concurrent use by multiple goroutines.
type minioStorage struct {
	cfg config.S3Config

	mu      sync.Mutex
	clients map[string]*minio.Client
}

// NewMinIO creates a Backend backed by minio-go. No network I/O happens here;
// empty credentials select anonymous access, which is what public archive
// buckets expect.
func NewMinIO(cfg config.S3Config) (Backend, error) {
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, fmt.Errorf("s3 access key and secret key must be set together")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultS3Endpoint
	}
	cfg.Endpoint = strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	return &minioStorage{cfg: cfg, clients: make(map[string]*minio.Client)}, nil
}

func (m *minioStorage) client(region string) (*minio.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cli, ok := m.clients[region]; ok {
		return cli, nil
	}

	lookup := minio.BucketLookupAuto
	if m.cfg.PathStyle {
		lookup = minio.BucketLookupPath
	}
	cli, err := minio.New(m.cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(m.cfg.AccessKey, m.cfg.SecretKey, ""),
		Secure:       m.cfg.UseSSL,
		Region:       region,
		BucketLookup: lookup,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	m.clients[region] = cli
	return cli, nil
}

// Stat issues a HEAD against the object.
func (m *minioStorage) Stat(ctx context.Context, addr model.CloudAddress) (ObjectInfo, error) {
	cli, err := m.client(addr.Region)
	if err != nil {
		return ObjectInfo{}, err
	}
	st, err := cli.StatObject(ctx, addr.Bucket, addr.Key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, minioError("stat "+addr.Bucket+"/"+addr.Key, err)
	}
	return objectInfo(addr.Key, st), nil
}

// Get downloads an object content as a ReadCloser along with basic info.
func (m *minioStorage) Get(ctx context.Context, addr model.CloudAddress) (io.ReadCloser, ObjectInfo, error) {
	cli, err := m.client(addr.Region)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	obj, err := cli.GetObject(ctx, addr.Bucket, addr.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, ObjectInfo{}, minioError("get "+addr.Bucket+"/"+addr.Key, err)
	}
	// GetObject is lazy; Stat performs the request so failures surface here
	// instead of on the first Read.
	st, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, ObjectInfo{}, minioError("get "+addr.Bucket+"/"+addr.Key, err)
	}
	return &minioReader{obj: obj}, objectInfo(addr.Key, st), nil
}

func objectInfo(key string, st minio.ObjectInfo) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         st.Size,
		ETag:         st.ETag,
		ContentType:  st.ContentType,
		LastModified: st.LastModified,
	}
}

func minioError(op string, err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "" && resp.StatusCode == 0 {
		return wrap(ErrTransfer, op, err)
	}
	return wrap(classifyResponse(resp.Code, resp.StatusCode, resp.Region), op, err)
}

// minioReader classifies errors raised while the body is streaming.
type minioReader struct {
	obj *minio.Object
}

func (r *minioReader) Read(p []byte) (int, error) {
	n, err := r.obj.Read(p)
	if err != nil && err != io.EOF {
		return n, minioError("read", err)
	}
	return n, err
}

func (r *minioReader) Close() error {
	return r.obj.Close()
}
