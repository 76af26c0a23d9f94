package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/logging"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"datalocator/internal/config"
	"datalocator/internal/model"
)

// sdkStorage implements Backend with aws-sdk-go-v2. It keeps one client per
// region and is safe for concurrent use.
type sdkStorage struct {
	cfg config.S3Config

	mu      sync.Mutex
	clients map[string]*s3.Client
}

// NewS3 creates a Backend backed by aws-sdk-go-v2. An empty endpoint targets
// AWS itself; empty credentials select anonymous requests.
func NewS3(cfg config.S3Config) (Backend, error) {
	if (cfg.AccessKey == "") != (cfg.SecretKey == "") {
		return nil, fmt.Errorf("s3 access key and secret key must be set together")
	}
	if cfg.Endpoint != "" && !strings.Contains(cfg.Endpoint, "://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		cfg.Endpoint = scheme + "://" + cfg.Endpoint
	}
	return &sdkStorage{cfg: cfg, clients: make(map[string]*s3.Client)}, nil
}

func (s *sdkStorage) client(region string) *s3.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cli, ok := s.clients[region]; ok {
		return cli
	}

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if s.cfg.AccessKey != "" {
		creds = credentials.NewStaticCredentialsProvider(s.cfg.AccessKey, s.cfg.SecretKey, "")
	}
	opts := s3.Options{
		Region:       region,
		Credentials:  creds,
		UsePathStyle: s.cfg.PathStyle,
		Logger:       logging.Nop{},
	}
	if s.cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(s.cfg.Endpoint)
	}
	cli := s3.New(opts)
	s.clients[region] = cli
	return cli
}

// Stat retrieves metadata about an object without downloading its content.
func (s *sdkStorage) Stat(ctx context.Context, addr model.CloudAddress) (ObjectInfo, error) {
	resp, err := s.client(addr.Region).HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(addr.Bucket),
		Key:    aws.String(addr.Key),
	})
	if err != nil {
		return ObjectInfo{}, sdkError(fmt.Sprintf("head object %s/%s", addr.Bucket, addr.Key), err)
	}

	info := ObjectInfo{
		Key:         addr.Key,
		Size:        aws.ToInt64(resp.ContentLength),
		ETag:        aws.ToString(resp.ETag),
		ContentType: aws.ToString(resp.ContentType),
	}
	if resp.ContentLength == nil {
		info.Size = -1
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return info, nil
}

// Get retrieves an object. The caller is responsible for closing the body.
func (s *sdkStorage) Get(ctx context.Context, addr model.CloudAddress) (io.ReadCloser, ObjectInfo, error) {
	resp, err := s.client(addr.Region).GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(addr.Bucket),
		Key:    aws.String(addr.Key),
	})
	if err != nil {
		return nil, ObjectInfo{}, sdkError(fmt.Sprintf("get object %s/%s", addr.Bucket, addr.Key), err)
	}

	info := ObjectInfo{
		Key:         addr.Key,
		Size:        aws.ToInt64(resp.ContentLength),
		ETag:        aws.ToString(resp.ETag),
		ContentType: aws.ToString(resp.ContentType),
	}
	if resp.ContentLength == nil {
		info.Size = -1
	}
	if resp.LastModified != nil {
		info.LastModified = *resp.LastModified
	}
	return &transferReader{rc: resp.Body}, info, nil
}

func sdkError(op string, err error) error {
	code := ""
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code = apiErr.ErrorCode()
	}
	status := 0
	var statusErr interface{ HTTPStatusCode() int }
	if errors.As(err, &statusErr) {
		status = statusErr.HTTPStatusCode()
	}
	region := ""
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.Response != nil {
		region = respErr.Response.Header.Get(bucketRegionHeader)
	}
	return wrap(classifyResponse(code, status, region), op, err)
}

// transferReader marks body read failures as transfer errors.
type transferReader struct {
	rc io.ReadCloser
}

func (r *transferReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err != nil && err != io.EOF {
		return n, wrap(ErrTransfer, "read", err)
	}
	return n, err
}

func (r *transferReader) Close() error {
	return r.rc.Close()
}
