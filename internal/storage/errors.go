package storage

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means the bucket or key does not exist at the address.
	ErrNotFound = errors.New("object not found")
	// ErrAccessDenied means the caller may not read the address, typically
	// because the bucket lives in another region or account.
	ErrAccessDenied = errors.New("access denied")
	// ErrTransfer is a network or server failure; the caller may retry.
	ErrTransfer = errors.New("transfer failed")
	// ErrUnsupportedProvider means no backend is registered for a provider.
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
	// ErrUnsupportedScheme means an access URL cannot be fetched directly.
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
)

func unsupportedProvider(name string) error {
	return fmt.Errorf("%w: %q", ErrUnsupportedProvider, name)
}

// error codes returned by S3-compatible services, grouped by outcome.
var (
	notFoundCodes = map[string]bool{
		"NoSuchKey":    true,
		"NotFound":     true,
		"NoSuchBucket": true,
		"NoSuchObject": true,
	}
	deniedCodes = map[string]bool{
		"AccessDenied":                 true,
		"AllAccessDisabled":            true,
		"Forbidden":                    true,
		"PermanentRedirect":            true,
		"AuthorizationHeaderMalformed": true,
		"InvalidAccessKeyId":           true,
		"SignatureDoesNotMatch":        true,
		"InvalidBucketName":            true,
	}
)

// classify maps a service error code and HTTP status to one of the sentinel
// errors. The code wins when both are known.
func classify(code string, status int) error {
	switch {
	case notFoundCodes[code]:
		return ErrNotFound
	case deniedCodes[code]:
		return ErrAccessDenied
	}
	return classifyStatus(status)
}

// bucketRegionHeader names the region a bucket actually lives in. S3 sends
// it with a bare 400 when a request was signed for another region; HEAD
// responses carry no error body, so the header is the only signal.
const bucketRegionHeader = "x-amz-bucket-region"

// classifyResponse is classify for S3 responses that may report the
// bucket's real region. A 400 naming one is a region mismatch.
func classifyResponse(code string, status int, bucketRegion string) error {
	if status == http.StatusBadRequest && bucketRegion != "" {
		return ErrAccessDenied
	}
	return classify(code, status)
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return ErrNotFound
	case http.StatusMovedPermanently, http.StatusUnauthorized, http.StatusForbidden:
		return ErrAccessDenied
	}
	return ErrTransfer
}

// wrap attaches kind to err unless err already carries one of the sentinels.
func wrap(kind error, op string, err error) error {
	if IsClassified(err) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// IsClassified reports whether err already wraps one of the outcome sentinels.
func IsClassified(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrTransfer) ||
		errors.Is(err, ErrUnsupportedProvider) ||
		errors.Is(err, ErrUnsupportedScheme)
}
