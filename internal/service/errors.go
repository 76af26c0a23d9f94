package service

import (
	"context"
	"errors"
	"fmt"

	"datalocator/internal/address"
	"datalocator/internal/model"
	"datalocator/internal/storage"
)

var (
	// ErrResolution: the row's location metadata is malformed or unusable. Not retryable.
	ErrResolution = address.ErrResolution
	// ErrMissingAccessURL: the row has no access URL. Wraps ErrResolution.
	ErrMissingAccessURL = address.ErrMissingAccessURL
	// ErrNotFound: nothing exists at the resolved address.
	ErrNotFound = storage.ErrNotFound
	// ErrAccessDenied: the resolved bucket refuses the request, usually a
	// bucket or region mismatch.
	ErrAccessDenied = storage.ErrAccessDenied
	// ErrTransfer: the body transfer failed; safe to retry with backoff.
	ErrTransfer = storage.ErrTransfer
	// ErrTimeout marks failures caused by the per-operation deadline. It is
	// always paired with ErrTransfer or ErrResolution.
	ErrTimeout = errors.New("operation timed out")
)

// OpError describes a failed locator operation.
type OpError struct {
	Op     string
	Mode   model.TransferMode
	Target string
	Err    error
}

func (e *OpError) Error() string {
	if e.Mode == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Op, e.Mode, e.Target, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

// Retryable reports whether err is a transient transfer failure.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransfer)
}

// Outcome names the error class of err for logs and metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, ErrTransfer):
		return "transfer_error"
	case errors.Is(err, ErrResolution):
		return "resolution_error"
	default:
		return "error"
	}
}

// transferFailure classifies an error raised while a body was being opened
// or streamed.
func transferFailure(ctx context.Context, err error) error {
	if isTimeout(ctx, err) {
		return fmt.Errorf("%w: %w: %v", ErrTimeout, ErrTransfer, err)
	}
	if errors.Is(err, storage.ErrUnsupportedProvider) || errors.Is(err, storage.ErrUnsupportedScheme) {
		return fmt.Errorf("%w: %w", ErrResolution, err)
	}
	if errors.Is(err, context.Canceled) && !errors.Is(err, ErrTransfer) {
		return fmt.Errorf("%w: %w", ErrTransfer, err)
	}
	return err
}

// probeFailure classifies an error raised by a metadata request. No body is
// moved during a probe, so transport failures count as failing to resolve
// the remote object rather than as transfer errors.
func probeFailure(ctx context.Context, err error) error {
	switch {
	case isTimeout(ctx, err):
		return fmt.Errorf("%w: %w: %v", ErrTimeout, ErrResolution, err)
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		return err
	case errors.Is(err, storage.ErrUnsupportedProvider), errors.Is(err, storage.ErrUnsupportedScheme):
		return fmt.Errorf("%w: %w", ErrResolution, err)
	default:
		return fmt.Errorf("%w: remote object unreachable: %v", ErrResolution, err)
	}
}

func isTimeout(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
}
