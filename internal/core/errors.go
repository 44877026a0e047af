package core

import (
	"context"
	"errors"
	"fmt"
)

// Precondition errors. A job failing on one of these transitions straight
// to FAILED; waiting will not make the condition true.
var (
	ErrRepositoryNotFound = errors.New("repository not found")
	ErrNoCredential       = errors.New("no source-host access token found")
	ErrQuotaExceeded      = errors.New("review limit reached for this repository, upgrade to PRO for unlimited reviews")
	ErrPullRequestGone    = errors.New("pull request not found on source host")
	ErrUnauthorized       = errors.New("source host rejected the access token")
)

// PermanentError marks an error as non-retryable. The step runner fails the
// whole job immediately instead of scheduling a retry.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the orchestrator treats it as fatal.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Permanentf is Permanent with fmt.Errorf formatting.
func Permanentf(format string, args ...any) error {
	return &PermanentError{Err: fmt.Errorf(format, args...)}
}

// IsPermanent reports whether err (or anything it wraps) was marked
// permanent, or is one of the known precondition sentinels.
func IsPermanent(err error) bool {
	var pe *PermanentError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, ErrRepositoryNotFound) ||
		errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrPullRequestGone) ||
		errors.Is(err, ErrUnauthorized)
}

// IsTransient reports whether a failed step should be retried. Anything
// not marked permanent is treated as transient: timeouts, rate limits,
// 5xx responses and network trouble all fall through here, and the step
// runner bounds the attempt count either way.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !IsPermanent(err)
}
