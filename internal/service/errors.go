package service

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller mistakes. These are never retried; they mean a
// bug upstream of this subsystem.
var (
	// ErrEmptyInput is returned when embedding input is empty or whitespace only
	ErrEmptyInput = errors.New("empty input text")

	// ErrSessionClosed is returned when a message targets a terminated session
	ErrSessionClosed = errors.New("session is closed")

	// ErrSessionEscalated is returned when a message targets a session already
	// handed off to a human agent
	ErrSessionEscalated = errors.New("session is escalated to a human agent")

	// ErrRateLimited signals upstream quota exhaustion. Not retried within the
	// same turn to avoid compounding rate-limit pressure.
	ErrRateLimited = errors.New("upstream rate limit exceeded")
)

// DimensionMismatchError is returned when two vectors of different lengths
// meet in a similarity computation
type DimensionMismatchError struct {
	LenA int
	LenB int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: %d vs %d", e.LenA, e.LenB)
}

// UpstreamError wraps a failed model call. Transient errors (timeouts, 5xx)
// are retried per the backoff policy; permanent ones (4xx, malformed request)
// fail immediately.
type UpstreamError struct {
	Op         string // "chat_completion" or "embeddings"
	StatusCode int    // 0 when the request never got a response
	Transient  bool
	Err        error
}

func (e *UpstreamError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("upstream %s failed (%s, status %d): %v", e.Op, kind, e.StatusCode, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsTransientUpstream reports whether err is an upstream failure worth
// retrying
func IsTransientUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Transient
}
