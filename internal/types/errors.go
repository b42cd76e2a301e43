package types

import (
	"errors"
	"fmt"
)

var (
	ErrToolFailure     = errors.New("analyzer failed")
	ErrMalformedOutput = errors.New("analyzer output has no mouthCues")

	ErrNegativeDuration = errors.New("cue end must be greater than start")
	ErrInvalidShape     = errors.New("invalid mouth shape")

	ErrCacheMiss        = errors.New("cue cache miss")
	ErrCacheUnreachable = errors.New("cue cache unreachable")
	ErrCacheWrite       = errors.New("cue cache write failed")

	ErrEncodeFailed = errors.New("encoder failed")
)

// RenderError is returned by a failed render and names the stage that failed.
type RenderError struct {
	Stage Stage
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
