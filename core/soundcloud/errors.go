package soundcloud

import (
	"errors"
	"fmt"
)

// ErrNoTranscoding is matched by every NotFoundError.
var ErrNoTranscoding = errors.New("no eligible HLS transcoding")

// ErrSuperseded is returned by Latest.Do when a newer request replaced this one.
var ErrSuperseded = errors.New("request superseded by a newer one")

// ValidationError reports malformed input or a response missing required fields.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// UpstreamError reports a failed or malformed SoundCloud API exchange.
// StatusCode is zero when the request never produced a response.
type UpstreamError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("soundcloud %s %s", e.Op, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NotFoundError means no transcoding survived the eligibility filter.
type NotFoundError struct {
	Title string
	Codec string
}

func (e *NotFoundError) Error() string {
	if e.Codec == "" {
		return fmt.Sprintf("%s for %q", ErrNoTranscoding, e.Title)
	}
	return fmt.Sprintf("%s for %q (codec %s)", ErrNoTranscoding, e.Title, e.Codec)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNoTranscoding
}
