package audio

import (
	"errors"
	"fmt"
)

// ErrFFmpegNotFound is returned by CheckAvailable when the decoder is missing.
var ErrFFmpegNotFound = errors.New("ffmpeg not found; install it and make sure it is on PATH")

// ExternalProcessError reports a decoder run that failed. ExitCode is -1 when
// the process could not be started.
type ExternalProcessError struct {
	Op       string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ExternalProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: ffmpeg exited with code %d", e.Op, e.ExitCode)
	}
	return fmt.Sprintf("%s: ffmpeg exited with code %d: %s", e.Op, e.ExitCode, e.Stderr)
}

func (e *ExternalProcessError) Unwrap() error {
	return e.Err
}

// IOError reports a local filesystem failure.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}
