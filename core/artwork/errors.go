package artwork

import (
	"errors"
	"fmt"
)

// ErrUnknownImageFormat means neither the Content-Type header nor content
// sniffing produced an image MIME type.
var ErrUnknownImageFormat = errors.New("unknown image format")

// ErrNoAudioFrames means a FLAC file ends after its metadata blocks.
var ErrNoAudioFrames = errors.New("no audio frames after metadata")

// UnsupportedCodecError is returned for codecs whose container has no
// embedding rule.
type UnsupportedCodecError struct {
	Codec string
}

func (e *UnsupportedCodecError) Error() string {
	return fmt.Sprintf("cover art not supported for codec %q", e.Codec)
}

// FetchError reports a failed artwork download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch artwork %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch artwork %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
