package audio

import (
	"path/filepath"

	"schls/core/codec"
	"schls/core/utils"
	"schls/model"
)

// Job is one download request.
type Job struct {
	StreamURL  string
	OutputPath string
	Codec      codec.Codec
	Track      *model.Track
	OAuth      string
}

// OutputPath joins dir with a sanitised filename and the codec's extension.
// An empty name falls back to the track title.
func OutputPath(dir, name string, track *model.Track, c codec.Codec) string {
	if name == "" && track != nil {
		name = track.Title
	}
	return filepath.Join(dir, utils.SanitizeFilename(name)+"."+c.Extension())
}
