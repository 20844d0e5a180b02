package soundcloud

import (
	"regexp"
	"strings"
)

var trackURLPattern = regexp.MustCompile(`^https://soundcloud\.com/[^/]+/[^/]+$`)

// ValidateTrackURL accepts https://soundcloud.com/<user>/<track> only.
func ValidateTrackURL(trackURL string) error {
	if !trackURLPattern.MatchString(trackURL) {
		return &ValidationError{
			Field:  "track url",
			Value:  trackURL,
			Reason: "expected https://soundcloud.com/<user>/<track>",
		}
	}
	return nil
}

const (
	artworkDefaultSize = "-large."
	artworkFullSize    = "-t500x500."
)

// HighResArtworkURL swaps the default 100x100 size token in an artwork URL
// for the 500x500 variant. Empty input yields empty output.
func HighResArtworkURL(artworkURL string) string {
	return strings.Replace(artworkURL, artworkDefaultSize, artworkFullSize, 1)
}
