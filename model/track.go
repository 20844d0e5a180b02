package model

// Track is the subset of the SoundCloud resolve response the downloader uses.
// Duration is in milliseconds.
type Track struct {
	ID                 int64  `json:"id"`
	Title              string `json:"title"`
	Duration           int64  `json:"duration"`
	TrackAuthorization string `json:"track_authorization"`
	ArtworkURL         string `json:"artwork_url"`
	PermalinkURL       string `json:"permalink_url"`
	User               User   `json:"user"`
	Media              Media  `json:"media"`
}

// Media wraps the list of stream variants offered for a track.
type Media struct {
	Transcodings []Transcoding `json:"transcodings"`
}

// Transcoding is one candidate stream. URL is an authenticated endpoint that
// returns the playable playlist URL, not the media itself.
type Transcoding struct {
	URL      string `json:"url"`
	Preset   string `json:"preset"`
	Duration int64  `json:"duration"`
	Snipped  bool   `json:"snipped"`
	Quality  string `json:"quality"`
	Format   Format `json:"format"`
}

// Format describes how a transcoding is delivered.
type Format struct {
	Protocol string `json:"protocol"`
	MimeType string `json:"mime_type"`
}

// Protocol is a shortcut for t.Format.Protocol.
func (t Transcoding) Protocol() string {
	return t.Format.Protocol
}
