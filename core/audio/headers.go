package audio

import (
	"net/http"
	"strings"

	"schls/core/soundcloud"
)

type headerField struct {
	name, value string
}

// streamHeaders must accompany every playlist and segment request; the CDN
// rejects requests that don't look like they come from the web player.
var streamHeaders = []headerField{
	{"Accept", "*/*"},
	{"Accept-Language", "en-US,en;q=0.9"},
	{"Cache-Control", "no-cache"},
	{"DNT", "1"},
	{"Origin", "https://soundcloud.com"},
	{"Referer", "https://soundcloud.com/"},
	{"User-Agent", soundcloud.UserAgent},
}

// HeaderBlock renders the headers in the CRLF-separated form ffmpeg's
// -headers option takes. Authorization is included only when oauth is set.
func HeaderBlock(oauth string) string {
	var b strings.Builder
	for _, h := range streamHeaders {
		b.WriteString(h.name + ": " + h.value + "\r\n")
	}
	if oauth != "" {
		b.WriteString("Authorization: " + oauth + "\r\n")
	}
	return b.String()
}

// StreamHeader returns the same headers for Go HTTP requests.
func StreamHeader(oauth string) http.Header {
	h := make(http.Header, len(streamHeaders)+1)
	for _, f := range streamHeaders {
		h.Set(f.name, f.value)
	}
	if oauth != "" {
		h.Set("Authorization", oauth)
	}
	return h
}
