package audio

import (
	"context"
	"fmt"
	"net/http"

	"github.com/grafov/m3u8"

	"schls/core/soundcloud"
)

// PlaylistInfo summarises an HLS playlist.
type PlaylistInfo struct {
	Master         bool    `json:"master"`
	Variants       int     `json:"variants,omitempty"`
	Segments       int     `json:"segments"`
	TargetDuration float64 `json:"target_duration"`
	Duration       float64 `json:"duration_seconds"`
}

// ProbePlaylist fetches an .m3u8 with the stream headers and checks that
// ffmpeg will be able to read it: no encrypted segments, and at least one
// variant if it is a master playlist.
func ProbePlaylist(ctx context.Context, client *http.Client, m3u8URL, oauth string) (*PlaylistInfo, error) {
	if client == nil {
		client = http.DefaultClient
	}
	upstream := func(status int, err error) error {
		return &soundcloud.UpstreamError{Op: "probe playlist", URL: m3u8URL, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m3u8URL, nil)
	if err != nil {
		return nil, upstream(0, err)
	}
	req.Header = StreamHeader(oauth)

	resp, err := client.Do(req)
	if err != nil {
		return nil, upstream(0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstream(resp.StatusCode, nil)
	}

	playlist, listType, err := m3u8.DecodeFrom(resp.Body, true)
	if err != nil {
		return nil, upstream(resp.StatusCode, fmt.Errorf("decode playlist: %w", err))
	}

	switch listType {
	case m3u8.MASTER:
		master := playlist.(*m3u8.MasterPlaylist)
		if len(master.Variants) == 0 {
			return nil, upstream(resp.StatusCode, fmt.Errorf("master playlist has no variants"))
		}
		return &PlaylistInfo{Master: true, Variants: len(master.Variants)}, nil

	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		if encrypted(media.Key) {
			return nil, upstream(resp.StatusCode, fmt.Errorf("playlist is encrypted (%s)", media.Key.Method))
		}

		info := &PlaylistInfo{TargetDuration: media.TargetDuration}
		for _, seg := range media.Segments {
			if seg == nil {
				continue
			}
			if encrypted(seg.Key) {
				return nil, upstream(resp.StatusCode, fmt.Errorf("segment %s is encrypted (%s)", seg.URI, seg.Key.Method))
			}
			info.Segments++
			info.Duration += seg.Duration
		}
		return info, nil
	}

	return nil, upstream(resp.StatusCode, fmt.Errorf("unrecognised playlist type"))
}

func encrypted(key *m3u8.Key) bool {
	return key != nil && key.Method != "" && key.Method != "NONE"
}
