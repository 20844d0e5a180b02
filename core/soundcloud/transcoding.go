package soundcloud

import (
	"strings"

	"schls/model"
)

const (
	qualityHQ      = "hq"
	excludedPreset = "abr_sq"
)

// eligible keeps plain HLS transcodings, dropping encrypted variants and the
// adaptive abr_sq preset.
func eligible(t model.Transcoding) bool {
	protocol := t.Protocol()
	return strings.Contains(protocol, "hls") &&
		!strings.Contains(protocol, "encrypted") &&
		t.Preset != excludedPreset
}

// SelectTranscoding picks the stream to download. The first match wins, in
// this order:
//
//  1. hq with a preset containing codec
//  2. any quality with a preset containing codec
//  3. any hq
//  4. the first eligible entry
//
// Steps 1 and 2 are skipped when codec is empty. A codec match outranks
// quality: step 2 runs before step 3, so an sq stream of the requested codec
// beats an hq stream of another codec. An hq-first order (hq+codec, any hq,
// then codec) would pick the other codec there instead. List order from the
// API is preserved; nothing is sorted.
func SelectTranscoding(track *model.Track, codec string) (model.Transcoding, error) {
	if track == nil {
		return model.Transcoding{}, &ValidationError{Field: "track", Reason: "missing metadata"}
	}

	var candidates []model.Transcoding
	for _, t := range track.Media.Transcodings {
		if eligible(t) {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return model.Transcoding{}, &NotFoundError{Title: track.Title, Codec: codec}
	}

	matchesCodec := func(t model.Transcoding) bool {
		return strings.Contains(t.Preset, codec)
	}
	isHQ := func(t model.Transcoding) bool {
		return t.Quality == qualityHQ
	}

	if codec != "" {
		if t, ok := first(candidates, func(t model.Transcoding) bool { return isHQ(t) && matchesCodec(t) }); ok {
			return t, nil
		}
		if t, ok := first(candidates, matchesCodec); ok {
			return t, nil
		}
	}
	if t, ok := first(candidates, isHQ); ok {
		return t, nil
	}
	// Nothing distinguishes quality tiers here; any stream beats none.
	return candidates[0], nil
}

func first(ts []model.Transcoding, pred func(model.Transcoding) bool) (model.Transcoding, bool) {
	for _, t := range ts {
		if pred(t) {
			return t, true
		}
	}
	return model.Transcoding{}, false
}
