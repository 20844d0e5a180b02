// Package codec holds the static per-codec tables used when encoding and tagging.
package codec

import (
	"fmt"
	"strings"
)

// Codec identifies an output audio codec.
type Codec string

const (
	MP3    Codec = "mp3"
	Opus   Codec = "opus"
	Vorbis Codec = "vorbis"
	AAC    Codec = "aac"
	FLAC   Codec = "flac"
	WAV    Codec = "wav"
)

// all is the display order used by the CLI and TUI.
var all = []Codec{MP3, Opus, Vorbis, AAC, FLAC, WAV}

var extensions = map[Codec]string{
	MP3:    "mp3",
	Opus:   "ogg",
	Vorbis: "ogg",
	AAC:    "m4a",
	FLAC:   "flac",
	WAV:    "wav",
}

// Every codec is transcoded explicitly; stream copy is never used.
var encoderArgs = map[Codec][]string{
	MP3:    {"-c:a", "libmp3lame", "-b:a", "192k"},
	Opus:   {"-c:a", "libopus", "-b:a", "96k"},
	Vorbis: {"-c:a", "libvorbis", "-qscale:a", "3"},
	AAC:    {"-c:a", "aac", "-b:a", "192k"},
	FLAC:   {"-c:a", "flac", "-compression_level", "8"},
	WAV:    {"-c:a", "pcm_s16le"},
}

// All returns the supported codecs in display order.
func All() []Codec {
	out := make([]Codec, len(all))
	copy(out, all)
	return out
}

// Names returns the supported codec names in display order.
func Names() []string {
	names := make([]string, len(all))
	for i, c := range all {
		names[i] = string(c)
	}
	return names
}

// Parse validates a codec name.
func Parse(s string) (Codec, error) {
	c := Codec(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := extensions[c]; !ok {
		return "", fmt.Errorf("unsupported codec %q (expected one of %s)", s, strings.Join(Names(), ", "))
	}
	return c, nil
}

// Valid reports whether c is in the codec table.
func (c Codec) Valid() bool {
	_, ok := extensions[c]
	return ok
}

// Extension returns the output file extension without the dot.
func (c Codec) Extension() string {
	return extensions[c]
}

// EncoderArgs returns a copy of the ffmpeg encoder arguments for c.
func (c Codec) EncoderArgs() []string {
	args := encoderArgs[c]
	out := make([]string, len(args))
	copy(out, args)
	return out
}

// SupportsArtwork is false for containers that cannot carry embedded pictures.
func (c Codec) SupportsArtwork() bool {
	return c.Valid() && c != WAV
}

// IsOgg reports whether c is muxed into an Ogg container.
func (c Codec) IsOgg() bool {
	return c == Opus || c == Vorbis
}

func (c Codec) String() string {
	return string(c)
}
