package artwork

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dhowden/tag"
	flac "github.com/go-flac/go-flac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zhaarey/go-mp4tag"

	"schls/core/codec"
)

func coverServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedMP3(t *testing.T) {
	srv := coverServer(t)
	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	e := NewEmbedder(srv.Client(), nil)
	require.NoError(t, e.Embed(context.Background(), path, srv.URL+"/a.png", codec.MP3))
	// A second run replaces rather than stacks pictures.
	require.NoError(t, e.Embed(context.Background(), path, srv.URL+"/a.png", codec.MP3))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	m, err := tag.ReadFrom(f)
	require.NoError(t, err)
	assert.Equal(t, tag.ID3v2_4, m.Format())

	pic := m.Picture()
	require.NotNil(t, pic)
	assert.Equal(t, "image/png", pic.MIMEType)
	assert.Equal(t, "Cover", pic.Description)
	assert.Equal(t, pngBytes, pic.Data)
}

// minimalFLAC is the stream marker, a single STREAMINFO block and the start
// of one audio frame.
func minimalFLAC() []byte {
	return append(flacHeaderOnly(), 0xFF, 0xF8, 0x69, 0x08, 0x00, 0x00, 0x00)
}

// flacHeaderOnly is what a decoder writes for an empty stream.
func flacHeaderOnly() []byte {
	b := []byte("fLaC")
	b = append(b, 0x80, 0x00, 0x00, 34)
	info := make([]byte, 34)
	info[0], info[1] = 0x10, 0x00 // min block size 4096
	info[2], info[3] = 0x10, 0x00 // max block size 4096
	// 44100 Hz, 2 channels, 16 bits per sample
	info[10], info[11], info[12] = 0x0a, 0xc4, 0x42
	info[13] = 0xf0
	return append(b, info...)
}

func TestEmbedFLAC(t *testing.T) {
	srv := coverServer(t)
	path := filepath.Join(t.TempDir(), "song.flac")
	require.NoError(t, os.WriteFile(path, minimalFLAC(), 0644))

	e := NewEmbedder(srv.Client(), nil)
	require.NoError(t, e.Embed(context.Background(), path, srv.URL+"/a.png", codec.FLAC))
	require.NoError(t, e.Embed(context.Background(), path, srv.URL+"/a.png", codec.FLAC))

	f, err := flac.ParseFile(path)
	require.NoError(t, err)

	pictures := 0
	for _, block := range f.Meta {
		if block.Type == flac.Picture {
			pictures++
			p, err := UnmarshalPictureBlock(block.Data)
			require.NoError(t, err)
			assert.Equal(t, PictureTypeFrontCover, p.Type)
			assert.Equal(t, "image/png", p.MIME)
			assert.Equal(t, pngBytes, p.Data)
		}
	}
	assert.Equal(t, 1, pictures)
	assert.Equal(t, flac.StreamInfo, f.Meta[0].Type)
}

func TestEmbedFLACWithoutFramesFails(t *testing.T) {
	srv := coverServer(t)
	path := filepath.Join(t.TempDir(), "empty.flac")
	require.NoError(t, os.WriteFile(path, flacHeaderOnly(), 0644))

	e := NewEmbedder(srv.Client(), nil)
	var err error
	require.NotPanics(t, func() {
		err = e.Embed(context.Background(), path, srv.URL+"/a.png", codec.FLAC)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAudioFrames)
	assert.Contains(t, err.Error(), "parse flac")
}

func TestCheckFLACFrames(t *testing.T) {
	assert.NoError(t, checkFLACFrames(minimalFLAC()))
	assert.ErrorIs(t, checkFLACFrames(flacHeaderOnly()), ErrNoAudioFrames)
	assert.Error(t, checkFLACFrames([]byte("ID3")))
	assert.Error(t, checkFLACFrames(flacHeaderOnly()[:20]))
}

type recordingOggWriter struct {
	path  string
	block string
}

func (w *recordingOggWriter) WriteOggPicture(_ context.Context, path, block string) error {
	w.path, w.block = path, block
	return nil
}

func TestEmbedOggDelegates(t *testing.T) {
	srv := coverServer(t)
	ogg := &recordingOggWriter{}
	e := NewEmbedder(srv.Client(), ogg)

	require.NoError(t, e.Embed(context.Background(), "/tmp/x.ogg", srv.URL+"/a.png", codec.Opus))
	assert.Equal(t, "/tmp/x.ogg", ogg.path)

	raw, err := base64.StdEncoding.DecodeString(ogg.block)
	require.NoError(t, err)
	p, err := UnmarshalPictureBlock(raw)
	require.NoError(t, err)
	assert.Equal(t, "image/png", p.MIME)
	assert.Equal(t, "Cover (front)", p.Description)
	assert.Equal(t, pngBytes, p.Data)
}

func TestEmbedUnsupportedCodecSkipsFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected fetch of %s", r.URL)
	}))
	defer srv.Close()

	for _, c := range []codec.Codec{codec.WAV, codec.Codec("alac")} {
		err := NewEmbedder(srv.Client(), nil).Embed(context.Background(), "x", srv.URL, c)
		var uc *UnsupportedCodecError
		require.ErrorAs(t, err, &uc)
		assert.Equal(t, string(c), uc.Codec)
	}

	// Ogg without a writer is unsupported too.
	err := NewEmbedder(srv.Client(), nil).Embed(context.Background(), "x", srv.URL, codec.Vorbis)
	var uc *UnsupportedCodecError
	assert.ErrorAs(t, err, &uc)
}

func TestMP4ImageType(t *testing.T) {
	ft, err := mp4ImageType("image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, mp4tag.ImageTypeJPEG, ft)

	ft, err = mp4ImageType("image/png")
	require.NoError(t, err)
	assert.Equal(t, mp4tag.ImageTypePNG, ft)

	_, err = mp4ImageType("image/webp")
	assert.ErrorIs(t, err, ErrUnknownImageFormat)
}
