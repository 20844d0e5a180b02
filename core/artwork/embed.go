package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/bogem/id3v2/v2"
	"github.com/go-flac/flacpicture"
	flac "github.com/go-flac/go-flac"
	"github.com/zhaarey/go-mp4tag"

	"schls/core/codec"
	"schls/logger"
)

// OggPictureWriter stores a base64 picture block in the comment header of an
// Ogg file. Rewriting Ogg pages needs the muxer, so this is delegated.
type OggPictureWriter interface {
	WriteOggPicture(ctx context.Context, path, block string) error
}

// Embedder fetches cover images and writes them into audio files.
type Embedder struct {
	httpClient *http.Client
	ogg        OggPictureWriter
}

// NewEmbedder creates an Embedder. ogg may be nil, in which case Ogg codecs
// are reported as unsupported.
func NewEmbedder(httpClient *http.Client, ogg OggPictureWriter) *Embedder {
	return &Embedder{httpClient: httpClient, ogg: ogg}
}

// Embed fetches imageURL and attaches it as the front cover of path.
func (e *Embedder) Embed(ctx context.Context, path, imageURL string, c codec.Codec) error {
	if !e.supports(c) {
		return &UnsupportedCodecError{Codec: string(c)}
	}

	img, err := Fetch(ctx, e.httpClient, imageURL)
	if err != nil {
		return err
	}

	logger.Debug("embedding cover art",
		logger.String("path", path),
		logger.String("codec", string(c)),
		logger.String("mime", img.MIME),
		logger.Int("bytes", len(img.Data)))

	return e.EmbedImage(ctx, path, img, c)
}

// EmbedImage writes an already fetched image.
func (e *Embedder) EmbedImage(ctx context.Context, path string, img *Image, c codec.Codec) error {
	switch c {
	case codec.Opus, codec.Vorbis:
		if e.ogg == nil {
			return &UnsupportedCodecError{Codec: string(c)}
		}
		return e.ogg.WriteOggPicture(ctx, path, NewFrontCover(img).Base64())
	case codec.MP3:
		return embedMP3(path, img)
	case codec.FLAC:
		return embedFLAC(path, img)
	case codec.AAC:
		return embedMP4(path, img)
	default:
		return &UnsupportedCodecError{Codec: string(c)}
	}
}

func (e *Embedder) supports(c codec.Codec) bool {
	switch c {
	case codec.MP3, codec.FLAC, codec.AAC:
		return true
	case codec.Opus, codec.Vorbis:
		return e.ogg != nil
	}
	return false
}

// embedMP3 saves as ID3v2.4, which allows PNG pictures.
func embedMP3(path string, img *Image) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3 tag %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetVersion(4)
	tag.DeleteFrames(tag.CommonID("Attached picture"))
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingUTF8,
		MimeType:    img.MIME,
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     img.Data,
	})

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3 tag %s: %w", path, err)
	}
	return nil
}

func embedFLAC(path string, img *Image) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read flac %s: %w", path, err)
	}
	f, err := parseFLAC(raw)
	if err != nil {
		return fmt.Errorf("parse flac %s: %w", path, err)
	}

	kept := f.Meta[:0]
	for _, block := range f.Meta {
		if block.Type != flac.Picture {
			kept = append(kept, block)
		}
	}

	pic := &flacpicture.MetadataBlockPicture{
		PictureType: flacpicture.PictureTypeFrontCover,
		MIME:        img.MIME,
		Description: "Cover",
		ImageData:   img.Data,
	}
	block := pic.Marshal()
	f.Meta = append(kept, &block)

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save flac %s: %w", path, err)
	}
	return nil
}

// parseFLAC checks that frame data follows the metadata before handing the
// file to go-flac, which indexes into the frame bytes unconditionally.
func parseFLAC(raw []byte) (f *flac.File, err error) {
	if err := checkFLACFrames(raw); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			f, err = nil, fmt.Errorf("malformed flac: %v", r)
		}
	}()
	return flac.ParseBytes(bytes.NewReader(raw))
}

// checkFLACFrames walks the metadata block headers and requires at least a
// frame sync code after the last one.
func checkFLACFrames(raw []byte) error {
	if len(raw) < 4 || string(raw[:4]) != "fLaC" {
		return errors.New("missing fLaC marker")
	}
	pos := 4
	for {
		if pos+4 > len(raw) {
			return errors.New("truncated metadata block header")
		}
		last := raw[pos]&0x80 != 0
		size := int(raw[pos+1])<<16 | int(raw[pos+2])<<8 | int(raw[pos+3])
		pos += 4 + size
		if pos > len(raw) {
			return errors.New("truncated metadata block")
		}
		if last {
			break
		}
	}
	if len(raw)-pos < 2 {
		return ErrNoAudioFrames
	}
	return nil
}

func embedMP4(path string, img *Image) error {
	format, err := mp4ImageType(img.MIME)
	if err != nil {
		return err
	}

	mp4, err := mp4tag.Open(path)
	if err != nil {
		return fmt.Errorf("open mp4 %s: %w", path, err)
	}
	defer mp4.Close()

	tags := &mp4tag.MP4Tags{
		Pictures: []*mp4tag.MP4Picture{{Format: format, Data: img.Data}},
	}
	if err := mp4.Write(tags, []string{}); err != nil {
		return fmt.Errorf("write mp4 cover %s: %w", path, err)
	}
	return nil
}

func mp4ImageType(mimeType string) (mp4tag.ImageType, error) {
	switch mimeType {
	case "image/jpeg", "image/jpg":
		return mp4tag.ImageTypeJPEG, nil
	case "image/png":
		return mp4tag.ImageTypePNG, nil
	}
	return 0, fmt.Errorf("mp4 cover %s: %w", mimeType, ErrUnknownImageFormat)
}
