package artwork

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Picture types from the ID3v2 APIC list, shared by FLAC and Vorbis comments.
const PictureTypeFrontCover uint32 = 3

// PictureBlock is the METADATA_BLOCK_PICTURE structure carried in Ogg
// comments. All integers are big-endian uint32.
type PictureBlock struct {
	Type        uint32
	MIME        string
	Description string
	Width       uint32
	Height      uint32
	Depth       uint32
	Colors      uint32
	Data        []byte
}

// NewFrontCover builds a front-cover block with unknown dimensions.
func NewFrontCover(img *Image) PictureBlock {
	return PictureBlock{
		Type:        PictureTypeFrontCover,
		MIME:        img.MIME,
		Description: "Cover (front)",
		Data:        img.Data,
	}
}

// Marshal encodes the block in its binary layout.
func (p PictureBlock) Marshal() []byte {
	var buf bytes.Buffer
	put := func(v uint32) {
		_ = binary.Write(&buf, binary.BigEndian, v)
	}

	put(p.Type)
	put(uint32(len(p.MIME)))
	buf.WriteString(p.MIME)
	put(uint32(len(p.Description)))
	buf.WriteString(p.Description)
	put(p.Width)
	put(p.Height)
	put(p.Depth)
	put(p.Colors)
	put(uint32(len(p.Data)))
	buf.Write(p.Data)
	return buf.Bytes()
}

// Base64 returns the value stored in the METADATA_BLOCK_PICTURE comment.
func (p PictureBlock) Base64() string {
	return base64.StdEncoding.EncodeToString(p.Marshal())
}

var errShortPicture = errors.New("picture block truncated")

// UnmarshalPictureBlock decodes a binary picture block.
func UnmarshalPictureBlock(b []byte) (PictureBlock, error) {
	r := bytes.NewReader(b)
	var p PictureBlock

	u32 := func() (uint32, error) {
		var v uint32
		if err := binary.Read(r, binary.BigEndian, &v); err != nil {
			return 0, errShortPicture
		}
		return v, nil
	}
	blob := func() ([]byte, error) {
		n, err := u32()
		if err != nil {
			return nil, err
		}
		if int64(n) > int64(r.Len()) {
			return nil, errShortPicture
		}
		out := make([]byte, n)
		if _, err := io.ReadFull(r, out); err != nil {
			return nil, errShortPicture
		}
		return out, nil
	}

	var err error
	if p.Type, err = u32(); err != nil {
		return p, err
	}
	mimeBytes, err := blob()
	if err != nil {
		return p, err
	}
	p.MIME = string(mimeBytes)
	desc, err := blob()
	if err != nil {
		return p, err
	}
	p.Description = string(desc)
	for _, f := range []*uint32{&p.Width, &p.Height, &p.Depth, &p.Colors} {
		if *f, err = u32(); err != nil {
			return p, err
		}
	}
	if p.Data, err = blob(); err != nil {
		return p, err
	}
	if r.Len() != 0 {
		return p, fmt.Errorf("picture block has %d trailing bytes", r.Len())
	}
	return p, nil
}
