package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "tracks/Night Drive.mp3", ObjectKey("output/Night Drive.mp3"))
	assert.Equal(t, "tracks/a.flac", ObjectKey("/abs/dir/a.flac"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", ContentType("a.mp3"))
	assert.Equal(t, "audio/ogg", ContentType("a.OGG"))
	assert.Equal(t, "audio/mp4", ContentType("a.m4a"))
	assert.Equal(t, "application/octet-stream", ContentType("a.bin"))
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", FormatSize(512))
	assert.Equal(t, "1.0 KB", FormatSize(1024))
	assert.Equal(t, "1.5 MB", FormatSize(1536*1024))
	assert.Equal(t, "2.0 GB", FormatSize(2<<30))
}
