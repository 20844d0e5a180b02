package artwork

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// maxImageSize caps artwork downloads; 500x500 covers are well under 1 MiB.
const maxImageSize = 20 << 20

// Image is a fetched cover with its detected MIME type.
type Image struct {
	MIME string
	Data []byte
}

// Fetch downloads imageURL once and works out its MIME type.
func Fetch(ctx context.Context, client *http.Client, imageURL string) (*Image, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: imageURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, &FetchError{URL: imageURL, Err: err}
	}

	mt, err := DetectMIME(resp.Header.Get("Content-Type"), data)
	if err != nil {
		return nil, fmt.Errorf("artwork %s: %w", imageURL, err)
	}
	return &Image{MIME: mt, Data: data}, nil
}

// DetectMIME prefers the Content-Type header and falls back to sniffing the
// bytes when the header is absent or not an image type.
func DetectMIME(contentType string, data []byte) (string, error) {
	if contentType != "" {
		if mt, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mt, "image/") {
			return mt, nil
		}
	}

	if len(data) > 0 {
		mt, _, _ := mime.ParseMediaType(mimetype.Detect(data).String())
		if strings.HasPrefix(mt, "image/") {
			return mt, nil
		}
	}
	return "", ErrUnknownImageFormat
}
