package audio

import "context"

// Downloader runs download jobs and reports their progress.
type Downloader interface {
	Download(ctx context.Context, job Job) <-chan Event
}
