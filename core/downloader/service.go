// Package downloader ties the resolve, select and download steps together
// and records the outcome.
package downloader

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schls/core/audio"
	"schls/core/codec"
	"schls/core/soundcloud"
	"schls/logger"
	"schls/model"
	"schls/repository"
)

// Uploader copies a finished file somewhere else.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (string, error)
}

// Request describes one track to download.
type Request struct {
	URL       string `json:"url"`
	Codec     string `json:"codec"`
	Filename  string `json:"filename"`
	OutputDir string `json:"output_dir,omitempty"`
	Upload    bool   `json:"upload"`
}

// Prepared is a request that has been resolved to a concrete job.
type Prepared struct {
	Request     Request
	Track       *model.Track
	Transcoding model.Transcoding
	Playlist    *audio.PlaylistInfo
	Job         audio.Job
}

// Service runs downloads end to end.
type Service struct {
	client       *soundcloud.Client
	processor    audio.Downloader
	history      repository.HistoryRepository
	uploader     Uploader
	outputDir    string
	defaultCodec codec.Codec
}

// Options holds the optional collaborators of a Service.
type Options struct {
	History      repository.HistoryRepository
	Uploader     Uploader
	OutputDir    string
	DefaultCodec codec.Codec
}

// NewService creates a Service. History and Uploader may be nil.
func NewService(client *soundcloud.Client, processor audio.Downloader, opts Options) *Service {
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}
	if !opts.DefaultCodec.Valid() {
		opts.DefaultCodec = codec.MP3
	}
	return &Service{
		client:       client,
		processor:    processor,
		history:      opts.History,
		uploader:     opts.Uploader,
		outputDir:    opts.OutputDir,
		defaultCodec: opts.DefaultCodec,
	}
}

// Client returns the API client the service resolves with.
func (s *Service) Client() *soundcloud.Client {
	return s.client
}

// Prepare resolves the track, picks a transcoding and fetches its stream URL.
func (s *Service) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	c := s.defaultCodec
	if req.Codec != "" {
		parsed, err := codec.Parse(req.Codec)
		if err != nil {
			return nil, &soundcloud.ValidationError{Field: "codec", Value: req.Codec, Reason: "unsupported"}
		}
		c = parsed
	}
	req.Codec = string(c)

	track, err := s.client.Resolve(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	tc, err := soundcloud.SelectTranscoding(track, string(c))
	if err != nil {
		return nil, err
	}
	logger.Info("transcoding selected",
		logger.String("title", track.Title),
		logger.String("preset", tc.Preset),
		logger.String("quality", tc.Quality),
		logger.String("protocol", tc.Protocol()))

	streamURL, err := s.client.StreamURL(ctx, tc, track.TrackAuthorization)
	if err != nil {
		return nil, err
	}

	// ffmpeg is authoritative; a failed probe only warns.
	playlist, err := audio.ProbePlaylist(ctx, s.client.HTTPClient(), streamURL, s.client.OAuth())
	if err != nil {
		logger.Warn("playlist probe failed", logger.String("title", track.Title), logger.ErrorField(err))
	}

	dir := req.OutputDir
	if dir == "" {
		dir = s.outputDir
	}

	return &Prepared{
		Request:     req,
		Track:       track,
		Transcoding: tc,
		Playlist:    playlist,
		Job: audio.Job{
			StreamURL:  streamURL,
			OutputPath: audio.OutputPath(dir, req.Filename, track, c),
			Codec:      c,
			Track:      track,
			OAuth:      s.client.OAuth(),
		},
	}, nil
}

// Start runs a prepared job. The returned sequence has the same shape as
// audio.Downloader's; upload stages are inserted before the DoneEvent.
func (s *Service) Start(ctx context.Context, p *Prepared) (string, <-chan audio.Event) {
	id := uuid.NewString()
	s.record(&model.DownloadRecord{
		ID:         id,
		URL:        p.Request.URL,
		Title:      p.Track.Title,
		Codec:      string(p.Job.Codec),
		OutputPath: p.Job.OutputPath,
		Status:     model.DownloadStatusRunning,
	})

	in := s.processor.Download(ctx, p.Job)
	out := make(chan audio.Event)

	go func() {
		defer close(out)

		forward := func(ev audio.Event) bool {
			select {
			case out <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var done *audio.DoneEvent
		for ev := range in {
			if d, ok := ev.(audio.DoneEvent); ok {
				done = &d
				continue
			}
			forward(ev)
		}

		if done == nil {
			s.finish(id, model.DownloadStatusCancelled, "", "cancelled")
			return
		}

		if done.Err == nil && p.Request.Upload && s.uploader != nil {
			forward(audio.StageEvent{Message: "Uploading to object storage..."})
			key, err := s.uploader.Upload(ctx, done.Path)
			if err != nil {
				logger.Warn("upload failed", logger.String("path", done.Path), logger.ErrorField(err))
				forward(audio.StageEvent{Message: "Upload failed: " + err.Error()})
			} else {
				forward(audio.StageEvent{Message: "Uploaded as " + key})
			}
		}

		if done.Err != nil {
			s.finish(id, model.DownloadStatusFailed, done.Path, done.Err.Error())
		} else {
			s.finish(id, model.DownloadStatusCompleted, done.Path, "")
		}
		forward(*done)
	}()

	return id, out
}

// Run prepares and starts in one call.
func (s *Service) Run(ctx context.Context, req Request) (string, *Prepared, <-chan audio.Event, error) {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return "", nil, nil, err
	}
	id, events := s.Start(ctx, p)
	return id, p, events, nil
}

func (s *Service) record(rec *model.DownloadRecord) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.Create(ctx, rec); err != nil {
		logger.Warn("history insert failed", logger.String("id", rec.ID), logger.ErrorField(err))
	}
}

// finish uses its own context so that cancelled jobs are still recorded.
func (s *Service) finish(id, status, path, errMsg string) {
	if s.history == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.history.UpdateStatus(ctx, id, status, path, errMsg); err != nil {
		logger.Warn("history update failed",
			logger.String("id", id),
			logger.String("status", status),
			logger.ErrorField(fmt.Errorf("update %s: %w", id, err)))
	}
}
