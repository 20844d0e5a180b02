package audio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"schls/core/artwork"
	"schls/core/codec"
	"schls/core/soundcloud"
	"schls/core/utils"
	"schls/logger"
)

// defaultProgressDivisor reports out_time_ms values unchanged. The real
// ffmpeg binary writes microseconds under that key; callers driving it pass
// WithProgressDivisor(MicrosecondsPerMillisecond).
const defaultProgressDivisor = 1

// MicrosecondsPerMillisecond converts ffmpeg's out_time_ms to milliseconds.
const MicrosecondsPerMillisecond = 1000

// CommandFunc builds the process for a decoder invocation. It has the
// signature of exec.CommandContext so tests can substitute a fake binary.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// ArtworkEmbedder writes cover art into a finished file.
type ArtworkEmbedder interface {
	Embed(ctx context.Context, path, imageURL string, c codec.Codec) error
}

// FFmpegProcessor downloads HLS streams by driving the ffmpeg binary.
type FFmpegProcessor struct {
	ffmpegPath      string
	progressDivisor int64
	command         CommandFunc
	artwork         ArtworkEmbedder
}

// Option configures an FFmpegProcessor.
type Option func(*FFmpegProcessor)

// WithProgressDivisor sets the unit conversion applied to out_time_ms values.
func WithProgressDivisor(d int64) Option {
	return func(p *FFmpegProcessor) {
		if d > 0 {
			p.progressDivisor = d
		}
	}
}

// WithCommand replaces exec.CommandContext.
func WithCommand(fn CommandFunc) Option {
	return func(p *FFmpegProcessor) {
		p.command = fn
	}
}

// WithArtworkEmbedder replaces the default cover art embedder.
func WithArtworkEmbedder(e ArtworkEmbedder) Option {
	return func(p *FFmpegProcessor) {
		p.artwork = e
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor. An empty path means
// "ffmpeg" looked up on PATH.
func NewFFmpegProcessor(ffmpegPath string, opts ...Option) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	p := &FFmpegProcessor{
		ffmpegPath:      ffmpegPath,
		progressDivisor: defaultProgressDivisor,
		command:         exec.CommandContext,
	}
	p.artwork = artwork.NewEmbedder(&http.Client{Timeout: 30 * time.Second}, p)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FFmpegPath returns the configured binary.
func (p *FFmpegProcessor) FFmpegPath() string {
	return p.ffmpegPath
}

// CheckAvailable runs "ffmpeg -version" and returns the first line of its
// output.
func (p *FFmpegProcessor) CheckAvailable(ctx context.Context) (string, error) {
	cmd := p.command(ctx, p.ffmpegPath, "-version")
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExternalProcessError{Op: "ffmpeg -version", ExitCode: exitErr.ExitCode(), Stderr: strings.TrimSpace(string(exitErr.Stderr)), Err: err}
		}
		return "", fmt.Errorf("%w: %v", ErrFFmpegNotFound, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// BuildArgs returns the ffmpeg arguments for job. The output path is last.
func (p *FFmpegProcessor) BuildArgs(job Job) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y"}

	// The HLS demuxer refuses .ogg segment extensions and plain http
	// segments under its default allow-lists.
	if job.Codec.IsOgg() {
		args = append(args,
			"-protocol_whitelist", "file,http,https,tcp,tls,crypto",
			"-allowed_extensions", "ALL",
		)
	}

	args = append(args,
		"-headers", HeaderBlock(job.OAuth),
		"-i", job.StreamURL,
		"-vn",
	)
	args = append(args, job.Codec.EncoderArgs()...)
	args = append(args, "-progress", "pipe:1", "-nostats", job.OutputPath)
	return args
}

// Download starts job and returns its event sequence. The sequence is
// unbuffered and strictly ordered; it normally ends with a DoneEvent and is
// then closed. Cancelling ctx kills ffmpeg and closes the channel; a
// consumer that stops reading must cancel ctx.
func (p *FFmpegProcessor) Download(ctx context.Context, job Job) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		emit := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		path, err := p.run(ctx, job, emit)
		if err != nil {
			title := ""
			if job.Track != nil {
				title = job.Track.Title
			}
			logger.Error("download failed",
				logger.String("title", title),
				logger.String("codec", string(job.Codec)),
				logger.String("output", job.OutputPath),
				logger.ErrorField(err))
		}
		emit(DoneEvent{Path: path, Err: err})
	}()

	return events
}

func (p *FFmpegProcessor) run(ctx context.Context, job Job, emit func(Event) bool) (string, error) {
	if job.Track == nil {
		return "", &soundcloud.ValidationError{Field: "track", Reason: "missing metadata"}
	}
	if !job.Codec.Valid() {
		return "", &soundcloud.ValidationError{Field: "codec", Value: string(job.Codec), Reason: "unsupported"}
	}

	total := job.Track.Duration

	dir := filepath.Dir(job.OutputPath)
	if err := utils.EnsureDir(dir); err != nil {
		return "", &IOError{Op: "create output directory", Path: dir, Err: err}
	}

	args := p.BuildArgs(job)
	cmd := p.command(ctx, p.ffmpegPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", &ExternalProcessError{Op: "download", ExitCode: -1, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", &ExternalProcessError{Op: "download", ExitCode: -1, Err: err}
	}

	logger.Info("starting ffmpeg",
		logger.String("title", job.Track.Title),
		logger.String("codec", string(job.Codec)),
		logger.String("output", job.OutputPath))

	if err := cmd.Start(); err != nil {
		return "", &ExternalProcessError{Op: "download", ExitCode: -1, Stderr: err.Error(), Err: err}
	}

	var stderrBuf bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		_, err := io.Copy(&stderrBuf, stderr)
		return err
	})

	current := int64(0)
	consumerGone := !emit(stage("Starting download...")) || !emit(progressTotal(total))

	scanner := bufio.NewScanner(stdout)
	for !consumerGone && scanner.Scan() {
		v, ok := parseOutTime(scanner.Text())
		if !ok {
			continue
		}
		current = v / p.progressDivisor

		ev := ProgressEvent{Current: current, Fields: ProgressCurrent}
		if current >= total {
			total = current + 1
			ev.Total = total
			ev.Fields |= ProgressTotal
		}
		consumerGone = !emit(ev)
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("reading ffmpeg progress", logger.ErrorField(err))
	}

	// Wait must not run before the pipes are drained.
	_, _ = io.Copy(io.Discard, stdout)
	if err := g.Wait(); err != nil {
		logger.Warn("reading ffmpeg stderr", logger.String("title", job.Track.Title), logger.ErrorField(err))
	}
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return "", &ExternalProcessError{
			Op:       "download " + job.Track.Title,
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderrBuf.String()),
			Err:      waitErr,
		}
	}

	if job.Codec.SupportsArtwork() {
		if err := p.addArtwork(ctx, job, emit); err != nil {
			return job.OutputPath, err
		}
	}

	final := current
	if job.Track.Duration > final {
		final = job.Track.Duration
	}
	emit(stage("Download completed and saved to " + job.OutputPath))
	emit(progressBoth(final, final+1))
	return job.OutputPath, nil
}

func (p *FFmpegProcessor) addArtwork(ctx context.Context, job Job, emit func(Event) bool) error {
	imageURL := soundcloud.HighResArtworkURL(job.Track.ArtworkURL)
	if imageURL == "" {
		emit(stage("No artwork available, skipping cover art"))
		return nil
	}
	if p.artwork == nil {
		return nil
	}

	emit(stage("Adding cover art..."))
	if err := p.artwork.Embed(ctx, job.OutputPath, imageURL, job.Codec); err != nil {
		return fmt.Errorf("add cover art to %s: %w", job.OutputPath, err)
	}
	return nil
}

// parseOutTime extracts the value of an "out_time_ms=<int>" progress line.
func parseOutTime(line string) (int64, bool) {
	v, ok := strings.CutPrefix(strings.TrimSpace(line), "out_time_ms=")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
