package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ffprobePath guesses ffprobe's location from the ffmpeg path.
func (p *FFmpegProcessor) ffprobePath() string {
	dir, base := filepath.Split(p.ffmpegPath)
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

type ffprobeOutput struct {
	Format struct {
		Duration   string `json:"duration"`
		FormatName string `json:"format_name"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// FileInfo is what ffprobe reports about a finished file.
type FileInfo struct {
	Duration   time.Duration
	Format     string
	Codec      string
	SampleRate int
	Channels   int
	BitRate    int64
}

// ProbeFile runs ffprobe against a local audio file.
func (p *FFmpegProcessor) ProbeFile(ctx context.Context, path string) (*FileInfo, error) {
	args := []string{
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "format=duration,format_name,bit_rate:stream=codec_name,sample_rate,channels",
		"-of", "json",
		path,
	}

	cmd := p.command(ctx, p.ffprobePath(), args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, &ExternalProcessError{Op: "ffprobe " + path, ExitCode: cmd.ProcessState.ExitCode(), Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return nil, fmt.Errorf("decode ffprobe output for %s: %w", path, err)
	}

	info := &FileInfo{Format: probe.Format.FormatName}
	if probe.Format.Duration != "" {
		secs, err := strconv.ParseFloat(probe.Format.Duration, 64)
		if err != nil {
			return nil, fmt.Errorf("parse duration %q for %s: %w", probe.Format.Duration, path, err)
		}
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	if probe.Format.BitRate != "" {
		info.BitRate, _ = strconv.ParseInt(probe.Format.BitRate, 10, 64)
	}
	if len(probe.Streams) > 0 {
		s := probe.Streams[0]
		info.Codec = s.CodecName
		info.Channels = s.Channels
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
	}
	return info, nil
}
