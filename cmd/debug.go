package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"schls/core/audio"
	"schls/core/codec"
	"schls/core/soundcloud"
	"schls/model"
)

var debugCodec string

type debugReport struct {
	Track       *model.Track        `json:"track"`
	Selected    *model.Transcoding  `json:"selected,omitempty"`
	SelectError string              `json:"select_error,omitempty"`
	StreamURL   string              `json:"stream_url,omitempty"`
	StreamError string              `json:"stream_error,omitempty"`
	Playlist    *audio.PlaylistInfo `json:"playlist,omitempty"`
	ProbeError  string              `json:"probe_error,omitempty"`
	FFmpegArgs  []string            `json:"ffmpeg_args,omitempty"`
}

var debugCmd = &cobra.Command{
	Use:   "debug <url>",
	Short: "Print every step of resolving a track as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{console: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if debugCodec == "" {
			debugCodec = a.cfg.Codec
		}
		c, err := codec.Parse(debugCodec)
		if err != nil {
			return err
		}

		track, err := a.client.Resolve(ctx, args[0])
		if err != nil {
			return err
		}
		report := debugReport{Track: track}

		tc, err := soundcloud.SelectTranscoding(track, string(c))
		if err != nil {
			report.SelectError = err.Error()
			return printJSON(report)
		}
		report.Selected = &tc

		streamURL, err := a.client.StreamURL(ctx, tc, track.TrackAuthorization)
		if err != nil {
			report.StreamError = err.Error()
			return printJSON(report)
		}
		report.StreamURL = streamURL

		report.Playlist, err = audio.ProbePlaylist(ctx, a.client.HTTPClient(), streamURL, a.client.OAuth())
		if err != nil {
			report.ProbeError = err.Error()
		}

		report.FFmpegArgs = a.processor.BuildArgs(audio.Job{
			StreamURL:  streamURL,
			OutputPath: audio.OutputPath(a.cfg.OutputDir, "", track, c),
			Codec:      c,
			Track:      track,
			OAuth:      a.client.OAuth(),
		})
		return printJSON(report)
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.Flags().StringVarP(&debugCodec, "codec", "c", "", "codec used for selection (default from config)")
}
