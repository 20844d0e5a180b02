package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"schls/core/audio"
	"schls/core/codec"
	"schls/core/downloader"
	"schls/logger"
)

var (
	downloadURL      string
	downloadCodec    string
	downloadFilename string
	downloadOutput   string
	downloadUpload   bool
)

var downloadCmd = &cobra.Command{
	Use:   "download [url]",
	Short: "Download one track without the interactive screen",
	Args:  cobra.MaximumNArgs(1),
	Example: `  schls download https://soundcloud.com/artist/track
  schls download --url https://soundcloud.com/artist/track --codec flac --filename "my track"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			downloadURL = args[0]
		}
		if downloadURL == "" {
			return fmt.Errorf("a track URL is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, appOptions{console: true, history: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.checkFFmpeg(ctx); err != nil {
			return err
		}
		if downloadUpload && a.uploader == nil {
			logger.Warn("--upload ignored: object storage is not configured")
		}

		_, prepared, events, err := a.svc.Run(ctx, downloader.Request{
			URL:       downloadURL,
			Codec:     downloadCodec,
			Filename:  downloadFilename,
			OutputDir: downloadOutput,
			Upload:    downloadUpload,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "%s -> %s (%s)\n", prepared.Track.Title, prepared.Job.OutputPath, prepared.Transcoding.Preset)

		bar := progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Downloading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)

		var done *audio.DoneEvent
		for ev := range events {
			switch ev := ev.(type) {
			case audio.StageEvent:
				bar.Describe(ev.Message)
			case audio.ProgressEvent:
				if ev.HasTotal() {
					bar.ChangeMax64(ev.Total)
				}
				if ev.HasCurrent() {
					_ = bar.Set64(ev.Current)
				}
			case audio.DoneEvent:
				done = &ev
			}
		}
		_ = bar.Finish()

		if done == nil {
			return fmt.Errorf("download cancelled")
		}
		if done.Err != nil {
			if done.Path != "" {
				fmt.Fprintf(os.Stderr, "file kept at %s\n", done.Path)
			}
			return done.Err
		}
		fmt.Println(done.Path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().StringVarP(&downloadURL, "url", "u", "", "track URL, https://soundcloud.com/<artist>/<track>")
	downloadCmd.Flags().StringVarP(&downloadCodec, "codec", "c", "", "output codec: "+strings.Join(codec.Names(), ", ")+" (default from config)")
	downloadCmd.Flags().StringVarP(&downloadFilename, "filename", "f", "", "output name without extension (default: track title)")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "output directory (default from config)")
	downloadCmd.Flags().BoolVar(&downloadUpload, "upload", false, "upload the finished file to object storage")
}
