package cmd

import (
	"fmt"
	"os"

	"github.com/dhowden/tag"
	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"schls/core/utils"
	"schls/logger"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Show the tags, cover art and stream info of a downloaded file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		a, err := newApp(cmd.Context(), appOptions{console: true, offline: true})
		if err != nil {
			return err
		}
		defer a.Close()

		size, err := utils.FileSize(path)
		if err != nil {
			return err
		}
		mt, err := mimetype.DetectFile(path)
		if err != nil {
			return fmt.Errorf("detect type of %s: %w", path, err)
		}
		fmt.Printf("File:      %s\n", path)
		fmt.Printf("Size:      %d bytes\n", size)
		fmt.Printf("Type:      %s\n", mt.String())

		if info, err := a.processor.ProbeFile(cmd.Context(), path); err != nil {
			logger.Warn("ffprobe failed", logger.String("path", path), logger.ErrorField(err))
		} else {
			fmt.Printf("Container: %s\n", info.Format)
			fmt.Printf("Codec:     %s, %d Hz, %d ch\n", info.Codec, info.SampleRate, info.Channels)
			fmt.Printf("Duration:  %s\n", info.Duration)
			if info.BitRate > 0 {
				fmt.Printf("Bitrate:   %d kb/s\n", info.BitRate/1000)
			}
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		m, err := tag.ReadFrom(f)
		if err != nil {
			fmt.Printf("Tags:      none (%v)\n", err)
			return nil
		}
		fmt.Printf("Tags:      %s (%s)\n", m.Format(), m.FileType())
		if m.Title() != "" {
			fmt.Printf("Title:     %s\n", m.Title())
		}
		if m.Artist() != "" {
			fmt.Printf("Artist:    %s\n", m.Artist())
		}
		if p := m.Picture(); p != nil {
			fmt.Printf("Cover:     %s, %d bytes, %q\n", p.MIMEType, len(p.Data), p.Description)
		} else {
			fmt.Printf("Cover:     none\n")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
