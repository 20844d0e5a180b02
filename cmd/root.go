package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"schls/config"
	"schls/core/codec"
	"schls/logger"
	"schls/tui"
)

var (
	configPath string
	clientID   string
	oauthToken string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "schls",
	Short: "Download SoundCloud tracks from their HLS streams.",
	Long: `schls resolves a SoundCloud track URL, picks the best HLS transcoding and
hands the stream to ffmpeg, which writes the chosen codec to disk and embeds
the cover art. Run without a subcommand for the interactive screen.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// Console logging would tear the alt screen.
		a, err := newApp(ctx, appOptions{console: false, history: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.checkFFmpeg(ctx); err != nil {
			return err
		}

		var program atomic.Pointer[tea.Program]
		if err := config.Watch(ctx, a.configPath, func(cfg *config.Config) {
			cfg.ApplyOverrides(clientID, oauthToken)
			a.client.SetCredentials(cfg.ClientID, cfg.OAuth)
			if p := program.Load(); p != nil {
				p.Send(tui.CredentialsChangedMsg{})
			}
		}); err != nil {
			logger.Warn("config hot reload disabled", logger.ErrorField(err))
		}

		defaultCodec, _ := codec.Parse(a.cfg.Codec)
		return tui.Run(ctx, a.svc, defaultCodec, func(p *tea.Program) {
			program.Store(p)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to the JSON config file")
	rootCmd.PersistentFlags().StringVar(&clientID, "client_id", "", "SoundCloud client id (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&oauthToken, "oauth", "", "SoundCloud OAuth token (overrides the config file)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
