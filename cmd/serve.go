package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"schls/logger"
	"schls/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket download API",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		addr := serveAddr
		if addr == "" {
			addr = a.cfg.ServerAddr
		}
		logger.Info("starting schls server",
			logger.String("addr", addr),
			logger.String("output", a.cfg.OutputDir),
			logger.Bool("history", a.history != nil),
			logger.Bool("cache", a.redis != nil),
			logger.Bool("upload", a.uploader != nil))

		return server.New(a.svc, a.history).ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default from config, :8080)")
}
