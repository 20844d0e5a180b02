package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"schls/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the Redis track metadata cache",
}

var cachePingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check the Redis connection",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{console: true, offline: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if !a.cfg.RedisEnabled() {
			return fmt.Errorf("redis_addr is not configured")
		}
		if a.redis == nil {
			return fmt.Errorf("cannot connect to Redis at %s", a.cfg.RedisAddr)
		}
		fmt.Printf("Redis at %s is reachable, TTL %s\n", a.cfg.RedisAddr, a.cfg.CacheTTLDuration())
		return nil
	},
}

var cacheForgetCmd = &cobra.Command{
	Use:   "forget <url>",
	Short: "Drop a cached track so the next resolve hits the API",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{console: true, offline: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if a.redis == nil {
			return fmt.Errorf("track cache is not available")
		}
		tc := cache.NewTrackCache(a.redis, a.cfg.CacheTTLDuration())
		if err := tc.Invalidate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed %s\n", cache.TrackKey(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cachePingCmd, cacheForgetCmd)
}
