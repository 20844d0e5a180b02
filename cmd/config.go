package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"schls/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a blank config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(configPath); err == nil && !configForce {
			return fmt.Errorf("%s already exists; use --force to overwrite", configPath)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if err := config.WriteTemplate(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s. Fill in client_id and oauth.\n", configPath)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective config with secrets masked",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		shown := *cfg
		shown.OAuth = mask(shown.OAuth)
		shown.RedisPassword = mask(shown.RedisPassword)
		shown.MinioSecretKey = mask(shown.MinioSecretKey)
		if err := printJSON(shown); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		return nil
	},
}

func mask(s string) string {
	if len(s) <= 4 {
		if s == "" {
			return ""
		}
		return "****"
	}
	return s[:4] + "****"
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")
}
