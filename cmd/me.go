package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the account the OAuth token belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), appOptions{console: true})
		if err != nil {
			return err
		}
		defer a.Close()

		account, err := a.client.Me(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s\n", account.Username)
		if account.FullName != "" {
			fmt.Printf("Name:    %s\n", account.FullName)
		}
		if account.PermalinkURL != "" {
			fmt.Printf("Profile: %s\n", account.PermalinkURL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(meCmd)
}
