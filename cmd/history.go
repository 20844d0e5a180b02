package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recent downloads, or show one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{console: true, history: true, offline: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if a.history == nil {
			return fmt.Errorf("download history is unavailable (history_dsn %q)", a.cfg.HistoryDSN)
		}

		if len(args) == 1 {
			rec, err := a.history.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no download with id %s", args[0])
			}
			return printJSON(rec)
		}

		records, err := a.history.List(ctx, historyLimit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No downloads yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tCODEC\tTITLE\tOUTPUT")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Status, r.Codec, r.Title, r.OutputPath)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of rows to show")
}
