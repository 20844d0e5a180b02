package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"schls/storage"
)

var uploadsDelete string

var uploadsCmd = &cobra.Command{
	Use:   "uploads",
	Short: "List or delete tracks uploaded to object storage",
	Example: `  # list uploaded tracks
  schls uploads

  # delete one
  schls uploads -d "Night Drive.mp3"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{console: true, offline: true})
		if err != nil {
			return err
		}
		defer a.Close()

		if a.uploader == nil {
			return fmt.Errorf("object storage is not configured or unreachable")
		}

		if uploadsDelete != "" {
			if err := a.uploader.Remove(ctx, uploadsDelete); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", uploadsDelete)
			return nil
		}

		objects, stats, err := a.uploader.List(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Bucket %s: %d objects, %s\n", a.cfg.MinioBucket, stats.TotalObjects, storage.FormatSize(stats.TotalSize))

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tTYPE\tMODIFIED")
		for _, o := range objects {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", o.Key, storage.FormatSize(o.Size), o.ContentType, o.LastModified.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(uploadsCmd)
	uploadsCmd.Flags().StringVarP(&uploadsDelete, "delete", "d", "", "object key or file name to delete")
}
