package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured backup targets",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}

		targets := store.Targets()
		if len(targets) == 0 {
			fmt.Println("no targets configured")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tENGINE\tDATABASE\tSCHEDULE\tENABLED\tLAST RUN")
		for _, t := range targets {
			lastRun := "never"
			if t.LastRunAt != nil && !t.LastRunAt.IsZero() {
				lastRun = t.LastRunAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%s\n",
				t.Name, t.Engine, t.Connection.Database,
				t.Schedule, t.Enabled, lastRun)
		}
		return w.Flush()
	},
}
