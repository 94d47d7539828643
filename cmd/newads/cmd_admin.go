package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Velocity-Developer/newads/internal/app"
)

var statsJSON bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := app.Migrate(cfg); err != nil {
			return err
		}
		logger.Info("database schema is up to date")
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print term and phrase counts per verdict and submission status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(func(a *app.Application) error {
			counts, err := a.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if statsJSON {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(counts)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tVERDICT\tSTATUS\tCOUNT")
			for _, c := range counts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", c.Table, c.Verdict, c.Status, c.Count)
			}
			return w.Flush()
		})
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print counts as JSON")
	rootCmd.AddCommand(migrateCmd, statsCmd)
}
