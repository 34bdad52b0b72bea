package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var metaCmd = &cobra.Command{
	Use:   "meta",
	Short: "Show active listing count and last update time",
	RunE: func(cmd *cobra.Command, args []string) error {
		meta, err := newFeedClient().Meta(cmd.Context())
		if err != nil {
			return err
		}

		w := color.Output
		if outputFormat() == "json" {
			return printJSON(w, meta)
		}

		lastUpdated := "never"
		if meta.LastUpdated != nil {
			lastUpdated = *meta.LastUpdated
		}
		printRecord(w, []string{"Active listings", "Last updated", "Server time"}, map[string]string{
			"Active listings": fmt.Sprintf("%d", meta.ActiveCount),
			"Last updated":    lastUpdated,
			"Server time":     meta.ServerTime,
		})
		return nil
	},
}
