package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "feedctl",
	Short: "feedctl - inspect the classifieds listings feed",
	Long: `feedctl reads the instant listings feed the way clients do.
Walk pages with their cursors, check cached meta and compare cache behaviour.

Settings come from flags, FEEDCTL_* environment variables (FEEDCTL_API_BASE_URL,
FEEDCTL_API_TIMEOUT, FEEDCTL_OUTPUT_FORMAT, FEEDCTL_LOG_LEVEL) or a TOML config
file, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Root().PersistentFlags()
		if err := bindFlags(settings, flags); err != nil {
			return err
		}
		configPath, _ := flags.GetString("config")
		if err := loadConfig(settings, configPath); err != nil {
			return err
		}
		verbose, _ := flags.GetBool("verbose")
		initLogger(os.Stderr, verbose)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default ~/.config/feedctl/config.toml)")
	pf.String("api", "http://localhost:8787", "API server URL")
	pf.String("output", "text", "Output format: text or json")
	pf.Duration("timeout", 10*time.Second, "Request timeout")
	pf.BoolP("verbose", "v", false, "Debug logging")

	rootCmd.AddCommand(listingsCmd)
	rootCmd.AddCommand(metaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}
