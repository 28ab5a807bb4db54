package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"workshop-monitor/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "workshop-monitor",
	Short: "workshop-monitor watches a store's workshop sign-up form and emails you when new workshops show up.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(os.Stderr, verbose || debugLevel(os.Getenv("LOG_LEVEL")))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.json5", "The config file to read, a config.local.json5 next to it overrides its values.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages.")
}

func debugLevel(level string) bool {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "trace", "all":
		return true
	}
	return false
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
