// accel-sentry ingests accelerometer bursts over HTTP and either archives
// them for training (collect) or scores them against a fitted model (detect).
//
// Usage:
//
//	accel-sentry run [--config=<path>] [--mode=collect|detect] [--port=<n>] [--dir=<path>] [--duration=<d>]
//	accel-sentry validate [--config=<path>] [--print]
//	accel-sentry stats [--url=<metrics url>] [--interval=<d>]
//	accel-sentry features [--config=<path>] <dir>
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "accel-sentry",
	Short: "Accelerometer burst collector and Mahalanobis anomaly detector",
	Long: "accel-sentry receives three-axis accelerometer bursts from a sensor node.\n" +
		"In collect mode every burst is archived as a numbered CSV file; in detect\n" +
		"mode it is reduced to per-axis MAD features and scored against a model.",
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML configuration (defaults apply when empty)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(featuresCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
