package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	accelsentry "github.com/ghalamif/accelsentry"
)

var runFlags struct {
	mode     string
	port     int
	dir      string
	duration time.Duration
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the ingestion server in collect or detect mode",
	Args:  cobra.NoArgs,
	RunE:  runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runFlags.mode, "mode", "", "Operating mode: collect or detect (overrides config)")
	f.IntVar(&runFlags.port, "port", 0, "Ingestion port (overrides server.port)")
	f.StringVar(&runFlags.dir, "dir", "", "Archive directory for collect mode (overrides archive.dir)")
	f.DurationVar(&runFlags.duration, "duration", 0, "Stop after this long; 0 runs until signalled")
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := accelsentry.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	f := cmd.Flags()
	if f.Changed("mode") {
		cfg.Mode = runFlags.mode
	}
	if f.Changed("port") {
		cfg.Server.Port = runFlags.port
	}
	if f.Changed("dir") {
		cfg.Archive.Dir = runFlags.dir
	}
	if f.Changed("duration") {
		cfg.Server.Duration = runFlags.duration
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	flow, err := accelsentry.ConfFromConfig(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := flow.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
