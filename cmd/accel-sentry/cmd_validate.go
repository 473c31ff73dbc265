package main

import (
	"fmt"

	"github.com/spf13/cobra"

	accelsentry "github.com/ghalamif/accelsentry"
)

var validatePrint bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate a config file without starting the runtime",
	Args:  cobra.NoArgs,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validatePrint, "print", false, "Print the effective configuration as YAML")
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := accelsentry.LoadConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if validatePrint {
		raw, err := accelsentry.DumpConfig(cfg)
		if err != nil {
			return err
		}
		_, _ = out.Write(raw)
		return nil
	}
	name := configPath
	if name == "" {
		name = "(defaults)"
	}
	fmt.Fprintf(out, "config %s looks good (mode=%s)\n", name, cfg.Mode)
	return nil
}
