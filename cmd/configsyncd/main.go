// Package main is the entry point for configsyncd, the configuration sync
// client demo binary.
package main

import (
	"context"
	"os"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "config.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "configsyncd",
	Short: "Configuration sync client",
	Long: `configsyncd wires the Service Locator, Long-Poll Notifier, and a
per-namespace Remote Repository behind a Config Facade, keeping a local
snapshot of remote configuration fresh via long-polling with a periodic
refresh fallback.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
