// Package main is the entry point for notifyhubd, a standalone stand-in for
// a real Config Service's long-poll Notification Server, used for local
// integration testing against cmd/configsyncd.
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
	Use:   "notifyhubd",
	Short: "Standalone notification server for local integration testing",
	Long: `notifyhubd runs the long-poll Notification Server counterpart on its
own, parking client requests against /notifications/v2 until an admin
publish on /admin/publish bumps a watched namespace's notification id.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
