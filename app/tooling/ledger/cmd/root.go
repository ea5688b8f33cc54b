// Package cmd contains the ledger client commands.
package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RootCmd is the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Client for a ledger node",
	Long:  `ledger talks to a proof of work ledger node over its v1 web api.`,
}

func init() {
	RootCmd.PersistentFlags().StringP("url", "u", "http://localhost:8080", "Url of the node.")
	RootCmd.PersistentFlags().Duration("timeout", 30*time.Second, "Timeout for a call to the node.")
	if err := viper.BindPFlags(RootCmd.PersistentFlags()); err != nil {
		fmt.Fprintln(os.Stderr, "binding root flags:", err)
	}

	RootCmd.SilenceUsage = true

	viper.SetConfigName("ledger")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.ledger")

	viper.SetEnvPrefix("ledger")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	RootCmd.AddCommand(txCmd)
	RootCmd.AddCommand(pendingCmd)
	RootCmd.AddCommand(mineCmd)
	RootCmd.AddCommand(chainCmd)
	RootCmd.AddCommand(peersCmd)
	RootCmd.AddCommand(resolveCmd)
	RootCmd.AddCommand(statusCmd)
}

// Execute runs the root command.
func Execute() {

	// A missing config file is fine, flags and env cover everything.
	_ = viper.ReadInConfig()

	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
