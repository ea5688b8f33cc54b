package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var mineCmd = &cobra.Command{
	Use:   "mine",
	Short: "Ask the node to mine a block with its pending transactions",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/mine")
	},
}

var chainCmd = &cobra.Command{
	Use:   "chain",
	Short: "Print the node's chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/chain")
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Ask the node to run consensus against its peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/nodes/resolve")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print the node's status",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/node/status")
	},
}
