package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var peersCmd = &cobra.Command{
	Use:   "peers",
	Short: "List the node's known peers",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/nodes")
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [address...]",
	Short: "Register peers with the node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := struct {
			Nodes []string `json:"nodes"`
		}{
			Nodes: args,
		}

		req := newClient().R().
			SetContext(cmd.Context()).
			SetHeader("Content-Type", "application/json").
			SetBody(body)

		return call(cmd.OutOrStdout(), req, http.MethodPost, "/nodes/register")
	},
}

func init() {
	peersCmd.AddCommand(registerCmd)
}
