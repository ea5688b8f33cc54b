package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
)

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Submit a transaction to the node's mempool",
	RunE: func(cmd *cobra.Command, args []string) error {
		sender, _ := cmd.Flags().GetString("sender")
		recipient, _ := cmd.Flags().GetString("recipient")
		amount, _ := cmd.Flags().GetUint64("amount")

		tx := struct {
			Sender    string `json:"sender"`
			Recipient string `json:"recipient"`
			Amount    uint64 `json:"amount"`
		}{
			Sender:    sender,
			Recipient: recipient,
			Amount:    amount,
		}

		req := newClient().R().
			SetContext(cmd.Context()).
			SetHeader("Content-Type", "application/json").
			SetBody(tx)

		return call(cmd.OutOrStdout(), req, http.MethodPost, "/transactions/new")
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List the transactions waiting to be mined",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := newClient().R().SetContext(cmd.Context())
		return call(cmd.OutOrStdout(), req, http.MethodGet, "/transactions/pending")
	},
}

func init() {
	txCmd.Flags().StringP("sender", "s", "", "Sender of the transaction.")
	txCmd.Flags().StringP("recipient", "r", "", "Recipient of the transaction.")
	txCmd.Flags().Uint64P("amount", "a", 0, "Amount to transfer.")
	txCmd.MarkFlagRequired("sender")
	txCmd.MarkFlagRequired("recipient")
	txCmd.MarkFlagRequired("amount")
}
