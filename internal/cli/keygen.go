package cli

import (
	"os"

	"github.com/spf13/cobra"

	"socialgraph.relay/sgr/internal/identity"
)

func newKeygenCommand() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create a wallet key file, or print the address of an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, statErr := os.Stat(out)
			created := os.IsNotExist(statErr)

			id, err := identity.LoadOrCreateIdentity(out)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"address": id.Address(),
				"keyFile": out,
				"created": created,
			})
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "wallet.json", "key file; .json writes the Solana keygen format, anything else PEM")
	return cmd
}
