package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"socialgraph.relay/sgr/internal/logger"
	"socialgraph.relay/sgr/internal/social"
	"socialgraph.relay/sgr/internal/store"
)

func newCredentialCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the posting credential of registered users",
	}

	var revoke bool
	grant := &cobra.Command{
		Use:   "grant <address>",
		Short: "Mark a registered user as holding the credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, _, err := logger.New(logger.Options{Level: a.cfg.LogLevel, Console: true, Output: os.Stderr})
			if err != nil {
				return err
			}
			st, err := store.New(a.cfg.DatabaseFile)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			// Only the store is touched; no relay is needed.
			svc := social.NewService(st, nil, nil, social.Options{}, log)
			if err := svc.GrantCredential(cmd.Context(), args[0], !revoke); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"address":          args[0],
				"hasCredentialNFT": !revoke,
			})
		},
	}
	grant.Flags().BoolVar(&revoke, "revoke", false, "remove the credential instead")
	grant.Flags().String("db", "socialgraph.db", "SQLite database file")

	cmd.AddCommand(grant)
	return cmd
}
