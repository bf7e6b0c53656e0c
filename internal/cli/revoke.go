package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRevokeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <username> <dbname>",
		Args:  cobra.ExactArgs(2),
		Short: "Revoke user access to a database",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, dbname := args[0], args[1]

			au, err := a.authenticator()
			if err != nil {
				return err
			}
			if err := au.Revoke(username, dbname); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Revoked %s access to %s\n", username, dbname)
			return nil
		},
	}
}
