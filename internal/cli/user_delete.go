package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUserDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-user <username>",
		Args:  cobra.ExactArgs(1),
		Short: "Delete a zipstore user",
		RunE: func(cmd *cobra.Command, args []string) error {
			au, err := a.authenticator()
			if err != nil {
				return err
			}
			if err := au.DeleteUser(args[0]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %s deleted\n", args[0])
			return nil
		},
	}
}
