package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGrantCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "grant <username> <dbname>",
		Args:  cobra.ExactArgs(2),
		Short: "Grant user access to db",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, dbname := args[0], args[1]

			au, err := a.authenticator()
			if err != nil {
				return err
			}
			if err := au.Grant(username, dbname); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Granted %s access to %s\n", username, dbname)
			return nil
		},
	}
}
