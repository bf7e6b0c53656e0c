package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.zipstore/internal/auth"
)

func (a *app) authenticator() (*auth.Authenticator, error) {
	fs, err := auth.NewFileStore(a.cfg.UserFile)
	if err != nil {
		return nil, err
	}
	return auth.NewAuthenticator(fs), nil
}

// TODO: prompt for the password when it is left off the command line
func newUserCreateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create-user <username> <password> <role>",
		Args:  cobra.ExactArgs(3),
		Short: "Create a new zipstore user (role: superuser, user or guest)",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, password := args[0], args[1]

			role, err := auth.ParseRole(args[2])
			if err != nil {
				return err
			}

			au, err := a.authenticator()
			if err != nil {
				return err
			}
			if err := au.CreateUser(username, password, role); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "User %s created\n", username)
			return nil
		},
	}
}
