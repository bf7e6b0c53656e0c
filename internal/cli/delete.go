package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go.zipstore/internal/auth"
	"go.zipstore/internal/engine"
)

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <dbname>",
		Args:  cobra.ExactArgs(1),
		Short: "Delete an existing database",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbname := args[0]

			if err := engine.Drop(dbname, a.cfg); err != nil {
				return err
			}

			fs, err := auth.NewFileStore(a.cfg.UserFile)
			if err != nil {
				return err
			}
			if err := auth.NewAuthenticator(fs).RevokeAll(dbname); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database %s deleted\n", dbname)
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Args:  cobra.NoArgs,
		Short: "List databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := engine.List(a.cfg)
			if err != nil {
				return err
			}
			if len(names) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Join(names, "\n"))
			}
			return nil
		},
	}
}
