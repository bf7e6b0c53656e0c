package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go.zipstore/internal/engine"
)

func newCreateCmd(a *app) *cobra.Command {
	var codecName, journal string
	var pageSize int

	cmd := &cobra.Command{
		Use:   "create <dbname>",
		Args:  cobra.ExactArgs(1),
		Short: "Create a new database",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *a.cfg
			if codecName != "" {
				cfg.Store.Codec = codecName
			}
			if journal != "" {
				cfg.Store.JournalMode = journal
			}
			if pageSize != 0 {
				cfg.Store.PageSize = pageSize
			}
			if err := cfg.Store.Validate(); err != nil {
				return err
			}

			if err := engine.Create(args[0], &cfg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database %s created (codec %s, page size %d)\n",
				args[0], cfg.Store.Codec, cfg.Store.PageSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&codecName, "codec", "", "page codec (zlib, xz, lzma, none)")
	cmd.Flags().StringVar(&journal, "journal-mode", "", "rollback or wal")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "logical page size in bytes")
	return cmd
}
