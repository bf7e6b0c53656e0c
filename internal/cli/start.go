package cli

import (
	"os"

	"github.com/spf13/cobra"

	"go.zipstore/internal/logger"
	"go.zipstore/internal/server"
)

func newStartCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start zipstore server",
		RunE: func(cmd *cobra.Command, args []string) error {
			level, err := logger.ParseLevel(a.cfg.LogLevel)
			if err != nil {
				return err
			}

			srv, err := server.New(a.cfg, logger.New(os.Stderr, level))
			if err != nil {
				return err
			}
			return srv.Listen()
		},
	}
}
