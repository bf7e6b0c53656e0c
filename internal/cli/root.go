package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go.zipstore/internal/config"
)

// app carries what every command needs once the configuration is loaded
type app struct {
	home    string
	cfgPath string
	cfg     *config.Config
}

func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "zipstore",
		Short:         "zipstore - compressed page store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(a.home, a.cfgPath)
			if err != nil {
				return fmt.Errorf("Failed to load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.home, "home", "", "zipstore home directory (default $ZIPSTORE_HOME or ~/.local/share/zipstore)")
	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "config file (default <home>/config.yaml)")

	root.AddCommand(
		newCreateCmd(a),
		newDeleteCmd(a),
		newListCmd(a),
		newStartCmd(a),
		newShellCmd(a),
		newUserCreateCmd(a),
		newUserDeleteCmd(a),
		newGrantCmd(a),
		newRevokeCmd(a),
	)
	for _, dc := range dbCommands() {
		root.AddCommand(a.topLevel(dc))
	}
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: ", err)
		os.Exit(1)
	}
}
