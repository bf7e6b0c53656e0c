package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"go.zipstore/internal/engine"
)

// A dbCommand runs against one open database. The same definition backs
// the top level "<cmd> <dbname> ..." form and the shell's "<cmd> ..." form.
type dbCommand struct {
	use   string
	short string
	min   int
	max   int
	flags func(*cobra.Command)
	run   func(cmd *cobra.Command, db *engine.Database, args []string) error
}

func dbCommands() []dbCommand {
	return []dbCommand{
		readCommand(),
		writeCommand(),
		truncateCommand(),
		compactCommand(),
		statsCommand(),
		checkCommand(),
		digestCommand(),
		structureCommand(),
		journalModeCommand(),
		checkpointCommand(),
	}
}

func (dc dbCommand) build(use string, args cobra.PositionalArgs, run func(*cobra.Command, []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: dc.short,
		Args:  args,
		RunE:  run,
	}
	if dc.flags != nil {
		dc.flags(cmd)
	}
	return cmd
}

// topLevel opens the named database for the one command
func (a *app) topLevel(dc dbCommand) *cobra.Command {
	name, rest, _ := strings.Cut(dc.use, " ")
	use := name + " <dbname>"
	if rest != "" {
		use += " " + rest
	}

	return dc.build(use, cobra.RangeArgs(dc.min+1, dc.max+1), func(cmd *cobra.Command, args []string) error {
		db, err := engine.Open(args[0], a.cfg)
		if err != nil {
			return fmt.Errorf("Failed to open database: %w", err)
		}

		runErr := dc.run(cmd, db, args[1:])
		if err := db.Close(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	})
}

// inShell binds the command to a database the shell already has open
func inShell(dc dbCommand, db *engine.Database) *cobra.Command {
	return dc.build(dc.use, cobra.RangeArgs(dc.min, dc.max), func(cmd *cobra.Command, args []string) error {
		return dc.run(cmd, db, args)
	})
}
