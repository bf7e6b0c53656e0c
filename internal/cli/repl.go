package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"go.zipstore/internal/engine"
)

var errExit = errors.New("exit")

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell <dbname>",
		Args:  cobra.ExactArgs(1),
		Short: "Open a database and run commands against it interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := engine.Open(args[0], a.cfg)
			if err != nil {
				return fmt.Errorf("Failed to open database: %w", err)
			}
			defer db.Close()

			startREPL(newShellRoot(db), cmd.InOrStdin(), cmd.OutOrStdout(), args[0]+"> ")
			return nil
		},
	}
}

// newShellRoot holds the commands available inside the shell
func newShellRoot(db *engine.Database) *cobra.Command {
	root := &cobra.Command{
		Use:           "zipstore",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	for _, dc := range dbCommands() {
		root.AddCommand(inShell(dc, db))
	}
	root.AddCommand(&cobra.Command{
		Use:   "exit",
		Short: "Leave the shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			return errExit
		},
	})
	return root
}

// Starts an interactive command session
// Forwards commands to cobra
func startREPL(root *cobra.Command, in io.Reader, out io.Writer, prompt string) {
	reader := bufio.NewScanner(in)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(out)

	for {
		fmt.Fprint(out, prompt)

		if !reader.Scan() {
			fmt.Fprintln(out)
			return
		}

		input := strings.TrimSpace(reader.Text())
		if input == "" {
			continue
		}

		root.SetArgs(strings.Fields(input))

		// Flags keep their values between runs otherwise
		for _, c := range root.Commands() {
			c.Flags().Visit(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}

		err := root.ExecuteContext(context.Background())
		if errors.Is(err, errExit) {
			return
		}
		if err != nil {
			fmt.Fprintln(out, "Error:", err)
		}
	}
}
