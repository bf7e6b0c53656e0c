package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"go.zipstore/internal/engine"
)

func parsePage(s string) (uint32, error) {
	pg, err := strconv.ParseUint(s, 10, 32)
	if err != nil || pg == 0 {
		return 0, fmt.Errorf("invalid page number %q", s)
	}
	return uint32(pg), nil
}

func readCommand() dbCommand {
	return dbCommand{
		use:   "read <page> [out]",
		short: "Read a page, to a file or as a hex dump",
		min:   1,
		max:   2,
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			pg, err := parsePage(args[0])
			if err != nil {
				return err
			}

			data, err := db.ReadPage(pg)
			if err != nil {
				return err
			}

			if len(args) == 2 {
				return os.WriteFile(args[1], data, 0o644)
			}
			fmt.Fprint(cmd.OutOrStdout(), hex.Dump(data))
			return nil
		},
	}
}

func writeCommand() dbCommand {
	return dbCommand{
		use:   "write <page> <file|->",
		short: "Write a page from a file or stdin; short input is zero padded",
		min:   2,
		max:   2,
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			pg, err := parsePage(args[0])
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			// One byte more than a page tells us the input was too long
			size := db.PageSize()
			buf := make([]byte, size+1)
			n, err := io.ReadFull(r, buf)
			if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
				return err
			}
			if n > size {
				return fmt.Errorf("input is larger than the %d byte page size", size)
			}

			if err := db.WritePage(pg, buf[:size]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote page %d (%d bytes)\n", pg, n)
			return nil
		},
	}
}

func truncateCommand() dbCommand {
	return dbCommand{
		use:   "truncate <pages>",
		short: "Drop every page after the first <pages>",
		min:   1,
		max:   1,
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			n, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid page count %q", args[0])
			}
			if err := db.Truncate(uint32(n)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Truncated to %d pages\n", n)
			return nil
		},
	}
}
