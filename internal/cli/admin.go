package cli

import (
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"go.zipstore/internal/engine"
	"go.zipstore/internal/storage"
)

func compactCommand() dbCommand {
	return dbCommand{
		use:   "compact",
		short: "Squeeze free space out of the file",
		flags: func(cmd *cobra.Command) {
			cmd.Flags().String("max", "", "scan at most this much of the file per step, e.g. 64KiB (default all)")
		},
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			maxFlag, _ := cmd.Flags().GetString("max")
			var maxBytes int64
			if maxFlag != "" {
				n, err := humanize.ParseBytes(maxFlag)
				if err != nil {
					return err
				}
				maxBytes = int64(n)
			}

			before, err := db.Stats()
			if err != nil {
				return err
			}

			// Ctrl-C stops between slots and keeps what was done
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			remaining, err := db.Compact(ctx, maxBytes)
			if err != nil {
				return err
			}

			after, err := db.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "File: %s -> %s\n", humanize.IBytes(uint64(before.FileBytes)), humanize.IBytes(uint64(after.FileBytes)))
			if remaining > 0 {
				fmt.Fprintf(out, "%s left to compact\n", humanize.IBytes(uint64(remaining)))
			}
			return nil
		},
	}
}

func statsCommand() dbCommand {
	return dbCommand{
		use:   "stats",
		short: "Show space usage",
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			st, err := db.Stats()
			if err != nil {
				return err
			}
			printStats(cmd, st)
			return nil
		},
	}
}

func printStats(cmd *cobra.Command, st storage.Stat) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Pages:\t%s\n", humanize.Comma(int64(st.Pages)))
	fmt.Fprintf(w, "Page size:\t%s\n", humanize.IBytes(uint64(st.PageSize)))
	fmt.Fprintf(w, "Codec:\t%s\n", st.Codec)
	fmt.Fprintf(w, "Free slots:\t%s (%s)\n", humanize.Comma(st.FreeSlots), humanize.IBytes(uint64(st.FreeBytes)))
	fmt.Fprintf(w, "Fragmentation:\t%s\n", humanize.IBytes(uint64(max(st.FragmentBytes, 0))))
	fmt.Fprintf(w, "Gap:\t%s\n", humanize.IBytes(uint64(st.GapBytes)))
	fmt.Fprintf(w, "File:\t%s\n", humanize.IBytes(uint64(st.FileBytes)))
	fmt.Fprintf(w, "Content:\t%s\n", humanize.IBytes(uint64(max(st.ContentBytes, 0))))
	if st.ContentBytes > 0 {
		raw := int64(st.Pages) * int64(st.PageSize)
		fmt.Fprintf(w, "Ratio:\t%s%%\n", humanize.FtoaWithDigits(100*float64(st.ContentBytes)/float64(raw), 1))
	}
	w.Flush()
}

func checkCommand() dbCommand {
	return dbCommand{
		use:   "check",
		short: "Run the integrity check",
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			if err := db.Check(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func digestCommand() dbCommand {
	return dbCommand{
		use:   "digest",
		short: "BLAKE3 digest of all pages",
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			sum, err := db.DigestHex()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sum)
			return nil
		},
	}
}

func structureCommand() dbCommand {
	return dbCommand{
		use:   "structure",
		short: "List every slot: pages first, then the free list",
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PAGE\tOFFSET\tSIZE\tPADDING\tNOTE")
			err := db.Structure(func(si storage.SlotInfo) error {
				switch {
				case si.Page != 0:
					fmt.Fprintf(w, "%d\t%d\t%d\t%d\t\n", si.Page, si.Offset, si.Size, si.Padding)
				case si.InUse:
					fmt.Fprintf(w, "-\t%d\t%d\t\tfree, tree node\n", si.Offset, si.Size)
				default:
					fmt.Fprintf(w, "-\t%d\t%d\t\tfree\n", si.Offset, si.Size)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return w.Flush()
		},
	}
}

func journalModeCommand() dbCommand {
	return dbCommand{
		use:   "journal-mode [rollback|wal]",
		short: "Show or change the journal mode",
		max:   1,
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			if len(args) == 1 {
				if err := db.SetJournalMode(args[0]); err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), db.JournalMode())
			return nil
		},
	}
}

func checkpointCommand() dbCommand {
	return dbCommand{
		use:   "checkpoint",
		short: "Copy the write-ahead log into the database file",
		run: func(cmd *cobra.Command, db *engine.Database, args []string) error {
			return db.Checkpoint()
		},
	}
}
