package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/weightlog/internal/sqlite"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

func newLogCmd(a *app) *cobra.Command {
	var (
		at   string
		note string
		unit string
	)
	cmd := &cobra.Command{
		Use:   "log <weight>",
		Short: "Record a weight measurement",
		Long: `Log records a manual measurement in the configured unit.

Example:
  weightlog log 72.4
  weightlog log 160 --unit lb --at 2026-03-01T07:30:00Z --note "after run"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("weight %q: %w", args[0], types.ErrInvalidWeight)
			}
			if unit == "" {
				unit = a.settings.Unit
			}
			kg, err := types.ToKg(value, unit)
			if err != nil {
				return err
			}
			var measuredAt time.Time
			if at != "" {
				if measuredAt, err = parseTime(at); err != nil {
					return err
				}
			}

			j, err := a.openJournal()
			if err != nil {
				return err
			}
			e, err := j.LogWeight(kg, measuredAt, note)
			if err != nil {
				return err
			}

			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), e)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged %s at %s (%s)\n", weight(e.WeightKg, unit), stamp(e.MeasuredAt), e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "measurement time, RFC 3339 or YYYY-MM-DD (default: now)")
	cmd.Flags().StringVar(&note, "note", "", "free-text note")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of <weight> (default: configured unit)")
	return cmd
}

func newEntriesCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List weight entries, newest first",
		Long: `Entries lists measurements newest first. With --from or --to the list is
limited to [from, to) using the query index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			entries, err := j.Entries()
			if err != nil {
				return err
			}

			if from != "" || to != "" {
				lo, hi, err := parseRange(from, to)
				if err != nil {
					return err
				}
				idx, err := sqlite.OpenIndex(a.dataDir, a.log)
				if err != nil {
					return err
				}
				defer idx.Close()
				if err := idx.Replace(entries); err != nil {
					return err
				}
				if entries, err = idx.Range(lo, hi); err != nil {
					return err
				}
			}

			if a.flags.jsonMode {
				return writeJSON(cmd.OutOrStdout(), entries)
			}
			printEntries(cmd.OutOrStdout(), entries, j.Unit())
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "earliest measurement time, inclusive")
	cmd.Flags().StringVar(&to, "to", "", "latest measurement time, exclusive")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entry-id>",
		Short: "Delete an entry and its sync record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			if _, err := j.Entry(args[0]); err != nil {
				return err
			}
			if err := j.DeleteEntry(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

// parseRange parses optional --from/--to values; empty means unbounded.
func parseRange(from, to string) (time.Time, time.Time, error) {
	var lo, hi time.Time
	var err error
	if from != "" {
		if lo, err = parseTime(from); err != nil {
			return lo, hi, err
		}
	}
	if to != "" {
		if hi, err = parseTime(to); err != nil {
			return lo, hi, err
		}
	}
	return lo, hi, nil
}
