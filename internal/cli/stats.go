package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/weightlog/internal/sqlite"
)

func newStatsCmd(a *app) *cobra.Command {
	var (
		days     int
		from, to string
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize entries over a period",
		Long: `Stats reports count, minimum, maximum, mean and net change of the entries
measured in the last --days days, or in [--from, --to).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lo, hi, err := parseRange(from, to)
			if err != nil {
				return err
			}
			if from == "" && days > 0 {
				lo = time.Now().UTC().AddDate(0, 0, -days)
			}

			j, err := a.openJournal()
			if err != nil {
				return err
			}
			entries, err := j.Entries()
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
			s, err := idx.Summary(lo, hi)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, s)
			}
			if s.Count == 0 {
				fmt.Fprintln(out, "No entries in range")
				return nil
			}
			unit := j.Unit()
			printer.Fprintf(out, "Entries: %d\n", s.Count)
			fmt.Fprintf(out, "Min:     %s\n", weight(s.MinKg, unit))
			fmt.Fprintf(out, "Max:     %s\n", weight(s.MaxKg, unit))
			fmt.Fprintf(out, "Mean:    %s\n", weight(s.MeanKg, unit))
			fmt.Fprintf(out, "Change:  %s (%s to %s)\n", signedWeight(s.ChangeKg, unit), stamp(s.First), stamp(s.Last))
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "length of the period ending now; 0 for all entries")
	cmd.Flags().StringVar(&from, "from", "", "start of the period, inclusive (overrides --days)")
	cmd.Flags().StringVar(&to, "to", "", "end of the period, exclusive")
	return cmd
}
