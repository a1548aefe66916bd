package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/weightlog/pkg/types"
)

func newGoalCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage the weight goal",
	}
	cmd.AddCommand(newGoalSetCmd(a), newGoalShowCmd(a), newGoalClearCmd(a))
	return cmd
}

func newGoalSetCmd(a *app) *cobra.Command {
	var (
		start string
		since string
		by    string
		unit  string
	)
	cmd := &cobra.Command{
		Use:   "set <target>",
		Short: "Set the target weight",
		Long: `Set replaces the goal. The start weight defaults to the latest entry.

Example:
  weightlog goal set 75 --start 85 --since 2026-01-01 --by 2026-06-30`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if unit == "" {
				unit = a.settings.Unit
			}
			j, err := a.openJournal()
			if err != nil {
				return err
			}

			target, err := parseWeight(args[0], unit)
			if err != nil {
				return err
			}
			g := types.WeightGoal{TargetWeightKg: target, StartDate: time.Now().UTC()}

			if start != "" {
				if g.StartWeightKg, err = parseWeight(start, unit); err != nil {
					return err
				}
			} else {
				latest, err := j.Latest()
				if err != nil {
					return fmt.Errorf("start weight: pass --start or log an entry first: %w", err)
				}
				g.StartWeightKg = latest.WeightKg
			}
			if since != "" {
				if g.StartDate, err = parseTime(since); err != nil {
					return err
				}
			}
			if by != "" {
				t, err := parseTime(by)
				if err != nil {
					return err
				}
				g.TargetDate = &t
			}

			if err := j.SetGoal(g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Goal set: %s -> %s\n", weight(g.StartWeightKg, unit), weight(g.TargetWeightKg, unit))
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "start weight (default: latest entry)")
	cmd.Flags().StringVar(&since, "since", "", "start date (default: now)")
	cmd.Flags().StringVar(&by, "by", "", "target date")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of the weights (default: configured unit)")
	return cmd
}

func newGoalShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the goal and progress towards it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			g, err := j.Goal()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.flags.jsonMode {
				return writeJSON(out, g)
			}
			printGoal(out, g, j.Unit())
			if g == nil {
				return nil
			}

			p, err := j.Progress()
			if err != nil {
				// A goal without entries has no progress yet.
				fmt.Fprintln(out, "Progress: no entries")
				return nil
			}
			fmt.Fprintf(out, "Current: %s\n", weight(p.CurrentKg, j.Unit()))
			fmt.Fprintf(out, "Progress: %s (%s to go)\n", printer.Sprintf("%.0f%%", p.Percent), weight(p.RemainingKg, j.Unit()))
			if p.Reached {
				fmt.Fprintln(out, "Goal reached")
			}
			return nil
		},
	}
}

func newGoalClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			if err := j.ClearGoal(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Goal cleared")
			return nil
		},
	}
}

func parseWeight(s, unit string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("weight %q: %w", s, types.ErrInvalidWeight)
	}
	return types.ToKg(v, unit)
}
