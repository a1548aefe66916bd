package cli

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mesh-intelligence/weightlog/internal/codec"
	"github.com/mesh-intelligence/weightlog/pkg/types"
)

// dateLayout is used for human-readable timestamps; all times print in UTC.
const dateLayout = "2006-01-02 15:04"

// printer formats numbers with English grouping and decimal separators.
var printer = message.NewPrinter(language.English)

// writeJSON writes v with the store codec so --json output matches the files.
func writeJSON(w io.Writer, v any) error {
	data, err := codec.Default.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// weight renders kg in unit, e.g. "72.4 kg".
func weight(kg float64, unit string) string {
	v, err := types.FromKg(kg, unit)
	if err != nil {
		v, unit = kg, types.UnitKg
	}
	return printer.Sprintf("%.1f %s", v, unit)
}

// signedWeight renders a change with an explicit sign.
func signedWeight(kg float64, unit string) string {
	v, err := types.FromKg(kg, unit)
	if err != nil {
		v, unit = kg, types.UnitKg
	}
	return printer.Sprintf("%+.1f %s", v, unit)
}

func stamp(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

func printEntries(w io.Writer, entries []types.WeightEntry, unit string) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries")
		return
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %s  %s  %s", e.ID, stamp(e.MeasuredAt), weight(e.WeightKg, unit), e.Source)
		if e.Note != "" {
			line += "  " + e.Note
		}
		fmt.Fprintln(w, line)
	}
}

func printGoal(w io.Writer, g *types.WeightGoal, unit string) {
	if g == nil {
		fmt.Fprintln(w, "No goal set")
		return
	}
	fmt.Fprintf(w, "Target: %s\n", weight(g.TargetWeightKg, unit))
	fmt.Fprintf(w, "Start:  %s on %s\n", weight(g.StartWeightKg, unit), stamp(g.StartDate))
	if g.TargetDate != nil {
		fmt.Fprintf(w, "By:     %s\n", stamp(*g.TargetDate))
	}
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want RFC 3339 or YYYY-MM-DD: %w", s, types.ErrInvalidTimestamp)
	}
	return t, nil
}
