package reporting

import (
	"fmt"
	"strings"
)

// FormatConsole renders reports as an aligned table for terminal output.
func FormatConsole(title string, reports ...Report) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", len(title)) + "\n")
	b.WriteString(fmt.Sprintf("%-16s %6s %8s %8s %10s\n", "", "Races", "Win", "Place", "Trifecta"))
	for _, r := range reports {
		b.WriteString(fmt.Sprintf("%-16s %6d %7s%% %7s%% %9s%%\n",
			r.Label,
			r.Summary.N,
			r.WinPct.StringFixed(1),
			r.PlacePct.StringFixed(1),
			r.TrifectaPct.StringFixed(1),
		))
	}
	return b.String()
}
