package bot

import (
	"fmt"
	"strings"

	"newsbot/internal/model"
)

// FormatStats formats ledger statistics for the /stats command.
func FormatStats(stats *model.LedgerStats, dailyCap int) string {
	var b strings.Builder
	b.WriteString("Forwarding statistics:\n")
	if dailyCap > 0 {
		fmt.Fprintf(&b, "\nToday: %d/%d", stats.TodayCount, dailyCap)
	} else {
		fmt.Fprintf(&b, "\nToday: %d (no daily limit)", stats.TodayCount)
	}
	fmt.Fprintf(&b, "\nLast 7 days: %d", stats.Last7Days)
	fmt.Fprintf(&b, "\nTotal: %d", stats.TotalForwarded)
	return b.String()
}
