// internal/notify/format.go

// Package notify holds the report sinks: the settlement engine hands the
// finished daily report to each configured sink fire-and-forget.
package notify

import (
	"fmt"
	"strings"

	"business-empire/internal/models"
)

const reportRule = "------------------------"

// FormatReport renders the daily report as a chat-friendly text summary:
// run totals first, then one line per company, with failures called out so
// operators never mistake a partial run for a clean one.
func FormatReport(report *models.DailyReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 Daily Settlement Report\n")
	fmt.Fprintf(&b, "Date: %s\n", report.Date)
	b.WriteString(reportRule + "\n")
	fmt.Fprintf(&b, "Companies settled: %d/%d\n", report.Totals.Settled, report.Totals.Companies)
	fmt.Fprintf(&b, "Gross revenue: %d\n", report.Totals.GrossRevenue)
	fmt.Fprintf(&b, "Payroll: -%d\n", report.Totals.Payroll)
	fmt.Fprintf(&b, "Tax: -%d\n", report.Totals.Tax)
	fmt.Fprintf(&b, "Net profit: %d\n", report.Totals.NetProfit)
	fmt.Fprintf(&b, "Dividends paid: %d\n", report.Totals.Dividends)
	b.WriteString(reportRule + "\n")

	for _, cr := range report.Companies {
		b.WriteString(formatCompanyLine(cr) + "\n")
	}

	if report.Totals.Failed > 0 {
		b.WriteString(reportRule + "\n")
		fmt.Fprintf(&b, "⚠️ %d company(ies) failed and need review\n", report.Totals.Failed)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatCompanyLine(cr models.CompanyResult) string {
	name := cr.CompanyName
	if name == "" {
		name = fmt.Sprintf("company %d", cr.CompanyID)
	}

	if cr.Record == nil {
		return fmt.Sprintf("❌ %s: %s", name, cr.Error)
	}

	line := fmt.Sprintf("%s: gross %d, net %d", name, cr.Record.GrossRevenue, cr.Record.NetProfit)
	if cr.Record.Shortfall > 0 {
		line += fmt.Sprintf(" (shortfall %d)", cr.Record.Shortfall)
	}
	if len(cr.Record.Events) > 0 {
		kinds := make([]string, len(cr.Record.Events))
		for i, ev := range cr.Record.Events {
			kinds[i] = ev.Kind
		}
		line += " 🎲 " + strings.Join(kinds, ", ")
	}
	return line
}

// Subject is the one-line headline used by subject-bearing sinks.
func Subject(report *models.DailyReport) string {
	if report.Totals.Failed > 0 {
		return fmt.Sprintf("Settlement %s: %d/%d settled, %d FAILED",
			report.Date, report.Totals.Settled, report.Totals.Companies, report.Totals.Failed)
	}
	return fmt.Sprintf("Settlement %s: %d companies settled", report.Date, report.Totals.Settled)
}
