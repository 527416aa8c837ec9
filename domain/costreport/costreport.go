package costreport

import (
	"encoding/csv"
	"fmt"
	"math"
	"strings"
	"time"

	lo "github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Window is the reporting period, always a full calendar month.
type Window struct {
	Start time.Time // first day of the month
	End   time.Time // last day of the same month
}

// PreviousMonthRange returns the window covering the calendar month
// before today's month. Year boundaries roll over (January yields
// December of the previous year).
func PreviousMonthRange(today time.Time) Window {
	firstOfThisMonth := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	end := firstOfThisMonth.AddDate(0, 0, -1)
	start := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, end.Location())
	return Window{Start: start, End: end}
}

// StartDate returns the window start formatted as YYYY-MM-DD.
func (w Window) StartDate() string { return w.Start.Format("2006-01-02") }

// EndDate returns the window end formatted as YYYY-MM-DD.
func (w Window) EndDate() string { return w.End.Format("2006-01-02") }

// String renders the window as "YYYY-MM-DD to YYYY-MM-DD".
func (w Window) String() string { return w.StartDate() + " to " + w.EndDate() }

// Account is a billable subscription under the tenant.
type Account struct {
	ID   string
	Name string
}

// AccountCost is the aggregate cost figure fetched for one account.
// HadData is false when the cost query failed or returned no rows; the
// cost is then forced to zero at render time regardless of TotalCost.
type AccountCost struct {
	Account
	TotalCost float64
	HadData   bool
}

// Status labels rendered in the last CSV column.
const (
	StatusActive    = "Active"
	StatusNoCharges = "No charges"
	StatusNoData    = "No usage data"
	StatusInvalid   = "Invalid cost"
)

// Report is one rendered run: the window, the per-account rows in
// enumeration order, and the grand total over the displayed row costs.
type Report struct {
	Window      Window
	Rows        []AccountCost
	GrandTotal  decimal.Decimal
	GeneratedAt time.Time
}

// Build assembles a Report. The grand total is the sum of the rounded
// per-row costs, so the TOTAL line always equals the printed rows
// added up. Rounding is half away from zero, two decimal places.
func Build(rows []AccountCost, w Window, generatedAt time.Time) Report {
	total := lo.Reduce(rows, func(acc decimal.Decimal, r AccountCost, _ int) decimal.Decimal {
		return acc.Add(displayCost(r))
	}, decimal.Zero)
	return Report{Window: w, Rows: rows, GrandTotal: total, GeneratedAt: generatedAt}
}

// displayCost is the amount actually printed for a row: zero when the
// fetch recorded no data or the figure is not a finite number,
// otherwise the cost rounded to two decimal places.
func displayCost(r AccountCost) decimal.Decimal {
	if !r.HadData || !isFinite(r.TotalCost) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(r.TotalCost).Round(2)
}

func statusFor(r AccountCost) string {
	switch {
	case !r.HadData:
		return StatusNoData
	case !isFinite(r.TotalCost):
		return StatusInvalid
	case r.TotalCost > 0:
		return StatusActive
	default:
		return StatusNoCharges
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Filename is the canonical report object name for the window.
func (r Report) Filename() string {
	return fmt.Sprintf("azure_cost_report_%s_to_%s.csv", r.Window.StartDate(), r.Window.EndDate())
}

// CSV renders the report: header, one row per account, a blank line,
// the TOTAL row, then the trailer lines. Output is byte-identical for
// identical inputs.
func (r Report) CSV() (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)

	header := []string{"Subscription Name", "Subscription ID", "From Date", "To Date", "Total Cost (USD)", "Status"}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for _, row := range r.Rows {
		record := []string{
			row.Name,
			row.ID,
			r.Window.StartDate(),
			r.Window.EndDate(),
			displayCost(row).StringFixed(2),
			statusFor(row),
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	if err := w.Write(nil); err != nil {
		return "", err
	}
	if err := w.Write([]string{"TOTAL", "", "", "", r.GrandTotal.StringFixed(2), ""}); err != nil {
		return "", err
	}
	if err := w.Write(nil); err != nil {
		return "", err
	}
	if err := w.Write([]string{fmt.Sprintf("Report Generated: %s", r.GeneratedAt.Format("2006-01-02 15:04:05"))}); err != nil {
		return "", err
	}
	if err := w.Write([]string{fmt.Sprintf("Total Subscriptions: %d", len(r.Rows))}); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}
