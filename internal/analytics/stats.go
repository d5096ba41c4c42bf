// Package analytics computes the dashboard snapshot for one user and answers
// plan-limit questions. Everything here is pure: callers fetch the rows and
// pass the reference instant explicitly.
package analytics

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"freelance/internal/core"
)

// RecentInvoicesLimit caps Stats.RecentInvoices.
const RecentInvoicesLimit = 5

// ErrInvalidInput is wrapped by every rejection of a malformed snapshot.
var ErrInvalidInput = errors.New("invalid analytics input")

// Stats is the read-only dashboard snapshot.
type Stats struct {
	TotalClients       int `json:"total_clients"`
	TotalProjects      int `json:"total_projects"`
	CompletedProjects  int `json:"completed_projects"`
	InProgressProjects int `json:"in_progress_projects"`

	TotalIncome     core.Money `json:"total_income"`
	TotalPending    core.Money `json:"total_pending"`
	MonthlyIncome   core.Money `json:"monthly_income"`
	LastMonthIncome core.Money `json:"last_month_income"`
	TotalOverdue    core.Money `json:"total_overdue"`

	IncomeGrowth        string  `json:"income_growth"`
	IncomeGrowthPercent float64 `json:"income_growth_percent"`

	TotalInvoices       int `json:"total_invoices"`
	PaidInvoicesCount   int `json:"paid_invoices_count"`
	UnpaidInvoicesCount int `json:"unpaid_invoices_count"`

	RecentInvoices []core.Invoice `json:"recent_invoices"`
}

// ComputeDashboardStats aggregates a user's snapshot as of the given instant.
// Month bucketing uses the calendar month of asOf in asOf's location. An
// invoice is overdue when it is unpaid and its due date, taken as midnight
// UTC, is strictly before asOf.
func ComputeDashboardStats(clients []core.Client, projects []core.Project, invoices []core.Invoice, asOf time.Time) (Stats, error) {
	if err := validateSnapshot(projects, invoices); err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalClients:   len(clients),
		TotalProjects:  len(projects),
		TotalInvoices:  len(invoices),
		RecentInvoices: recentInvoices(invoices, RecentInvoicesLimit),
	}

	for _, p := range projects {
		switch p.Status {
		case core.ProjectCompleted:
			stats.CompletedProjects++
		case core.ProjectInProgress:
			stats.InProgressProjects++
		}
	}

	thisMonth := core.MonthOf(asOf)
	lastMonth := thisMonth.Prev()

	for _, inv := range invoices {
		switch inv.Status {
		case core.InvoicePaid:
			stats.PaidInvoicesCount++
			stats.TotalIncome = stats.TotalIncome.Add(inv.Amount)
			if inv.IssueDate.InMonth(thisMonth) {
				stats.MonthlyIncome = stats.MonthlyIncome.Add(inv.Amount)
			}
			if inv.IssueDate.InMonth(lastMonth) {
				stats.LastMonthIncome = stats.LastMonthIncome.Add(inv.Amount)
			}
		case core.InvoiceUnpaid:
			stats.UnpaidInvoicesCount++
			stats.TotalPending = stats.TotalPending.Add(inv.Amount)
			if inv.IsOverdue(asOf) {
				stats.TotalOverdue = stats.TotalOverdue.Add(inv.Amount)
			}
		}
	}

	stats.IncomeGrowthPercent = IncomeGrowth(stats.MonthlyIncome, stats.LastMonthIncome)
	stats.IncomeGrowth = FormatGrowth(stats.IncomeGrowthPercent)
	return stats, nil
}

func validateSnapshot(projects []core.Project, invoices []core.Invoice) error {
	for _, p := range projects {
		if !p.Status.Valid() {
			return fmt.Errorf("%w: project %d has status %q", ErrInvalidInput, p.ID, p.Status)
		}
	}
	for _, inv := range invoices {
		switch {
		case inv.Amount.Cents < 0:
			return fmt.Errorf("%w: invoice %d has negative amount %s", ErrInvalidInput, inv.ID, inv.Amount)
		case inv.IssueDate.IsZero():
			return fmt.Errorf("%w: invoice %d has no issue date", ErrInvalidInput, inv.ID)
		case inv.DueDate.IsZero():
			return fmt.Errorf("%w: invoice %d has no due date", ErrInvalidInput, inv.ID)
		case !inv.Status.Valid():
			return fmt.Errorf("%w: invoice %d has status %q", ErrInvalidInput, inv.ID, inv.Status)
		}
	}
	return nil
}

// recentInvoices returns a new slice, never nil, so empty snapshots encode
// as [].
func recentInvoices(invoices []core.Invoice, n int) []core.Invoice {
	sorted := make([]core.Invoice, len(invoices))
	copy(sorted, invoices)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IssueDate.After(sorted[j].IssueDate.Time)
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
