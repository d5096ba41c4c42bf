// Package ledger formats invoice history rows for append-only exports.
package ledger

import (
	"time"

	"freelance/internal/ports"
)

// Header is the first row of a fresh ledger sheet.
var Header = []any{
	"Recorded At", "Event", "Invoice", "Client", "Project",
	"Issue Date", "Due Date", "Amount (Rs.)", "Status", "Payment Link",
}

// Row renders an entry in Header order. Amounts are plain decimals so
// spreadsheets can sum them.
func Row(e ports.LedgerEntry) []any {
	inv := e.Invoice
	return []any{
		e.RecordedAt.UTC().Format(time.RFC3339),
		e.Event,
		inv.Number,
		inv.ClientName,
		inv.ProjectName,
		inv.IssueDate.String(),
		inv.DueDate.String(),
		inv.Amount.String(),
		string(inv.Status),
		inv.PaymentLink,
	}
}
