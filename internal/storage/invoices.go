package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"freelance/internal/core"
)

const invoiceSelect = `SELECT i.id, i.user_id, i.project_id, p.name, c.name, i.invoice_number, i.issue_date, i.due_date,
	i.amount_cents, i.payment_link, i.status, i.created_at, i.updated_at
FROM invoices i
JOIN projects p ON p.id = i.project_id
JOIN clients c ON c.id = p.client_id`

func scanInvoice(row interface{ Scan(...any) error }) (core.Invoice, error) {
	var (
		inv              core.Invoice
		issue, due       sql.NullString
		status           string
		created, updated string
	)
	if err := row.Scan(&inv.ID, &inv.UserID, &inv.ProjectID, &inv.ProjectName, &inv.ClientName, &inv.Number,
		&issue, &due, &inv.Amount.Cents, &inv.PaymentLink, &status, &created, &updated); err != nil {
		return core.Invoice{}, err
	}
	var err error
	if inv.IssueDate, err = parseDate(issue); err != nil {
		return core.Invoice{}, fmt.Errorf("invoice %d issue date: %w", inv.ID, err)
	}
	if inv.DueDate, err = parseDate(due); err != nil {
		return core.Invoice{}, fmt.Errorf("invoice %d due date: %w", inv.ID, err)
	}
	inv.Status = core.InvoiceStatus(status)
	inv.CreatedAt = parseTime(created)
	inv.UpdatedAt = parseTime(updated)
	return inv, nil
}

func (r *SQLiteRepository) queryInvoices(ctx context.Context, query string, args ...any) ([]core.Invoice, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []core.Invoice{}
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *SQLiteRepository) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := r.ownsRow(ctx, "projects", inv.UserID, inv.ProjectID); err != nil {
		return core.Invoice{}, err
	}
	now := r.stamp()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO invoices (user_id, project_id, invoice_number, issue_date, due_date, amount_cents, payment_link, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.UserID, inv.ProjectID, inv.Number, inv.IssueDate.String(), inv.DueDate.String(), inv.Amount.Cents,
		inv.PaymentLink, string(inv.Status), now, now)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", mapWriteError(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice id: %w", err)
	}
	return r.GetInvoice(ctx, inv.UserID, id)
}

func (r *SQLiteRepository) GetInvoice(ctx context.Context, userID, id int64) (core.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRowContext(ctx, invoiceSelect+` WHERE i.id = ? AND i.user_id = ?`, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, fmt.Errorf("invoice %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice %d: %w", id, err)
	}
	return inv, nil
}

// ListInvoices returns the owner's invoices with project and client names,
// newest first.
func (r *SQLiteRepository) ListInvoices(ctx context.Context, userID int64) ([]core.Invoice, error) {
	invoices, err := r.queryInvoices(ctx, invoiceSelect+` WHERE i.user_id = ? ORDER BY i.created_at DESC, i.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return invoices, nil
}

func (r *SQLiteRepository) UpdateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	if err := r.ownsRow(ctx, "projects", inv.UserID, inv.ProjectID); err != nil {
		return core.Invoice{}, err
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET project_id = ?, invoice_number = ?, issue_date = ?, due_date = ?, amount_cents = ?,
		 payment_link = ?, status = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		inv.ProjectID, inv.Number, inv.IssueDate.String(), inv.DueDate.String(), inv.Amount.Cents,
		inv.PaymentLink, string(inv.Status), r.stamp(), inv.ID, inv.UserID)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice %d: %w", inv.ID, mapWriteError(err))
	}
	if err := affectedOne(res, "invoice", inv.ID); err != nil {
		return core.Invoice{}, err
	}
	return r.GetInvoice(ctx, inv.UserID, inv.ID)
}

func (r *SQLiteRepository) DeleteInvoice(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", id, err)
	}
	return affectedOne(res, "invoice", id)
}

func (r *SQLiteRepository) LastInvoiceSequence(ctx context.Context, userID int64, year int) (int, error) {
	prefix := core.InvoiceNumberPrefix(year)
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(CAST(substr(invoice_number, ?) AS INTEGER)), 0)
		 FROM invoices
		 WHERE user_id = ? AND invoice_number GLOB ? AND substr(invoice_number, ?) NOT GLOB '*[^0-9]*'`,
		len(prefix)+1, userID, prefix+"[0-9]*", len(prefix)+1).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("last invoice sequence in %d: %w", year, err)
	}
	return n, nil
}

// ListOverdueInvoices spans all users; it feeds the reminder sweep.
func (r *SQLiteRepository) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]core.Invoice, error) {
	invoices, err := r.queryInvoices(ctx,
		invoiceSelect+` WHERE i.status = ? AND i.due_date < ? ORDER BY i.due_date ASC, i.id ASC`,
		string(core.InvoiceUnpaid), overdueCutoff(asOf).String())
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}
	return invoices, nil
}

// overdueCutoff is the first due date that is not overdue at asOf. Due dates
// are midnight UTC, so any instant past midnight makes that day overdue too.
func overdueCutoff(asOf time.Time) core.Date {
	u := asOf.UTC()
	y, m, d := u.Date()
	cutoff := core.NewDate(y, int(m), d)
	if u.After(cutoff.Time) {
		cutoff = cutoff.AddDays(1)
	}
	return cutoff
}
