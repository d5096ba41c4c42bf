// Package ports declares the outbound interfaces the services depend on.
// Storage backends, the ledger exporter and the reminder notifier implement
// them.
package ports

import (
	"context"
	"time"

	"freelance/internal/core"
)

type (
	UserStore interface {
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUser(ctx context.Context, id int64) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
		UpdateUserPlan(ctx context.Context, id int64, plan core.PlanType) (core.User, error)
	}

	// ClientStore methods are scoped by owner: rows of other users behave
	// as if they did not exist.
	ClientStore interface {
		CreateClient(ctx context.Context, c core.Client) (core.Client, error)
		GetClient(ctx context.Context, userID, id int64) (core.Client, error)
		ListClients(ctx context.Context, userID int64) ([]core.Client, error)
		UpdateClient(ctx context.Context, c core.Client) (core.Client, error)
		DeleteClient(ctx context.Context, userID, id int64) error
		CountClients(ctx context.Context, userID int64) (int, error)
		// CreateClientCapped counts and inserts atomically: it fails with
		// storage.ErrLimitReached when the owner already has limit clients.
		// A negative limit means no cap.
		CreateClientCapped(ctx context.Context, c core.Client, limit int) (core.Client, error)
	}

	// ProjectStore rejects a client id that does not belong to the owner.
	ProjectStore interface {
		CreateProject(ctx context.Context, p core.Project) (core.Project, error)
		GetProject(ctx context.Context, userID, id int64) (core.Project, error)
		ListProjects(ctx context.Context, userID int64) ([]core.Project, error)
		UpdateProject(ctx context.Context, p core.Project) (core.Project, error)
		DeleteProject(ctx context.Context, userID, id int64) error
	}

	// InvoiceStore rejects a project id that does not belong to the owner.
	InvoiceStore interface {
		CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
		GetInvoice(ctx context.Context, userID, id int64) (core.Invoice, error)
		ListInvoices(ctx context.Context, userID int64) ([]core.Invoice, error)
		UpdateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
		DeleteInvoice(ctx context.Context, userID, id int64) error
		// LastInvoiceSequence returns the highest n among the owner's
		// invoice numbers of the form INV-<year>-<n>, or 0.
		LastInvoiceSequence(ctx context.Context, userID int64, year int) (int, error)
		// ListOverdueInvoices returns unpaid invoices of every user whose
		// due date (midnight UTC) is strictly before asOf.
		ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]core.Invoice, error)
	}

	// ReminderLog records which invoices were already reminded on a day.
	ReminderLog interface {
		// MarkReminded returns false when a reminder for the invoice and
		// day was already recorded.
		MarkReminded(ctx context.Context, invoiceID int64, day core.Date) (bool, error)
	}

	// RecordStore covers the four entity collections.
	RecordStore interface {
		UserStore
		ClientStore
		ProjectStore
		InvoiceStore
	}

	Store interface {
		RecordStore
		ReminderLog
		Ping(ctx context.Context) error
		Close() error
	}
)

// SnapshotReader is what the dashboard needs: the user's three collections
// and plan.
type SnapshotReader interface {
	FetchClients(ctx context.Context, userID int64) ([]core.Client, error)
	FetchProjects(ctx context.Context, userID int64) ([]core.Project, error)
	FetchInvoices(ctx context.Context, userID int64) ([]core.Invoice, error)
	FetchUserPlan(ctx context.Context, userID int64) (core.PlanType, error)
}

// LedgerEntry is one append-only line in the invoice ledger.
type LedgerEntry struct {
	Event      string
	Invoice    core.Invoice
	RecordedAt time.Time
}

// LedgerWriter appends invoice history to an external ledger.
type LedgerWriter interface {
	Append(ctx context.Context, e LedgerEntry) (rowRef string, err error)
}

// Notifier delivers an overdue reminder for one invoice.
type Notifier interface {
	NotifyOverdue(ctx context.Context, user core.User, inv core.Invoice, asOf time.Time) error
}

type storeSnapshot struct {
	store RecordStore
}

// SnapshotFromStore adapts a store to SnapshotReader.
func SnapshotFromStore(s RecordStore) SnapshotReader {
	return storeSnapshot{store: s}
}

func (s storeSnapshot) FetchClients(ctx context.Context, userID int64) ([]core.Client, error) {
	return s.store.ListClients(ctx, userID)
}

func (s storeSnapshot) FetchProjects(ctx context.Context, userID int64) ([]core.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

func (s storeSnapshot) FetchInvoices(ctx context.Context, userID int64) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx, userID)
}

func (s storeSnapshot) FetchUserPlan(ctx context.Context, userID int64) (core.PlanType, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Plan, nil
}
