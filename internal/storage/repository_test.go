package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"freelance/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func seedUser(t *testing.T, r *SQLiteRepository, email string) core.User {
	t.Helper()
	u, err := r.CreateUser(context.Background(), core.User{Email: email, Name: "Test", PasswordHash: "x", Plan: core.PlanFree})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second RunMigrations: %v", err)
	}
	v, dirty, err := MigrationVersion(path)
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if v != 2 || dirty {
		t.Fatalf("version = %d dirty = %v", v, dirty)
	}
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	u := seedUser(t, r, "ana@example.com")
	if u.ID == 0 || u.Plan != core.PlanFree || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected user: %+v", u)
	}

	got, err := r.GetUserByEmail(ctx, "ANA@example.com")
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}

	_, err = r.CreateUser(ctx, core.User{Email: "Ana@Example.com", Name: "Dup", PasswordHash: "x", Plan: core.PlanFree})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	pro, err := r.UpdateUserPlan(ctx, u.ID, core.PlanPro)
	if err != nil || pro.Plan != core.PlanPro {
		t.Fatalf("UpdateUserPlan = %+v, %v", pro, err)
	}
	if _, err := r.UpdateUserPlan(ctx, 999, core.PlanPro); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClientsAreScopedByOwner(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@example.com")
	bob := seedUser(t, r, "bob@example.com")

	c, err := r.CreateClient(ctx, core.Client{UserID: alice.ID, Name: "Acme", Email: "ops@acme.test", Phone: "123"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	if c.ID == 0 || c.Phone != "123" {
		t.Fatalf("unexpected client: %+v", c)
	}

	if _, err := r.GetClient(ctx, bob.ID, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user's client visible: %v", err)
	}
	if err := r.DeleteClient(ctx, bob.ID, c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other user deleted client: %v", err)
	}

	c.Name = "Acme Corp"
	updated, err := r.UpdateClient(ctx, c)
	if err != nil || updated.Name != "Acme Corp" {
		t.Fatalf("UpdateClient = %+v, %v", updated, err)
	}

	n, err := r.CountClients(ctx, alice.ID)
	if err != nil || n != 1 {
		t.Fatalf("CountClients = %d, %v", n, err)
	}
	list, err := r.ListClients(ctx, bob.ID)
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("ListClients(bob) = %v, %v", list, err)
	}
}

func seedInvoiceGraph(t *testing.T, r *SQLiteRepository, userID int64) (core.Client, core.Project) {
	t.Helper()
	ctx := context.Background()
	c, err := r.CreateClient(ctx, core.Client{UserID: userID, Name: "Acme", Email: "ops@acme.test"})
	if err != nil {
		t.Fatalf("CreateClient: %v", err)
	}
	p, err := r.CreateProject(ctx, core.Project{
		UserID: userID, ClientID: c.ID, Name: "Website",
		Deadline: core.NewDate(2024, 6, 30),
		Status:   core.ProjectInProgress, PaymentStatus: core.PaymentNotPaid,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	return c, p
}

func TestProjectsRejectForeignClient(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@example.com")
	bob := seedUser(t, r, "bob@example.com")
	c, p := seedInvoiceGraph(t, r, alice.ID)

	if p.ClientName != "Acme" || p.Deadline != core.NewDate(2024, 6, 30) {
		t.Fatalf("unexpected project: %+v", p)
	}

	_, err := r.CreateProject(ctx, core.Project{UserID: bob.ID, ClientID: c.ID, Name: "Steal", Status: core.ProjectPending, PaymentStatus: core.PaymentNotPaid})
	if !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}

	p.Status = core.ProjectCompleted
	p.Deadline = core.Date{}
	updated, err := r.UpdateProject(ctx, p)
	if err != nil || updated.Status != core.ProjectCompleted || !updated.Deadline.IsEmpty() {
		t.Fatalf("UpdateProject = %+v, %v", updated, err)
	}
}

func TestInvoicesLifecycleAndCascade(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@example.com")
	c, p := seedInvoiceGraph(t, r, alice.ID)

	inv, err := r.CreateInvoice(ctx, core.Invoice{
		UserID: alice.ID, ProjectID: p.ID, Number: "INV-2024-0001",
		IssueDate: core.NewDate(2024, 3, 1), DueDate: core.NewDate(2024, 3, 15),
		Amount: core.Money{Cents: 150000}, Status: core.InvoiceUnpaid,
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.ProjectName != "Website" || inv.ClientName != "Acme" || inv.Amount.Cents != 150000 {
		t.Fatalf("unexpected invoice: %+v", inv)
	}

	n, err := r.LastInvoiceSequence(ctx, alice.ID, 2024)
	if err != nil || n != 1 {
		t.Fatalf("LastInvoiceSequence = %d, %v", n, err)
	}

	overdue, err := r.ListOverdueInvoices(ctx, time.Date(2024, 3, 16, 9, 0, 0, 0, time.UTC))
	if err != nil || len(overdue) != 1 {
		t.Fatalf("ListOverdueInvoices = %v, %v", overdue, err)
	}
	overdue, err = r.ListOverdueInvoices(ctx, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	if err != nil || len(overdue) != 0 {
		t.Fatalf("due exactly at asOf listed as overdue: %v, %v", overdue, err)
	}
	overdue, err = r.ListOverdueInvoices(ctx, time.Date(2024, 3, 15, 0, 0, 0, 1000, time.UTC))
	if err != nil || len(overdue) != 1 {
		t.Fatalf("due 1µs before asOf not listed: %v, %v", overdue, err)
	}

	first, err := r.MarkReminded(ctx, inv.ID, core.NewDate(2024, 3, 16))
	if err != nil || !first {
		t.Fatalf("MarkReminded first = %v, %v", first, err)
	}
	again, err := r.MarkReminded(ctx, inv.ID, core.NewDate(2024, 3, 16))
	if err != nil || again {
		t.Fatalf("MarkReminded again = %v, %v", again, err)
	}

	inv.Status = core.InvoicePaid
	inv.PaymentLink = "https://pay.example/1"
	updated, err := r.UpdateInvoice(ctx, inv)
	if err != nil || updated.Status != core.InvoicePaid || updated.PaymentLink == "" {
		t.Fatalf("UpdateInvoice = %+v, %v", updated, err)
	}

	if err := r.DeleteClient(ctx, alice.ID, c.ID); err != nil {
		t.Fatalf("DeleteClient: %v", err)
	}
	if _, err := r.GetProject(ctx, alice.ID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("project survived client delete: %v", err)
	}
	invoices, err := r.ListInvoices(ctx, alice.ID)
	if err != nil || len(invoices) != 0 {
		t.Fatalf("invoices survived cascade: %v, %v", invoices, err)
	}
}

func TestNegativeAmountRejectedBySchema(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@example.com")
	_, p := seedInvoiceGraph(t, r, alice.ID)

	_, err := r.CreateInvoice(ctx, core.Invoice{
		UserID: alice.ID, ProjectID: p.ID,
		IssueDate: core.NewDate(2024, 3, 1), DueDate: core.NewDate(2024, 3, 15),
		Amount: core.Money{Cents: -1}, Status: core.InvoiceUnpaid,
	})
	if err == nil {
		t.Fatal("expected CHECK constraint failure")
	}
}

func TestOverdueCutoff(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)
	tests := []struct {
		name string
		asOf time.Time
		want core.Date
	}{
		{"midnight", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), core.NewDate(2024, 3, 15)},
		{"just after midnight", time.Date(2024, 3, 15, 0, 0, 0, 1000, time.UTC), core.NewDate(2024, 3, 16)},
		{"late evening", time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC), core.NewDate(2024, 3, 16)},
		{"offset zone", time.Date(2024, 3, 16, 3, 0, 0, 0, kathmandu), core.NewDate(2024, 3, 16)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := overdueCutoff(tt.asOf); got != tt.want {
				t.Errorf("overdueCutoff(%v) = %v, want %v", tt.asOf, got, tt.want)
			}
		})
	}
}

func TestCreateClientCapped(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@example.com")

	if _, err := r.CreateClientCapped(ctx, core.Client{UserID: alice.ID, Name: "First", Email: "a@acme.test"}, 1); err != nil {
		t.Fatalf("first capped create: %v", err)
	}
	_, err := r.CreateClientCapped(ctx, core.Client{UserID: alice.ID, Name: "Second", Email: "b@acme.test"}, 1)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if _, err := r.CreateClientCapped(ctx, core.Client{UserID: alice.ID, Name: "Third", Email: "c@acme.test"}, -1); err != nil {
		t.Fatalf("uncapped create: %v", err)
	}
	if n, _ := r.CountClients(ctx, alice.ID); n != 2 {
		t.Fatalf("CountClients = %d, want 2", n)
	}
}

func TestLastInvoiceSequence(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo(t)
	alice := seedUser(t, r, "alice@example.com")
	bob := seedUser(t, r, "bob@example.com")
	_, p := seedInvoiceGraph(t, r, alice.ID)
	_, bp := seedInvoiceGraph(t, r, bob.ID)

	create := func(userID, projectID int64, number string) {
		t.Helper()
		_, err := r.CreateInvoice(ctx, core.Invoice{
			UserID: userID, ProjectID: projectID, Number: number,
			IssueDate: core.NewDate(2024, 3, 1), DueDate: core.NewDate(2024, 3, 31),
			Amount: core.Money{Cents: 100}, Status: core.InvoiceUnpaid,
		})
		if err != nil {
			t.Fatalf("CreateInvoice %q: %v", number, err)
		}
	}
	for _, number := range []string{"INV-2024-0003", "INV-2024-0010", "inv-2024-0099", "INV-2024-12x", "INV-2023-0050", "ACME-7"} {
		create(alice.ID, p.ID, number)
	}
	create(bob.ID, bp.ID, "INV-2024-0500")

	n, err := r.LastInvoiceSequence(ctx, alice.ID, 2024)
	if err != nil || n != 10 {
		t.Fatalf("LastInvoiceSequence = %d, %v; want 10", n, err)
	}
	if n, _ := r.LastInvoiceSequence(ctx, alice.ID, 2025); n != 0 {
		t.Fatalf("LastInvoiceSequence(2025) = %d, want 0", n)
	}
}
