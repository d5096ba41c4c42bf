package analytics

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"freelance/internal/core"
)

var asOf = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

func inv(id int64, cents int64, status core.InvoiceStatus, issue, due core.Date) core.Invoice {
	return core.Invoice{
		ID:        id,
		ProjectID: 1,
		IssueDate: issue,
		DueDate:   due,
		Amount:    core.Money{Cents: cents},
		Status:    status,
	}
}

func sampleSnapshot() ([]core.Client, []core.Project, []core.Invoice) {
	clients := []core.Client{{ID: 1, Name: "Acme"}, {ID: 2, Name: "Globex"}}
	projects := []core.Project{
		{ID: 1, ClientID: 1, Status: core.ProjectCompleted, PaymentStatus: core.PaymentPaid},
		{ID: 2, ClientID: 1, Status: core.ProjectInProgress, PaymentStatus: core.PaymentPartial},
		{ID: 3, ClientID: 2, Status: core.ProjectPending, PaymentStatus: core.PaymentNotPaid},
	}
	invoices := []core.Invoice{
		inv(1, 500000, core.InvoicePaid, core.NewDate(2024, 3, 2), core.NewDate(2024, 3, 20)),
		inv(2, 400000, core.InvoicePaid, core.NewDate(2024, 2, 10), core.NewDate(2024, 2, 25)),
		inv(3, 120000, core.InvoiceUnpaid, core.NewDate(2024, 2, 1), core.NewDate(2024, 3, 1)),
		inv(4, 80000, core.InvoiceUnpaid, core.NewDate(2024, 3, 10), core.NewDate(2024, 4, 10)),
		inv(5, 30000, core.InvoicePaid, core.NewDate(2023, 12, 5), core.NewDate(2023, 12, 20)),
		inv(6, 10000, core.InvoicePaid, core.NewDate(2024, 1, 5), core.NewDate(2024, 1, 20)),
	}
	return clients, projects, invoices
}

func mustCompute(t *testing.T, c []core.Client, p []core.Project, i []core.Invoice, at time.Time) Stats {
	t.Helper()
	s, err := ComputeDashboardStats(c, p, i, at)
	if err != nil {
		t.Fatalf("ComputeDashboardStats: %v", err)
	}
	return s
}

func TestComputeDashboardStatsSample(t *testing.T) {
	clients, projects, invoices := sampleSnapshot()
	s := mustCompute(t, clients, projects, invoices, asOf)

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"TotalClients", int64(s.TotalClients), 2},
		{"TotalProjects", int64(s.TotalProjects), 3},
		{"CompletedProjects", int64(s.CompletedProjects), 1},
		{"InProgressProjects", int64(s.InProgressProjects), 1},
		{"TotalIncome", s.TotalIncome.Cents, 940000},
		{"TotalPending", s.TotalPending.Cents, 200000},
		{"MonthlyIncome", s.MonthlyIncome.Cents, 500000},
		{"LastMonthIncome", s.LastMonthIncome.Cents, 400000},
		{"TotalOverdue", s.TotalOverdue.Cents, 120000},
		{"TotalInvoices", int64(s.TotalInvoices), 6},
		{"PaidInvoicesCount", int64(s.PaidInvoicesCount), 4},
		{"UnpaidInvoicesCount", int64(s.UnpaidInvoicesCount), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
		}
	}
	if s.IncomeGrowth != "+25%" {
		t.Errorf("IncomeGrowth = %q, want +25%%", s.IncomeGrowth)
	}

	var ids []int64
	for _, r := range s.RecentInvoices {
		ids = append(ids, r.ID)
	}
	if want := []int64{4, 1, 2, 3, 6}; !reflect.DeepEqual(ids, want) {
		t.Errorf("RecentInvoices ids = %v, want %v", ids, want)
	}
}

func TestCountsAndSumsPartitionInvoices(t *testing.T) {
	clients, projects, invoices := sampleSnapshot()
	s := mustCompute(t, clients, projects, invoices, asOf)

	if s.PaidInvoicesCount+s.UnpaidInvoicesCount != s.TotalInvoices {
		t.Fatalf("paid %d + unpaid %d != total %d", s.PaidInvoicesCount, s.UnpaidInvoicesCount, s.TotalInvoices)
	}
	var sum int64
	for _, i := range invoices {
		sum += i.Amount.Cents
	}
	if s.TotalIncome.Cents+s.TotalPending.Cents != sum {
		t.Fatalf("income %d + pending %d != %d", s.TotalIncome.Cents, s.TotalPending.Cents, sum)
	}
	if s.TotalOverdue.Cents > s.TotalPending.Cents {
		t.Fatalf("overdue %d exceeds pending %d", s.TotalOverdue.Cents, s.TotalPending.Cents)
	}
}

func TestComputeIsIdempotent(t *testing.T) {
	clients, projects, invoices := sampleSnapshot()
	a := mustCompute(t, clients, projects, invoices, asOf)
	b := mustCompute(t, clients, projects, invoices, asOf)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("results differ:\n%+v\n%+v", a, b)
	}
}

func TestComputeDoesNotReorderInput(t *testing.T) {
	clients, projects, invoices := sampleSnapshot()
	before := make([]core.Invoice, len(invoices))
	copy(before, invoices)
	mustCompute(t, clients, projects, invoices, asOf)
	if !reflect.DeepEqual(before, invoices) {
		t.Fatalf("input slice was modified")
	}
}

func TestAddingPaidInvoiceThisMonthIsMonotonic(t *testing.T) {
	clients, projects, invoices := sampleSnapshot()
	before := mustCompute(t, clients, projects, invoices, asOf)

	extra := inv(99, 2500, core.InvoicePaid, core.NewDate(2024, 3, 14), core.NewDate(2024, 3, 30))
	after := mustCompute(t, clients, projects, append(invoices, extra), asOf)

	if after.MonthlyIncome.Cents != before.MonthlyIncome.Cents+2500 {
		t.Errorf("MonthlyIncome %d -> %d", before.MonthlyIncome.Cents, after.MonthlyIncome.Cents)
	}
	if after.TotalIncome.Cents != before.TotalIncome.Cents+2500 {
		t.Errorf("TotalIncome %d -> %d", before.TotalIncome.Cents, after.TotalIncome.Cents)
	}
	if after.TotalPending != before.TotalPending {
		t.Errorf("TotalPending changed %d -> %d", before.TotalPending.Cents, after.TotalPending.Cents)
	}
}

func TestOverdueBoundary(t *testing.T) {
	due := core.NewDate(2024, 3, 15)
	invoices := []core.Invoice{inv(1, 1000, core.InvoiceUnpaid, core.NewDate(2024, 3, 1), due)}

	at := due.Time
	if s := mustCompute(t, nil, nil, invoices, at); s.TotalOverdue.Cents != 0 {
		t.Fatalf("due exactly at asOf counted as overdue: %d", s.TotalOverdue.Cents)
	}
	if s := mustCompute(t, nil, nil, invoices, at.Add(-time.Microsecond)); s.TotalOverdue.Cents != 0 {
		t.Fatalf("due after asOf counted as overdue: %d", s.TotalOverdue.Cents)
	}
	if s := mustCompute(t, nil, nil, invoices, at.Add(time.Microsecond)); s.TotalOverdue.Cents != 1000 {
		t.Fatalf("due 1µs before asOf not overdue: %d", s.TotalOverdue.Cents)
	}
	if s := mustCompute(t, nil, nil, invoices, at.Add(23*time.Hour)); s.TotalOverdue.Cents != 1000 {
		t.Fatalf("due earlier the same day not overdue: %d", s.TotalOverdue.Cents)
	}
}

func TestEmptyUser(t *testing.T) {
	s := mustCompute(t, nil, nil, nil, asOf)
	want := Stats{IncomeGrowth: "+0%", RecentInvoices: []core.Invoice{}}
	if !reflect.DeepEqual(s, want) {
		t.Fatalf("got %+v, want %+v", s, want)
	}
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r, ok := decoded["recent_invoices"].([]any); !ok || len(r) != 0 {
		t.Fatalf("recent_invoices = %v, want []", decoded["recent_invoices"])
	}
}

func TestSingleOverdueInvoice(t *testing.T) {
	today := core.NewDate(2024, 3, 15)
	invoices := []core.Invoice{inv(1, 100000, core.InvoiceUnpaid, today, core.NewDate(2024, 3, 14))}
	s := mustCompute(t, nil, nil, invoices, today.Time)
	if s.TotalPending.Cents != 100000 || s.TotalOverdue.Cents != 100000 || s.TotalIncome.Cents != 0 {
		t.Fatalf("pending=%d overdue=%d income=%d", s.TotalPending.Cents, s.TotalOverdue.Cents, s.TotalIncome.Cents)
	}
}

func TestPaidOutsideWindowGrowthIsZero(t *testing.T) {
	invoices := []core.Invoice{
		inv(1, 5000, core.InvoicePaid, core.NewDate(2023, 6, 1), core.NewDate(2023, 6, 10)),
	}
	s := mustCompute(t, nil, nil, invoices, asOf)
	if s.IncomeGrowth != "+0%" {
		t.Fatalf("IncomeGrowth = %q", s.IncomeGrowth)
	}
}

func TestJanuaryComparesWithPreviousDecember(t *testing.T) {
	jan := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
	invoices := []core.Invoice{
		inv(1, 20000, core.InvoicePaid, core.NewDate(2023, 12, 5), core.NewDate(2023, 12, 20)),
		inv(2, 10000, core.InvoicePaid, core.NewDate(2024, 1, 5), core.NewDate(2024, 1, 20)),
	}
	s := mustCompute(t, nil, nil, invoices, jan)
	if s.LastMonthIncome.Cents != 20000 || s.MonthlyIncome.Cents != 10000 {
		t.Fatalf("last=%d this=%d", s.LastMonthIncome.Cents, s.MonthlyIncome.Cents)
	}
	if s.IncomeGrowth != "-50%" {
		t.Fatalf("IncomeGrowth = %q, want -50%%", s.IncomeGrowth)
	}
}

func TestMonthBucketingUsesAsOfLocation(t *testing.T) {
	kathmandu := time.FixedZone("NPT", 5*3600+45*60)
	// 2024-02-29 20:00 UTC is already March 1st in Kathmandu.
	at := time.Date(2024, time.February, 29, 20, 0, 0, 0, time.UTC).In(kathmandu)
	invoices := []core.Invoice{inv(1, 7000, core.InvoicePaid, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 5))}
	s := mustCompute(t, nil, nil, invoices, at)
	if s.MonthlyIncome.Cents != 7000 {
		t.Fatalf("MonthlyIncome = %d, want 7000", s.MonthlyIncome.Cents)
	}
}

func TestRecentInvoicesStableOnTies(t *testing.T) {
	day := core.NewDate(2024, 3, 1)
	var invoices []core.Invoice
	for id := int64(1); id <= 7; id++ {
		invoices = append(invoices, inv(id, 100, core.InvoiceUnpaid, day, day))
	}
	s := mustCompute(t, nil, nil, invoices, asOf)
	if len(s.RecentInvoices) != RecentInvoicesLimit {
		t.Fatalf("len = %d", len(s.RecentInvoices))
	}
	for i, r := range s.RecentInvoices {
		if r.ID != int64(i+1) {
			t.Fatalf("position %d has id %d, want input order", i, r.ID)
		}
	}
}

func TestMalformedInputIsRejected(t *testing.T) {
	good := inv(1, 100, core.InvoiceUnpaid, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 2))
	cases := []struct {
		name     string
		projects []core.Project
		invoice  func(core.Invoice) core.Invoice
	}{
		{"negative amount", nil, func(i core.Invoice) core.Invoice { i.Amount.Cents = -1; return i }},
		{"missing issue date", nil, func(i core.Invoice) core.Invoice { i.IssueDate = core.Date{}; return i }},
		{"missing due date", nil, func(i core.Invoice) core.Invoice { i.DueDate = core.Date{}; return i }},
		{"unknown invoice status", nil, func(i core.Invoice) core.Invoice { i.Status = "Overdue"; return i }},
		{"unknown project status", []core.Project{{ID: 9, Status: "Archived"}}, func(i core.Invoice) core.Invoice { return i }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ComputeDashboardStats(nil, tc.projects, []core.Invoice{tc.invoice(good)}, asOf)
			if !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
