package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"freelance/internal/log"
	"freelance/internal/middleware/ratelimit"
	"freelance/internal/payments"
	"freelance/internal/ports"
	"freelance/internal/services"
	"freelance/internal/storage/memory"
)

const testFormURL = "https://pay.example/epay/main"

type testAPI struct {
	t   *testing.T
	srv *Server
}

func newTestAPI(t *testing.T, rl ratelimit.Config) *testAPI {
	t.Helper()
	store := memory.New()
	logger := log.Discard()
	links := payments.NewRegistry(payments.NewEsewa(payments.EsewaConfig{
		ProductCode: "EPAYTEST",
		SecretKey:   "secret",
		FormURL:     testFormURL,
		SuccessURL:  "https://app.example/paid",
		FailureURL:  "https://app.example/failed",
	}))
	svc := Services{
		Auth:      services.NewAuthService(store, "test-secret", time.Hour, logger),
		Clients:   services.NewClientService(store, logger),
		Projects:  services.NewProjectService(store),
		Invoices:  services.NewInvoiceService(store, links, nil, logger),
		Dashboard: services.NewDashboardService(ports.SnapshotFromStore(store), nil, logger),
	}
	srv := NewServer(Config{Addr: ":0", RateLimit: rl}, svc, store, logger)
	t.Cleanup(func() { srv.limiter.Stop() })
	return &testAPI{t: t, srv: srv}
}

func generousLimit() ratelimit.Config {
	return ratelimit.Config{RequestsPerMinute: 6000, Burst: 1000}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) register(email string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/auth/register", "", map[string]string{"email": email, "password": "correct-horse"})
	if rec.Code != http.StatusCreated {
		a.t.Fatalf("register %s: status %d body %s", email, rec.Code, rec.Body)
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(a.t, rec, &resp)
	return resp.Token
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body)
	}
}

func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) errorResponse {
	t.Helper()
	expectStatus(t, rec, status)
	var resp errorResponse
	decode(t, rec, &resp)
	if resp.Error != code {
		t.Fatalf("error = %q, want %q", resp.Error, code)
	}
	return resp
}

func TestHealthAndReady(t *testing.T) {
	a := newTestAPI(t, generousLimit())

	rec := a.do(http.MethodGet, "/healthz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}

	rec = a.do(http.MethodGet, "/readyz", "", nil)
	expectStatus(t, rec, http.StatusOK)
	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	decode(t, rec, &ready)
	if ready.Status != "ready" || ready.Checks["store"] != "ok" {
		t.Errorf("ready = %+v", ready)
	}

	expectError(t, a.do(http.MethodGet, "/nope", "", nil), http.StatusNotFound, "not_found")
}

func TestAuthFlow(t *testing.T) {
	a := newTestAPI(t, generousLimit())

	token := a.register("ana@example.com")

	rec := a.do(http.MethodGet, "/me", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var me struct {
		Email string `json:"email"`
		Name  string `json:"name"`
		Plan  string `json:"plan"`
		Hash  string `json:"password_hash"`
	}
	decode(t, rec, &me)
	if me.Email != "ana@example.com" || me.Name != "ana" || me.Plan != "Free" || me.Hash != "" {
		t.Errorf("me = %+v", me)
	}

	expectError(t, a.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "ana@example.com", "password": "correct-horse"}),
		http.StatusConflict, "conflict")

	weak := expectError(t, a.do(http.MethodPost, "/auth/register", "", map[string]string{"email": "bo@example.com", "password": "short"}),
		http.StatusUnprocessableEntity, "validation_failed")
	if details, _ := weak.Details.(map[string]any); details["password"] == nil {
		t.Errorf("details = %v, want password entry", weak.Details)
	}

	expectError(t, a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "wrong-password"}),
		http.StatusUnauthorized, "unauthorized")
	expectError(t, a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "nobody@example.com", "password": "correct-horse"}),
		http.StatusUnauthorized, "unauthorized")

	rec = a.do(http.MethodPost, "/auth/login", "", map[string]string{"email": "ana@example.com", "password": "correct-horse"})
	expectStatus(t, rec, http.StatusOK)

	expectError(t, a.do(http.MethodGet, "/me", "", nil), http.StatusUnauthorized, "unauthorized")
	expectError(t, a.do(http.MethodGet, "/me", "not.a.jwt", nil), http.StatusUnauthorized, "unauthorized")
	expectError(t, a.do(http.MethodPost, "/auth/login", "", "{not json"), http.StatusBadRequest, "invalid_json")
}

func TestClientPlanLimit(t *testing.T) {
	a := newTestAPI(t, generousLimit())
	token := a.register("ana@example.com")

	for i := 1; i <= 3; i++ {
		rec := a.do(http.MethodPost, "/clients", token, map[string]string{
			"name":  fmt.Sprintf("Client %d", i),
			"email": fmt.Sprintf("c%d@example.com", i),
		})
		expectStatus(t, rec, http.StatusCreated)
	}

	expectError(t, a.do(http.MethodPost, "/clients", token, map[string]string{"name": "Client 4", "email": "c4@example.com"}),
		http.StatusForbidden, "plan_limit_reached")

	rec := a.do(http.MethodGet, "/dashboard/plan", token, nil)
	expectStatus(t, rec, http.StatusOK)
	var limits struct {
		CanAddClient   bool `json:"can_add_client"`
		CurrentClients int  `json:"current_clients"`
	}
	decode(t, rec, &limits)
	if limits.CanAddClient || limits.CurrentClients != 3 {
		t.Errorf("limits = %+v", limits)
	}

	expectStatus(t, a.do(http.MethodPut, "/me/plan", token, map[string]string{"plan": "pro"}), http.StatusOK)
	expectStatus(t, a.do(http.MethodPost, "/clients", token, map[string]string{"name": "Client 4", "email": "c4@example.com"}), http.StatusCreated)

	expectError(t, a.do(http.MethodPut, "/me/plan", token, map[string]string{"plan": "Enterprise"}),
		http.StatusUnprocessableEntity, "validation_failed")
}

func TestClientCRUDAndIsolation(t *testing.T) {
	a := newTestAPI(t, generousLimit())
	ana := a.register("ana@example.com")
	bo := a.register("bo@example.com")

	bad := expectError(t, a.do(http.MethodPost, "/clients", ana, map[string]string{"name": "Acme", "email": "not-an-email"}),
		http.StatusUnprocessableEntity, "validation_failed")
	if details, _ := bad.Details.(map[string]any); details["email"] == nil {
		t.Errorf("details = %v, want email entry", bad.Details)
	}

	rec := a.do(http.MethodPost, "/clients", ana, map[string]string{"name": "Acme", "email": "ops@acme.example"})
	expectStatus(t, rec, http.StatusCreated)
	var c struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	decode(t, rec, &c)
	path := fmt.Sprintf("/clients/%d", c.ID)

	expectError(t, a.do(http.MethodGet, path, bo, nil), http.StatusNotFound, "not_found")
	expectError(t, a.do(http.MethodDelete, path, bo, nil), http.StatusNotFound, "not_found")

	rec = a.do(http.MethodPut, path, ana, map[string]string{"name": "Acme Ltd", "email": "ops@acme.example"})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &c)
	if c.Name != "Acme Ltd" {
		t.Errorf("name = %q", c.Name)
	}

	rec = a.do(http.MethodGet, "/clients", bo, nil)
	expectStatus(t, rec, http.StatusOK)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("other user's list = %s, want []", rec.Body)
	}

	expectStatus(t, a.do(http.MethodDelete, path, ana, nil), http.StatusNoContent)
	expectError(t, a.do(http.MethodGet, path, ana, nil), http.StatusNotFound, "not_found")
	expectError(t, a.do(http.MethodGet, "/clients/abc", ana, nil), http.StatusNotFound, "not_found")
}

type invoiceJSON struct {
	ID          int64  `json:"id"`
	Number      string `json:"invoice_number"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	PaymentLink string `json:"payment_link"`
	ProjectName string `json:"project_name"`
	ClientName  string `json:"client_name"`
}

func seedProject(t *testing.T, a *testAPI, token string) int64 {
	t.Helper()
	rec := a.do(http.MethodPost, "/clients", token, map[string]string{"name": "Acme", "email": "ops@acme.example"})
	expectStatus(t, rec, http.StatusCreated)
	var c struct {
		ID int64 `json:"id"`
	}
	decode(t, rec, &c)

	rec = a.do(http.MethodPost, "/projects", token, map[string]any{"client_id": c.ID, "name": "Website", "deadline": "2024-04-30"})
	expectStatus(t, rec, http.StatusCreated)
	var p struct {
		ID            int64  `json:"id"`
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
		ClientName    string `json:"client_name"`
	}
	decode(t, rec, &p)
	if p.Status != "Pending" || p.PaymentStatus != "Not Paid" || p.ClientName != "Acme" {
		t.Fatalf("project = %+v", p)
	}
	return p.ID
}

func TestProjectStatuses(t *testing.T) {
	a := newTestAPI(t, generousLimit())
	ana := a.register("ana@example.com")
	bo := a.register("bo@example.com")
	projectID := seedProject(t, a, ana)
	path := fmt.Sprintf("/projects/%d", projectID)

	rec := a.do(http.MethodPatch, path+"/status", ana, map[string]string{"status": "in_progress"})
	expectStatus(t, rec, http.StatusOK)
	var p struct {
		ClientID      int64  `json:"client_id"`
		Status        string `json:"status"`
		PaymentStatus string `json:"payment_status"`
	}
	decode(t, rec, &p)
	if p.Status != "In Progress" {
		t.Errorf("status = %q", p.Status)
	}

	rec = a.do(http.MethodPatch, path+"/payment-status", ana, map[string]string{"status": "Partial"})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &p)
	if p.PaymentStatus != "Partial" || p.Status != "In Progress" {
		t.Errorf("project = %+v", p)
	}

	expectError(t, a.do(http.MethodPatch, path+"/status", ana, map[string]string{"status": "Archived"}),
		http.StatusUnprocessableEntity, "validation_failed")
	expectError(t, a.do(http.MethodPatch, path+"/status", bo, map[string]string{"status": "Completed"}),
		http.StatusNotFound, "not_found")

	// A project may not point at someone else's client.
	expectError(t, a.do(http.MethodPost, "/projects", bo, map[string]any{"client_id": p.ClientID, "name": "Steal"}),
		http.StatusUnprocessableEntity, "validation_failed")

	rec = a.do(http.MethodPut, path, ana, map[string]any{"client_id": p.ClientID, "name": "Website v2"})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &p)
	if p.Status != "In Progress" {
		t.Errorf("PUT without status changed it to %q", p.Status)
	}
}

func TestInvoiceLifecycle(t *testing.T) {
	a := newTestAPI(t, generousLimit())
	ana := a.register("ana@example.com")
	projectID := seedProject(t, a, ana)

	rec := a.do(http.MethodPost, "/invoices", ana, map[string]any{
		"project_id": projectID,
		"issue_date": "2024-03-01",
		"due_date":   "2024-03-31",
		"amount":     "1500.50",
	})
	expectStatus(t, rec, http.StatusCreated)
	var inv invoiceJSON
	decode(t, rec, &inv)
	if inv.Number != "INV-2024-0001" || inv.Status != "Unpaid" || inv.Amount != "1500.50" {
		t.Fatalf("invoice = %+v", inv)
	}
	path := fmt.Sprintf("/invoices/%d", inv.ID)

	expectError(t, a.do(http.MethodPost, "/invoices", ana, map[string]any{
		"project_id": projectID, "due_date": "2024-03-31", "amount": "-5",
	}), http.StatusUnprocessableEntity, "validation_failed")

	rec = a.do(http.MethodPost, path+"/toggle-status", ana, nil)
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &inv)
	if inv.Status != "Paid" {
		t.Fatalf("status after toggle = %q", inv.Status)
	}

	expectError(t, a.do(http.MethodPost, path+"/payment-link", ana, map[string]string{"gateway": "esewa"}),
		http.StatusConflict, "invoice_already_paid")

	expectStatus(t, a.do(http.MethodPost, path+"/toggle-status", ana, nil), http.StatusOK)

	rec = a.do(http.MethodPost, path+"/payment-link", ana, map[string]string{"gateway": "esewa"})
	expectStatus(t, rec, http.StatusOK)
	var linkResp struct {
		PaymentLink string      `json:"payment_link"`
		Invoice     invoiceJSON `json:"invoice"`
	}
	decode(t, rec, &linkResp)
	if !strings.HasPrefix(linkResp.PaymentLink, testFormURL+"?") {
		t.Errorf("link = %q", linkResp.PaymentLink)
	}
	if linkResp.Invoice.PaymentLink != linkResp.PaymentLink {
		t.Error("link not stored on invoice")
	}

	expectError(t, a.do(http.MethodPost, path+"/payment-link", ana, map[string]string{"gateway": "khalti"}),
		http.StatusServiceUnavailable, "gateway_not_configured")
	expectError(t, a.do(http.MethodPost, path+"/payment-link", ana, map[string]string{"gateway": "paypal"}),
		http.StatusBadRequest, "unknown_gateway")

	rec = a.do(http.MethodPut, path, ana, map[string]any{
		"project_id": projectID,
		"issue_date": "2024-03-01",
		"due_date":   "2024-04-15",
		"amount":     "1600",
	})
	expectStatus(t, rec, http.StatusOK)
	decode(t, rec, &inv)
	if inv.Number != "INV-2024-0001" || inv.Amount != "1600.00" || inv.Status != "Unpaid" {
		t.Errorf("updated invoice = %+v", inv)
	}

	expectStatus(t, a.do(http.MethodDelete, path, ana, nil), http.StatusNoContent)
	expectError(t, a.do(http.MethodGet, path, ana, nil), http.StatusNotFound, "not_found")
}

func TestDashboardStats(t *testing.T) {
	a := newTestAPI(t, generousLimit())
	ana := a.register("ana@example.com")
	projectID := seedProject(t, a, ana)

	for _, body := range []map[string]any{
		{"project_id": projectID, "issue_date": "2024-03-05", "due_date": "2024-03-20", "amount": "1000", "status": "Paid"},
		{"project_id": projectID, "issue_date": "2024-02-05", "due_date": "2024-02-20", "amount": "800", "status": "Paid"},
		{"project_id": projectID, "issue_date": "2024-03-01", "due_date": "2024-03-10", "amount": "1234.50"},
	} {
		expectStatus(t, a.do(http.MethodPost, "/invoices", ana, body), http.StatusCreated)
	}

	rec := a.do(http.MethodGet, "/dashboard/stats?asOf=2024-03-15T12:00:00Z", ana, nil)
	expectStatus(t, rec, http.StatusOK)
	var d struct {
		Stats struct {
			TotalClients  int    `json:"total_clients"`
			TotalIncome   string `json:"total_income"`
			MonthlyIncome string `json:"monthly_income"`
			TotalOverdue  string `json:"total_overdue"`
			IncomeGrowth  string `json:"income_growth"`
		} `json:"stats"`
		Display struct {
			TotalOverdue string `json:"total_overdue"`
		} `json:"display"`
	}
	decode(t, rec, &d)
	if d.Stats.TotalClients != 1 || d.Stats.TotalIncome != "1800.00" || d.Stats.MonthlyIncome != "1000.00" {
		t.Errorf("stats = %+v", d.Stats)
	}
	if d.Stats.TotalOverdue != "1234.50" || d.Display.TotalOverdue != "Rs. 1,234.50" {
		t.Errorf("overdue = %q / %q", d.Stats.TotalOverdue, d.Display.TotalOverdue)
	}
	if d.Stats.IncomeGrowth != "+25%" {
		t.Errorf("growth = %q, want +25%%", d.Stats.IncomeGrowth)
	}

	for _, q := range []string{"2024-03-15T17:45:00+05:45", "2024-03-15T17:45:00%2B05:45"} {
		rec := a.do(http.MethodGet, "/dashboard/stats?asOf="+q, ana, nil)
		expectStatus(t, rec, http.StatusOK)
		decode(t, rec, &d)
		if d.Stats.TotalOverdue != "1234.50" || d.Stats.MonthlyIncome != "1000.00" {
			t.Errorf("asOf=%s: stats = %+v", q, d.Stats)
		}
	}

	expectError(t, a.do(http.MethodGet, "/dashboard/stats?asOf=yesterday", ana, nil), http.StatusBadRequest, "invalid_query")
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, ratelimit.Config{RequestsPerMinute: 1, Burst: 2})

	expectStatus(t, a.do(http.MethodGet, "/healthz", "", nil), http.StatusOK)
	expectStatus(t, a.do(http.MethodGet, "/healthz", "", nil), http.StatusOK)
	rec := a.do(http.MethodGet, "/healthz", "", nil)
	expectError(t, rec, http.StatusTooManyRequests, "rate_limited")
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
}
