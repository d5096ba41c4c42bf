package http

import (
	"net/http"

	"freelance/internal/core"
	"freelance/internal/payments"
)

type invoiceRequest struct {
	ProjectID   int64      `json:"project_id"`
	Number      string     `json:"invoice_number"`
	IssueDate   core.Date  `json:"issue_date"`
	DueDate     core.Date  `json:"due_date"`
	Amount      core.Money `json:"amount"`
	PaymentLink string     `json:"payment_link"`
	Status      string     `json:"status"`
}

// apply copies the request onto inv. An empty status leaves inv unchanged.
func (req invoiceRequest) apply(inv *core.Invoice) error {
	inv.ProjectID = req.ProjectID
	inv.Number = req.Number
	inv.IssueDate = req.IssueDate
	inv.DueDate = req.DueDate
	inv.Amount = req.Amount
	inv.PaymentLink = req.PaymentLink
	if req.Status != "" {
		st, err := core.ParseInvoiceStatus(req.Status)
		if err != nil {
			return err
		}
		inv.Status = st
	}
	return nil
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.svc.Invoices.List(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		s.writeServiceError(r.Context(), w, "list_invoices", err)
		return
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv := core.Invoice{UserID: userIDFrom(r.Context())}
	if err := req.apply(&inv); err != nil {
		s.writeServiceError(r.Context(), w, "create_invoice", err)
		return
	}
	created, err := s.svc.Invoices.Create(r.Context(), inv)
	if err != nil {
		s.writeServiceError(r.Context(), w, "create_invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := s.svc.Invoices.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(r.Context(), w, "get_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req invoiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inv, err := s.svc.Invoices.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(r.Context(), w, "update_invoice", err)
		return
	}
	if err := req.apply(&inv); err != nil {
		s.writeServiceError(r.Context(), w, "update_invoice", err)
		return
	}
	updated, err := s.svc.Invoices.Update(r.Context(), inv)
	if err != nil {
		s.writeServiceError(r.Context(), w, "update_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.svc.Invoices.Delete(r.Context(), userIDFrom(r.Context()), id); err != nil {
		s.writeServiceError(r.Context(), w, "delete_invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleInvoiceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := s.svc.Invoices.ToggleStatus(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		s.writeServiceError(r.Context(), w, "toggle_invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (s *Server) handleCreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Gateway string `json:"gateway"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	gateway, err := payments.ParseGateway(req.Gateway)
	if err != nil {
		s.writeServiceError(r.Context(), w, "payment_link", err)
		return
	}
	inv, err := s.svc.Invoices.CreatePaymentLink(r.Context(), userIDFrom(r.Context()), id, gateway)
	if err != nil {
		s.writeServiceError(r.Context(), w, "payment_link", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payment_link": inv.PaymentLink,
		"invoice":      inv,
	})
}
