package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/payments"
	"freelance/internal/services"
	"freelance/internal/storage"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, details any) {
	writeJSON(w, status, errorResponse{Error: code, Details: details})
}

// fieldErrors maps validation sentinels to the request field they concern.
var fieldErrors = []struct {
	err   error
	field string
}{
	{core.ErrEmptyName, "name"},
	{core.ErrNameTooLong, "name"},
	{core.ErrEmptyEmail, "email"},
	{core.ErrInvalidEmail, "email"},
	{core.ErrPasswordTooWeak, "password"},
	{core.ErrMissingClient, "client_id"},
	{core.ErrMissingProject, "project_id"},
	{core.ErrNumberTooLong, "invoice_number"},
	{core.ErrNegativeAmount, "amount"},
	{core.ErrInvalidAmount, "amount"},
	{core.ErrLinkTooLong, "payment_link"},
	{core.ErrInvalidPlan, "plan"},
	{core.ErrInvalidStatus, "status"},
	{core.ErrMissingDate, "date"},
	{core.ErrInvalidDate, "date"},
	{core.ErrInvalidDay, "date"},
	{core.ErrInvalidMonth, "date"},
}

// validationDetails returns a field to message map, or nil if err is not a
// validation error.
func validationDetails(err error) map[string]string {
	for _, fe := range fieldErrors {
		if errors.Is(err, fe.err) {
			return map[string]string{fe.field: err.Error()}
		}
	}
	return nil
}

// writeServiceError translates service and storage errors to status codes.
// Anything unrecognised is logged and reported as 500.
func (s *Server) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, storage.ErrInvalidReference):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", map[string]string{"reference": "referenced record does not exist"})
	case errors.Is(err, services.ErrPlanLimitReached):
		writeError(w, http.StatusForbidden, "plan_limit_reached", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "unauthorized", nil)
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, services.ErrInvoiceAlreadyPaid):
		writeError(w, http.StatusConflict, "invoice_already_paid", nil)
	case errors.Is(err, payments.ErrUnknownGateway):
		writeError(w, http.StatusBadRequest, "unknown_gateway", err.Error())
	case errors.Is(err, payments.ErrGatewayNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "gateway_not_configured", err.Error())
	case errors.Is(err, payments.ErrGatewayRejected):
		writeError(w, http.StatusBadGateway, "gateway_rejected", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", nil)
	default:
		if details := validationDetails(err); details != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", details)
			return
		}
		log.NewStructuredLogger(s.logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, op, nil)
		writeError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}
