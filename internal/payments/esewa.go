package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"freelance/internal/core"
)

const esewaSignedFields = "total_amount,transaction_uuid,product_code"

type EsewaConfig struct {
	ProductCode string
	SecretKey   string
	FormURL     string
	SuccessURL  string
	FailureURL  string
}

// Esewa builds signed ePay v2 form links. No network call is made; the
// customer's browser posts the fields to eSewa.
type Esewa struct {
	cfg     EsewaConfig
	newUUID func() string
}

func NewEsewa(cfg EsewaConfig) *Esewa {
	return &Esewa{cfg: cfg, newUUID: func() string { return uuid.NewString() }}
}

func (e *Esewa) Gateway() Gateway { return GatewayEsewa }

func (e *Esewa) CreateLink(_ context.Context, inv core.Invoice) (string, error) {
	if e.cfg.SecretKey == "" || e.cfg.ProductCode == "" || e.cfg.FormURL == "" {
		return "", fmt.Errorf("%w: esewa", ErrGatewayNotConfigured)
	}
	fields := e.Fields(inv, e.newUUID())
	u, err := url.Parse(e.cfg.FormURL)
	if err != nil {
		return "", fmt.Errorf("parse esewa form url: %w", err)
	}
	u.RawQuery = fields.Encode()
	return u.String(), nil
}

// Fields returns the complete signed form for the invoice.
func (e *Esewa) Fields(inv core.Invoice, transactionUUID string) url.Values {
	total := inv.Amount.String()
	v := url.Values{}
	v.Set("amount", total)
	v.Set("tax_amount", "0")
	v.Set("product_service_charge", "0")
	v.Set("product_delivery_charge", "0")
	v.Set("total_amount", total)
	v.Set("transaction_uuid", transactionUUID)
	v.Set("product_code", e.cfg.ProductCode)
	v.Set("success_url", e.cfg.SuccessURL)
	v.Set("failure_url", e.cfg.FailureURL)
	v.Set("signed_field_names", esewaSignedFields)
	v.Set("signature", EsewaSignature(e.cfg.SecretKey, total, transactionUUID, e.cfg.ProductCode))
	return v
}

// EsewaSignature is base64(HMAC-SHA256) over the signed fields in
// "name=value" form, comma separated, in signed_field_names order.
func EsewaSignature(secret, totalAmount, transactionUUID, productCode string) string {
	msg := fmt.Sprintf("total_amount=%s,transaction_uuid=%s,product_code=%s", totalAmount, transactionUUID, productCode)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
