package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"freelance/internal/core"
)

type KhaltiConfig struct {
	SecretKey  string
	BaseURL    string
	ReturnURL  string
	WebsiteURL string
}

// Khalti initiates ePayment v2 sessions and returns the hosted payment URL.
type Khalti struct {
	cfg        KhaltiConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

type khaltiInitiateRequest struct {
	ReturnURL         string `json:"return_url"`
	WebsiteURL        string `json:"website_url"`
	Amount            int64  `json:"amount"`
	PurchaseOrderID   string `json:"purchase_order_id"`
	PurchaseOrderName string `json:"purchase_order_name"`
}

type khaltiInitiateResponse struct {
	Pidx       string `json:"pidx"`
	PaymentURL string `json:"payment_url"`
	ExpiresAt  string `json:"expires_at"`
	ExpiresIn  int    `json:"expires_in"`
}

// NewKhalti uses a 10s client when client is nil. Outbound calls are
// limited to 5 per second.
func NewKhalti(cfg KhaltiConfig, client *http.Client) *Khalti {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Khalti{
		cfg:        cfg,
		httpClient: client,
		limiter:    rate.NewLimiter(rate.Limit(5), 5),
	}
}

func (k *Khalti) Gateway() Gateway { return GatewayKhalti }

func (k *Khalti) CreateLink(ctx context.Context, inv core.Invoice) (string, error) {
	if k.cfg.SecretKey == "" || k.cfg.BaseURL == "" {
		return "", fmt.Errorf("%w: khalti", ErrGatewayNotConfigured)
	}
	if err := k.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("khalti rate limit: %w", err)
	}

	name := orderID(inv)
	if inv.ProjectName != "" {
		name += " - " + inv.ProjectName
	}
	body, err := json.Marshal(khaltiInitiateRequest{
		ReturnURL:         k.cfg.ReturnURL,
		WebsiteURL:        k.cfg.WebsiteURL,
		Amount:            inv.Amount.Cents,
		PurchaseOrderID:   orderID(inv),
		PurchaseOrderName: name,
	})
	if err != nil {
		return "", fmt.Errorf("encode khalti request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.cfg.BaseURL+"/epayment/initiate/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+k.cfg.SecretKey)

	resp, err := k.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("khalti request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read khalti response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: khalti status %d: %s", ErrGatewayRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out khaltiInitiateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode khalti response: %w", err)
	}
	if out.PaymentURL == "" {
		return "", fmt.Errorf("%w: khalti returned no payment_url", ErrGatewayRejected)
	}
	return out.PaymentURL, nil
}
