package backend

import (
	"context"
	"fmt"

	"freelance/internal/config"
	lgoogle "freelance/internal/ledger/google"
	lmemory "freelance/internal/ledger/memory"
	"freelance/internal/log"
	"freelance/internal/payments"
	"freelance/internal/ports"
)

// NewPaymentRegistry registers a provider for every gateway with a secret
// key configured.
func NewPaymentRegistry(cfg *config.Config) *payments.Registry {
	var providers []payments.Provider
	if cfg.EsewaSecretKey != "" {
		providers = append(providers, payments.NewEsewa(payments.EsewaConfig{
			ProductCode: cfg.EsewaProductCode,
			SecretKey:   cfg.EsewaSecretKey,
			FormURL:     cfg.EsewaFormURL,
			SuccessURL:  cfg.PaymentReturnURL,
			FailureURL:  cfg.PaymentReturnURL,
		}))
	}
	if cfg.KhaltiSecretKey != "" {
		providers = append(providers, payments.NewKhalti(payments.KhaltiConfig{
			SecretKey:  cfg.KhaltiSecretKey,
			BaseURL:    cfg.KhaltiBaseURL,
			ReturnURL:  cfg.PaymentReturnURL,
			WebsiteURL: cfg.PaymentWebsiteURL,
		}, nil))
	}
	return payments.NewRegistry(providers...)
}

// NewLedger returns the Google Sheets ledger when a spreadsheet is
// configured and an in-memory one otherwise.
func NewLedger(ctx context.Context, cfg *config.Config, logger *log.Logger) (ports.LedgerWriter, error) {
	if !cfg.LedgerEnabled() {
		logger.InfoContext(ctx, "No spreadsheet configured, using in-memory ledger")
		return lmemory.New(), nil
	}
	client, err := lgoogle.New(ctx, lgoogle.Config{
		SpreadsheetID:      cfg.GoogleSpreadsheetID,
		Sheet:              cfg.GoogleLedgerSheet,
		ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
		ServiceAccountFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("google ledger: %w", err)
	}
	if err := client.EnsureHeader(ctx); err != nil {
		logger.WarnContext(ctx, "Could not verify ledger header", log.FieldError, err)
	}
	return client, nil
}
