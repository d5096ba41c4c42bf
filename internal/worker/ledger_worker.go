// Package worker runs the background jobs: exporting invoice events to the
// ledger and sweeping overdue invoices for reminders.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"freelance/internal/amqp"
	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
	"freelance/internal/storage"
)

// LedgerWorker turns invoice events into ledger rows.
type LedgerWorker struct {
	invoices ports.InvoiceStore
	ledger   ports.LedgerWriter
	logger   *log.Logger
	now      func() time.Time
}

func NewLedgerWorker(invoices ports.InvoiceStore, ledger ports.LedgerWriter, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{
		invoices: invoices,
		ledger:   ledger,
		logger:   logger.WithComponent(log.ComponentLedger),
		now:      time.Now,
	}
}

// HandleInvoiceEvent reads the invoice's current row and appends it. An
// invoice deleted after the event was published is recorded by id only.
// Returned errors make the consumer requeue the message.
func (w *LedgerWorker) HandleInvoiceEvent(ctx context.Context, ev *amqp.InvoiceEvent) error {
	entry := ports.LedgerEntry{
		Event:      string(ev.Type),
		RecordedAt: w.now(),
		Invoice:    core.Invoice{ID: ev.InvoiceID, UserID: ev.UserID},
	}

	if ev.Type != amqp.EventDeleted {
		inv, err := w.invoices.GetInvoice(ctx, ev.UserID, ev.InvoiceID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			w.logger.InfoContext(ctx, "Invoice gone before export, recording id only",
				log.FieldInvoiceID, ev.InvoiceID,
				log.FieldEventType, ev.Type)
			entry.Event = string(amqp.EventDeleted)
		case err != nil:
			return fmt.Errorf("get invoice %d: %w", ev.InvoiceID, err)
		default:
			entry.Invoice = inv
		}
	}

	ref, err := w.ledger.Append(ctx, entry)
	if err != nil {
		return fmt.Errorf("append ledger row: %w", err)
	}
	w.logger.InfoContext(ctx, "Exported invoice event",
		log.FieldInvoiceID, ev.InvoiceID,
		log.FieldEventType, ev.Type,
		"ledger_ref", ref)
	return nil
}
