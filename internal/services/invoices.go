package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"freelance/internal/amqp"
	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/payments"
	"freelance/internal/ports"
)

// EventPublisher is satisfied by *amqp.Client.
type EventPublisher interface {
	PublishInvoiceEvent(ctx context.Context, ev *amqp.InvoiceEvent) error
}

// LinkCreator is satisfied by *payments.Registry.
type LinkCreator interface {
	CreateLink(ctx context.Context, g payments.Gateway, inv core.Invoice) (string, error)
}

// InvoiceService saves invoices and announces every change on the event
// stream. Publishing is best effort: a saved invoice is never rolled back
// because the broker is down.
type InvoiceService struct {
	store  ports.InvoiceStore
	links  LinkCreator
	events EventPublisher
	logger *log.Logger
	now    func() time.Time
}

func NewInvoiceService(store ports.InvoiceStore, links LinkCreator, events EventPublisher, logger *log.Logger) *InvoiceService {
	if logger == nil {
		logger = log.Discard()
	}
	return &InvoiceService{
		store:  store,
		links:  links,
		events: events,
		logger: logger.WithComponent(log.ComponentInvoices),
		now:    time.Now,
	}
}

// Create defaults the status to Unpaid and the issue date to today, and
// assigns INV-<year>-<seq> when no number is given.
func (s *InvoiceService) Create(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	inv.Number = strings.TrimSpace(inv.Number)
	if inv.Status == "" {
		inv.Status = core.InvoiceUnpaid
	}
	if inv.IssueDate.IsEmpty() {
		now := s.now()
		inv.IssueDate = core.NewDate(now.Year(), int(now.Month()), now.Day())
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	if inv.Number == "" {
		number, err := s.nextNumber(ctx, inv.UserID, inv.IssueDate.Year())
		if err != nil {
			return core.Invoice{}, err
		}
		inv.Number = number
	}

	created, err := s.store.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	s.logChange(ctx, log.OpCreate, created)
	s.publish(ctx, amqp.EventCreated, created.UserID, created.ID)
	return created, nil
}

// nextNumber continues after the highest existing sequence of the year, so
// deleted invoices never free a number for reuse.
func (s *InvoiceService) nextNumber(ctx context.Context, userID int64, year int) (string, error) {
	n, err := s.store.LastInvoiceSequence(ctx, userID, year)
	if err != nil {
		return "", fmt.Errorf("last invoice sequence: %w", err)
	}
	return FormatInvoiceNumber(year, n+1), nil
}

// FormatInvoiceNumber renders INV-2024-0007. Sequences past 9999 widen.
func FormatInvoiceNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", core.InvoiceNumberPrefix(year), seq)
}

func (s *InvoiceService) Get(ctx context.Context, userID, id int64) (core.Invoice, error) {
	return s.store.GetInvoice(ctx, userID, id)
}

func (s *InvoiceService) List(ctx context.Context, userID int64) ([]core.Invoice, error) {
	return s.store.ListInvoices(ctx, userID)
}

// Update replaces the editable fields. An emptied number is reassigned.
func (s *InvoiceService) Update(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	inv.Number = strings.TrimSpace(inv.Number)
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}
	if inv.Number == "" {
		existing, err := s.store.GetInvoice(ctx, inv.UserID, inv.ID)
		if err != nil {
			return core.Invoice{}, err
		}
		inv.Number = existing.Number
	}
	updated, err := s.store.UpdateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, err
	}
	s.logChange(ctx, log.OpUpdate, updated)
	s.publish(ctx, amqp.EventUpdated, updated.UserID, updated.ID)
	return updated, nil
}

func (s *InvoiceService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.DeleteInvoice(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, amqp.EventDeleted, userID, id)
	return nil
}

// ToggleStatus flips Unpaid and Paid.
func (s *InvoiceService) ToggleStatus(ctx context.Context, userID, id int64) (core.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, userID, id)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Status = inv.Status.Toggle()
	updated, err := s.store.UpdateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, err
	}
	s.logChange(ctx, log.OpToggle, updated)
	s.publish(ctx, amqp.EventStatusChanged, userID, id)
	return updated, nil
}

// CreatePaymentLink asks the gateway for a link and stores it on the
// invoice. Paid invoices are refused.
func (s *InvoiceService) CreatePaymentLink(ctx context.Context, userID, id int64, gateway payments.Gateway) (core.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, userID, id)
	if err != nil {
		return core.Invoice{}, err
	}
	if inv.Status == core.InvoicePaid {
		return core.Invoice{}, ErrInvoiceAlreadyPaid
	}
	if s.links == nil {
		return core.Invoice{}, fmt.Errorf("%w: %s", payments.ErrGatewayNotConfigured, gateway)
	}

	link, err := s.links.CreateLink(ctx, gateway, inv)
	if err != nil {
		s.logger.ErrorContext(ctx, "Payment link failed",
			log.FieldInvoiceID, id,
			log.FieldGateway, gateway,
			log.FieldError, err)
		return core.Invoice{}, fmt.Errorf("create %s link: %w", gateway, err)
	}
	inv.PaymentLink = link
	updated, err := s.store.UpdateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, err
	}
	s.logger.InfoContext(ctx, "Payment link created",
		log.FieldInvoiceID, id,
		log.FieldUserID, userID,
		log.FieldGateway, gateway)
	s.publish(ctx, amqp.EventPaymentLink, userID, id)
	return updated, nil
}

func (s *InvoiceService) publish(ctx context.Context, t amqp.EventType, userID, invoiceID int64) {
	if s.events == nil {
		s.logger.DebugContext(ctx, "Event publisher not configured, skipping", log.FieldEventType, t)
		return
	}
	if err := s.events.PublishInvoiceEvent(ctx, amqp.NewInvoiceEvent(t, userID, invoiceID)); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish invoice event",
			log.FieldEventType, t,
			log.FieldInvoiceID, invoiceID,
			log.FieldError, err)
	}
}

func (s *InvoiceService) logChange(ctx context.Context, op string, inv core.Invoice) {
	log.NewStructuredLogger(s.logger).LogInvoiceChange(ctx, op, inv.UserID, inv.ID, inv.Number, inv.Amount.Cents)
}
