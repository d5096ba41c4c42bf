package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
)

// ReminderStore is what the sweep reads and records.
type ReminderStore interface {
	ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]core.Invoice, error)
	GetUser(ctx context.Context, id int64) (core.User, error)
	ports.ReminderLog
}

// SweepResult counts one pass over the overdue invoices.
type SweepResult struct {
	Overdue  int
	Notified int
	Skipped  int
	Failed   int
}

// ReminderSweeper notifies owners of overdue invoices at most once per
// invoice per day.
type ReminderSweeper struct {
	store    ReminderStore
	notifier ports.Notifier
	interval time.Duration
	logger   *log.Logger
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewReminderSweeper(store ReminderStore, notifier ports.Notifier, interval time.Duration, logger *log.Logger) *ReminderSweeper {
	if logger == nil {
		logger = log.Discard()
	}
	return &ReminderSweeper{
		store:    store,
		notifier: notifier,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
	}
}

// Sweep runs one pass. Each invoice is marked before notifying, so a failed
// delivery is not retried until the next day.
func (s *ReminderSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	asOf := s.now()
	today := core.NewDate(asOf.Year(), int(asOf.Month()), asOf.Day())

	overdue, err := s.store.ListOverdueInvoices(ctx, asOf)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list overdue invoices: %w", err)
	}
	res := SweepResult{Overdue: len(overdue)}
	users := map[int64]core.User{}

	for _, inv := range overdue {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		first, err := s.store.MarkReminded(ctx, inv.ID, today)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to record reminder", log.FieldInvoiceID, inv.ID, log.FieldError, err)
			res.Failed++
			continue
		}
		if !first {
			res.Skipped++
			continue
		}

		u, ok := users[inv.UserID]
		if !ok {
			u, err = s.store.GetUser(ctx, inv.UserID)
			if err != nil {
				s.logger.ErrorContext(ctx, "Failed to load invoice owner", log.FieldUserID, inv.UserID, log.FieldError, err)
				res.Failed++
				continue
			}
			users[inv.UserID] = u
		}

		if err := s.notifier.NotifyOverdue(ctx, u, inv, asOf); err != nil {
			s.logger.ErrorContext(ctx, "Failed to send overdue reminder", log.FieldInvoiceID, inv.ID, log.FieldError, err)
			res.Failed++
			continue
		}
		res.Notified++
	}

	s.logger.InfoContext(ctx, "Overdue sweep completed",
		log.FieldOperation, log.OpSweep,
		"overdue", res.Overdue,
		"notified", res.Notified,
		"skipped", res.Skipped,
		"failed", res.Failed)
	return res, nil
}

// Start sweeps immediately and then on every interval until Stop or ctx
// cancellation.
func (s *ReminderSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("reminder sweeper is already running")
	}
	s.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	s.stopCh, s.doneCh = stopCh, doneCh
	s.mu.Unlock()

	go s.runLoop(ctx, stopCh, doneCh)

	s.logger.InfoContext(ctx, "Reminder sweeper started", "interval", s.interval)
	return nil
}

// Stop waits for the loop to finish or for ctx to expire.
func (s *ReminderSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopCh == nil {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh = nil
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Reminder sweeper stop timed out")
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Reminder sweeper stopped")
	return nil
}

func (s *ReminderSweeper) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ReminderSweeper) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		if s.doneCh == doneCh {
			s.stopCh = nil
		}
		s.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweepLogged(ctx)
	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepLogged(ctx)
		}
	}
}

func (s *ReminderSweeper) sweepLogged(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.ErrorContext(ctx, "Overdue sweep failed", log.FieldError, err)
	}
}
