package worker

import (
	"context"
	"time"

	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
)

// LogNotifier writes reminders to the log instead of sending email.
type LogNotifier struct {
	logger *log.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.Discard()
	}
	return &LogNotifier{logger: logger.WithComponent(log.ComponentWorker)}
}

func (n *LogNotifier) NotifyOverdue(ctx context.Context, u core.User, inv core.Invoice, asOf time.Time) error {
	n.logger.InfoContext(ctx, "Overdue invoice reminder",
		log.FieldUserID, u.ID,
		"email", u.Email,
		log.FieldInvoiceID, inv.ID,
		log.FieldInvoiceNumber, inv.Number,
		"client", inv.ClientName,
		"amount", inv.Amount.Display(),
		"due_date", inv.DueDate.String(),
		"days_overdue", DaysOverdue(inv.DueDate, asOf))
	return nil
}

// DaysOverdue counts whole calendar days from the due date to asOf's day.
func DaysOverdue(due core.Date, asOf time.Time) int {
	day := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	d := int(day.Sub(due.Time).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
