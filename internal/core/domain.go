package core

import (
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

const (
	PlanFree PlanType = "Free"
	PlanPro  PlanType = "Pro"

	ProjectPending    ProjectStatus = "Pending"
	ProjectInProgress ProjectStatus = "In Progress"
	ProjectCompleted  ProjectStatus = "Completed"

	PaymentNotPaid PaymentStatus = "Not Paid"
	PaymentPartial PaymentStatus = "Partial"
	PaymentPaid    PaymentStatus = "Paid"

	InvoiceUnpaid InvoiceStatus = "Unpaid"
	InvoicePaid   InvoiceStatus = "Paid"
)

type (
	PlanType      string
	ProjectStatus string
	PaymentStatus string
	InvoiceStatus string

	User struct {
		ID           int64     `json:"id"`
		Email        string    `json:"email"`
		Name         string    `json:"name"`
		PasswordHash string    `json:"-"`
		Plan         PlanType  `json:"plan"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}

	Client struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user_id"`
		Name      string    `json:"name"`
		Email     string    `json:"email"`
		Phone     string    `json:"phone,omitempty"`
		Company   string    `json:"company,omitempty"`
		Notes     string    `json:"notes,omitempty"`
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Project struct {
		ID            int64         `json:"id"`
		UserID        int64         `json:"user_id"`
		ClientID      int64         `json:"client_id"`
		ClientName    string        `json:"client_name,omitempty"` // joined on read
		Name          string        `json:"name"`
		Description   string        `json:"description,omitempty"`
		Deadline      Date          `json:"deadline"`
		Status        ProjectStatus `json:"status"`
		PaymentStatus PaymentStatus `json:"payment_status"`
		CreatedAt     time.Time     `json:"created_at"`
		UpdatedAt     time.Time     `json:"updated_at"`
	}

	Invoice struct {
		ID          int64         `json:"id"`
		UserID      int64         `json:"user_id"`
		ProjectID   int64         `json:"project_id"`
		ProjectName string        `json:"project_name,omitempty"` // joined on read
		ClientName  string        `json:"client_name,omitempty"`  // joined on read
		Number      string        `json:"invoice_number"`
		IssueDate   Date          `json:"issue_date"`
		DueDate     Date          `json:"due_date"`
		Amount      Money         `json:"amount"`
		PaymentLink string        `json:"payment_link,omitempty"`
		Status      InvoiceStatus `json:"status"`
		CreatedAt   time.Time     `json:"created_at"`
		UpdatedAt   time.Time     `json:"updated_at"`
	}
)

var (
	ErrEmptyName       = errors.New("empty name")
	ErrNameTooLong     = errors.New("name too long (max 200 characters)")
	ErrEmptyEmail      = errors.New("empty email")
	ErrInvalidEmail    = errors.New("invalid email")
	ErrMissingClient   = errors.New("missing client")
	ErrMissingProject  = errors.New("missing project")
	ErrMissingDate     = errors.New("missing date")
	ErrNumberTooLong   = errors.New("invoice number too long (max 50 characters)")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrInvalidPlan     = errors.New("invalid plan type")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrLinkTooLong     = errors.New("payment link too long (max 2048 characters)")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

// Valid reports whether p is one of the known plan tiers.
func (p PlanType) Valid() bool {
	return p == PlanFree || p == PlanPro
}

// ParsePlanType accepts plan names case-insensitively.
func ParsePlanType(s string) (PlanType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "free":
		return PlanFree, nil
	case "pro":
		return PlanPro, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPlan, s)
}

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPending, ProjectInProgress, ProjectCompleted:
		return true
	}
	return false
}

// ParseProjectStatus accepts "Pending", "In Progress" (or "in_progress"),
// and "Completed", case-insensitively.
func ParseProjectStatus(s string) (ProjectStatus, error) {
	switch normalizeEnum(s) {
	case "pending":
		return ProjectPending, nil
	case "in progress":
		return ProjectInProgress, nil
	case "completed":
		return ProjectCompleted, nil
	}
	return "", fmt.Errorf("%w: project status %q", ErrInvalidStatus, s)
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentNotPaid, PaymentPartial, PaymentPaid:
		return true
	}
	return false
}

func ParsePaymentStatus(s string) (PaymentStatus, error) {
	switch normalizeEnum(s) {
	case "not paid":
		return PaymentNotPaid, nil
	case "partial":
		return PaymentPartial, nil
	case "paid":
		return PaymentPaid, nil
	}
	return "", fmt.Errorf("%w: payment status %q", ErrInvalidStatus, s)
}

func (s InvoiceStatus) Valid() bool {
	return s == InvoiceUnpaid || s == InvoicePaid
}

// Toggle flips Unpaid and Paid. Invoices have no intermediate state.
func (s InvoiceStatus) Toggle() InvoiceStatus {
	if s == InvoicePaid {
		return InvoiceUnpaid
	}
	return InvoicePaid
}

func ParseInvoiceStatus(s string) (InvoiceStatus, error) {
	switch normalizeEnum(s) {
	case "unpaid":
		return InvoiceUnpaid, nil
	case "paid":
		return InvoicePaid, nil
	}
	return "", fmt.Errorf("%w: invoice status %q", ErrInvalidStatus, s)
}

func normalizeEnum(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ReplaceAll(s, "-", " ")
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > 200 {
		return ErrNameTooLong
	}
	return nil
}

// ValidateEmail requires a bare address ("a@b.c"), not a display-name form.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrEmptyEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func (u User) Validate() error {
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	if err := validateName(u.Name); err != nil {
		return err
	}
	if !u.Plan.Valid() {
		return ErrInvalidPlan
	}
	return nil
}

func (c Client) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	return ValidateEmail(c.Email)
}

func (p Project) Validate() error {
	if err := validateName(p.Name); err != nil {
		return err
	}
	if p.ClientID <= 0 {
		return ErrMissingClient
	}
	if !p.Status.Valid() {
		return fmt.Errorf("%w: project status %q", ErrInvalidStatus, p.Status)
	}
	if !p.PaymentStatus.Valid() {
		return fmt.Errorf("%w: payment status %q", ErrInvalidStatus, p.PaymentStatus)
	}
	if !p.Deadline.IsEmpty() {
		if err := p.Deadline.Validate(); err != nil {
			return fmt.Errorf("invalid deadline: %w", err)
		}
	}
	return nil
}

func (i Invoice) Validate() error {
	if i.ProjectID <= 0 {
		return ErrMissingProject
	}
	if len(i.Number) > 50 {
		return ErrNumberTooLong
	}
	if err := i.IssueDate.Validate(); err != nil {
		return fmt.Errorf("invalid issue date: %w", err)
	}
	if err := i.DueDate.Validate(); err != nil {
		return fmt.Errorf("invalid due date: %w", err)
	}
	if err := i.Amount.Validate(); err != nil {
		return err
	}
	if len(i.PaymentLink) > 2048 {
		return ErrLinkTooLong
	}
	if !i.Status.Valid() {
		return fmt.Errorf("%w: invoice status %q", ErrInvalidStatus, i.Status)
	}
	return nil
}

// IsOverdue reports whether the invoice is unpaid and its due date, as the
// instant of midnight UTC, is strictly before asOf.
func (i Invoice) IsOverdue(asOf time.Time) bool {
	return i.Status == InvoiceUnpaid && !i.DueDate.IsZero() && i.DueDate.Time.Before(asOf)
}

// InvoiceNumberPrefix is the generated-number prefix for year, "INV-2024-".
func InvoiceNumberPrefix(year int) string {
	return fmt.Sprintf("INV-%d-", year)
}

// InvoiceSequence extracts n from a number of the form INV-<year>-<n>.
func InvoiceSequence(number string, year int) (int, bool) {
	rest, ok := strings.CutPrefix(number, InvoiceNumberPrefix(year))
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return n, true
}
