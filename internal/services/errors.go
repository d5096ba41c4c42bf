package services

import "errors"

var (
	ErrPlanLimitReached   = errors.New("plan limit reached")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvoiceAlreadyPaid = errors.New("invoice already paid")
)
