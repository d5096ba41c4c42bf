package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"freelance/internal/analytics"
	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
	"freelance/internal/storage"
)

// ClientService enforces the plan's client cap on create.
type ClientService struct {
	store interface {
		ports.ClientStore
		ports.UserStore
	}
	logger *log.Logger
}

func NewClientService(store ports.RecordStore, logger *log.Logger) *ClientService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ClientService{store: store, logger: logger.WithComponent(log.ComponentClients)}
}

// Limits reports the user's current plan allowance.
func (s *ClientService) Limits(ctx context.Context, userID int64) (analytics.PlanLimits, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return analytics.PlanLimits{}, err
	}
	n, err := s.store.CountClients(ctx, userID)
	if err != nil {
		return analytics.PlanLimits{}, fmt.Errorf("count clients: %w", err)
	}
	return analytics.CheckPlanLimits(u.Plan, n), nil
}

func (s *ClientService) Create(ctx context.Context, c core.Client) (core.Client, error) {
	normalizeClient(&c)
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	limits, err := s.Limits(ctx, c.UserID)
	if err != nil {
		return core.Client{}, err
	}
	if !limits.CanAddClient {
		s.logger.InfoContext(ctx, "Client creation denied by plan",
			log.FieldUserID, c.UserID,
			"plan", limits.Plan,
			"current_clients", limits.CurrentClients)
		return core.Client{}, fmt.Errorf("%w: %s plan allows %d clients", ErrPlanLimitReached, limits.Plan, limits.ClientLimit)
	}
	// A concurrent create can still take the last slot after the check above.
	created, err := s.store.CreateClientCapped(ctx, c, analytics.ClientLimit(limits.Plan))
	if errors.Is(err, storage.ErrLimitReached) {
		return core.Client{}, fmt.Errorf("%w: %s plan allows %d clients", ErrPlanLimitReached, limits.Plan, limits.ClientLimit)
	}
	if err != nil {
		return core.Client{}, fmt.Errorf("create client: %w", err)
	}
	return created, nil
}

func (s *ClientService) Get(ctx context.Context, userID, id int64) (core.Client, error) {
	return s.store.GetClient(ctx, userID, id)
}

func (s *ClientService) List(ctx context.Context, userID int64) ([]core.Client, error) {
	return s.store.ListClients(ctx, userID)
}

func (s *ClientService) Update(ctx context.Context, c core.Client) (core.Client, error) {
	normalizeClient(&c)
	if err := c.Validate(); err != nil {
		return core.Client{}, err
	}
	return s.store.UpdateClient(ctx, c)
}

// Delete removes the client together with its projects and their invoices.
func (s *ClientService) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteClient(ctx, userID, id)
}

func normalizeClient(c *core.Client) {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Company = strings.TrimSpace(c.Company)
}
