package services

import (
	"context"
	"strings"

	"freelance/internal/core"
	"freelance/internal/ports"
)

type ProjectService struct {
	store ports.ProjectStore
}

func NewProjectService(store ports.ProjectStore) *ProjectService {
	return &ProjectService{store: store}
}

// Create defaults an empty status to Pending and payment status to Not Paid.
func (s *ProjectService) Create(ctx context.Context, p core.Project) (core.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = core.ProjectPending
	}
	if p.PaymentStatus == "" {
		p.PaymentStatus = core.PaymentNotPaid
	}
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	return s.store.CreateProject(ctx, p)
}

func (s *ProjectService) Get(ctx context.Context, userID, id int64) (core.Project, error) {
	return s.store.GetProject(ctx, userID, id)
}

func (s *ProjectService) List(ctx context.Context, userID int64) ([]core.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

func (s *ProjectService) Update(ctx context.Context, p core.Project) (core.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Project{}, err
	}
	return s.store.UpdateProject(ctx, p)
}

func (s *ProjectService) Delete(ctx context.Context, userID, id int64) error {
	return s.store.DeleteProject(ctx, userID, id)
}

// SetStatus changes only the work status.
func (s *ProjectService) SetStatus(ctx context.Context, userID, id int64, status core.ProjectStatus) (core.Project, error) {
	if !status.Valid() {
		return core.Project{}, core.ErrInvalidStatus
	}
	p, err := s.store.GetProject(ctx, userID, id)
	if err != nil {
		return core.Project{}, err
	}
	p.Status = status
	return s.store.UpdateProject(ctx, p)
}

// SetPaymentStatus changes only the payment status.
func (s *ProjectService) SetPaymentStatus(ctx context.Context, userID, id int64, status core.PaymentStatus) (core.Project, error) {
	if !status.Valid() {
		return core.Project{}, core.ErrInvalidStatus
	}
	p, err := s.store.GetProject(ctx, userID, id)
	if err != nil {
		return core.Project{}, err
	}
	p.PaymentStatus = status
	return s.store.UpdateProject(ctx, p)
}
