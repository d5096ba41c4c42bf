package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"freelance/internal/analytics"
	"freelance/internal/core"
	"freelance/internal/log"
	"freelance/internal/ports"
)

// DefaultFetchTimeout bounds the four concurrent snapshot reads.
const DefaultFetchTimeout = 7 * time.Second

// Dashboard is what the stats endpoint returns.
type Dashboard struct {
	Stats   analytics.Stats      `json:"stats"`
	Plan    analytics.PlanLimits `json:"plan"`
	Display DisplayAmounts       `json:"display"`
	AsOf    time.Time            `json:"as_of"`
}

// DisplayAmounts holds the money fields formatted for people.
type DisplayAmounts struct {
	TotalIncome     string `json:"total_income"`
	TotalPending    string `json:"total_pending"`
	MonthlyIncome   string `json:"monthly_income"`
	LastMonthIncome string `json:"last_month_income"`
	TotalOverdue    string `json:"total_overdue"`
}

type DashboardService struct {
	reader  ports.SnapshotReader
	memo    *analytics.Memo
	timeout time.Duration
	logger  *log.Logger
}

// NewDashboardService memoizes when memo is non-nil.
func NewDashboardService(reader ports.SnapshotReader, memo *analytics.Memo, logger *log.Logger) *DashboardService {
	if logger == nil {
		logger = log.Discard()
	}
	return &DashboardService{
		reader:  reader,
		memo:    memo,
		timeout: DefaultFetchTimeout,
		logger:  logger.WithComponent(log.ComponentAnalytics),
	}
}

type snapshot struct {
	clients  []core.Client
	projects []core.Project
	invoices []core.Invoice
	plan     core.PlanType
}

// fetch runs the four reads concurrently. The first failure cancels the
// rest and is returned.
func (s *DashboardService) fetch(ctx context.Context, userID int64) (snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var snap snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.clients, err = s.reader.FetchClients(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch clients: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.projects, err = s.reader.FetchProjects(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch projects: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.invoices, err = s.reader.FetchInvoices(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch invoices: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snap.plan, err = s.reader.FetchUserPlan(gctx, userID)
		if err != nil {
			return fmt.Errorf("fetch plan: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return snapshot{}, err
	}
	return snap, nil
}

// Stats fetches the user's snapshot and aggregates it as of asOf.
func (s *DashboardService) Stats(ctx context.Context, userID int64, asOf time.Time) (Dashboard, error) {
	snap, err := s.fetch(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Dashboard fetch failed", log.FieldUserID, userID, log.FieldError, err)
		return Dashboard{}, err
	}

	var (
		stats analytics.Stats
		hit   bool
	)
	if s.memo != nil {
		stats, hit, err = s.memo.Compute(snap.clients, snap.projects, snap.invoices, asOf)
	} else {
		stats, err = analytics.ComputeDashboardStats(snap.clients, snap.projects, snap.invoices, asOf)
	}
	if err != nil {
		return Dashboard{}, err
	}
	s.logger.DebugContext(ctx, "Dashboard computed",
		log.FieldUserID, userID,
		log.FieldCacheHit, hit,
		log.FieldAsOf, asOf.Format(time.RFC3339))

	return Dashboard{
		Stats: stats,
		Plan:  analytics.CheckPlanLimits(snap.plan, stats.TotalClients),
		Display: DisplayAmounts{
			TotalIncome:     stats.TotalIncome.Display(),
			TotalPending:    stats.TotalPending.Display(),
			MonthlyIncome:   stats.MonthlyIncome.Display(),
			LastMonthIncome: stats.LastMonthIncome.Display(),
			TotalOverdue:    stats.TotalOverdue.Display(),
		},
		AsOf: asOf,
	}, nil
}

// Plan reports plan limits from the same snapshot reads the dashboard uses.
func (s *DashboardService) Plan(ctx context.Context, userID int64) (analytics.PlanLimits, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		plan    core.PlanType
		clients []core.Client
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		plan, err = s.reader.FetchUserPlan(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		clients, err = s.reader.FetchClients(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return analytics.PlanLimits{}, err
	}
	return analytics.CheckPlanLimits(plan, len(clients)), nil
}
