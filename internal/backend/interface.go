package backend

import (
	"context"

	"freelance/internal/amqp"
	"freelance/internal/analytics"
	"freelance/internal/cache"
	"freelance/internal/ports"
)

// CleanupFunc releases resources held by a backend.
type CleanupFunc func() error

// Backend bundles the store with the optional infrastructure built
// alongside it. Events is nil when AMQP is not configured or unreachable.
type Backend struct {
	Store      ports.Store
	Events     *amqp.Client
	StatsCache cache.Cache[analytics.Stats]
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration.
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Backend, error)
}
