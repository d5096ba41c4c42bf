package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"freelance/internal/log"
	"freelance/internal/middleware/ratelimit"
	"freelance/internal/middleware/security"
	"freelance/internal/middleware/trace"
	"freelance/internal/services"
)

const maxBodyBytes = 1 << 20

// Services groups the application services the handlers call.
type Services struct {
	Auth      *services.AuthService
	Clients   *services.ClientService
	Projects  *services.ProjectService
	Invoices  *services.InvoiceService
	Dashboard *services.DashboardService
}

// Pinger is checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Addr           string
	RateLimit      ratelimit.Config
	TrustedProxies []string
}

// Server is the JSON API. It embeds http.Server so callers can
// ListenAndServe directly.
type Server struct {
	http.Server
	svc      Services
	ready    Pinger
	logger   *log.Logger
	detector *security.Detector
	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	started  time.Time
	now      func() time.Time

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc Services, ready Pinger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector(logger)
	for _, cidr := range cfg.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}

	s := &Server{
		svc:      svc,
		ready:    ready,
		logger:   logger,
		detector: detector,
		limiter:  ratelimit.New(cfg.RateLimit),
		tracer:   trace.NewMiddleware(logger, detector.ExtractClientIP),
		started:  time.Now(),
		now:      time.Now,
	}
	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/login", s.handleLogin)

	mux.Handle("GET /me", s.requireAuth(s.handleMe))
	mux.Handle("PUT /me/plan", s.requireAuth(s.handleChangePlan))

	mux.Handle("GET /clients", s.requireAuth(s.handleListClients))
	mux.Handle("POST /clients", s.requireAuth(s.handleCreateClient))
	mux.Handle("GET /clients/{id}", s.requireAuth(s.handleGetClient))
	mux.Handle("PUT /clients/{id}", s.requireAuth(s.handleUpdateClient))
	mux.Handle("DELETE /clients/{id}", s.requireAuth(s.handleDeleteClient))

	mux.Handle("GET /projects", s.requireAuth(s.handleListProjects))
	mux.Handle("POST /projects", s.requireAuth(s.handleCreateProject))
	mux.Handle("GET /projects/{id}", s.requireAuth(s.handleGetProject))
	mux.Handle("PUT /projects/{id}", s.requireAuth(s.handleUpdateProject))
	mux.Handle("DELETE /projects/{id}", s.requireAuth(s.handleDeleteProject))
	mux.Handle("PATCH /projects/{id}/status", s.requireAuth(s.handleSetProjectStatus))
	mux.Handle("PATCH /projects/{id}/payment-status", s.requireAuth(s.handleSetProjectPaymentStatus))

	mux.Handle("GET /invoices", s.requireAuth(s.handleListInvoices))
	mux.Handle("POST /invoices", s.requireAuth(s.handleCreateInvoice))
	mux.Handle("GET /invoices/{id}", s.requireAuth(s.handleGetInvoice))
	mux.Handle("PUT /invoices/{id}", s.requireAuth(s.handleUpdateInvoice))
	mux.Handle("DELETE /invoices/{id}", s.requireAuth(s.handleDeleteInvoice))
	mux.Handle("POST /invoices/{id}/toggle-status", s.requireAuth(s.handleToggleInvoiceStatus))
	mux.Handle("POST /invoices/{id}/payment-link", s.requireAuth(s.handleCreatePaymentLink))

	mux.Handle("GET /dashboard/stats", s.requireAuth(s.handleDashboardStats))
	mux.Handle("GET /dashboard/plan", s.requireAuth(s.handleDashboardPlan))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", nil)
	})

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request, retryAfter time.Duration) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", ratelimit.RetryAfterSeconds(retryAfter))
	writeError(w, http.StatusTooManyRequests, "rate_limited", nil)
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
