package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/cache"
	"kakeibo/internal/core"
	applog "kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
)

// LedgerService is what the handlers need from the service layer.
// *services.RecurringProcessor implements it.
type LedgerService interface {
	MaterializeMonth(ctx context.Context, ownerID string, month core.YearMonth) (core.ApplyResult, error)
	SummarizeMonth(ctx context.Context, ownerID string, month core.YearMonth) (core.MonthSummary, error)

	RecordEntry(ctx context.Context, c core.LedgerEntryCandidate) (core.LedgerEntry, error)
	GetEntry(ctx context.Context, ownerID string, id int64) (core.LedgerEntry, error)
	ListEntries(ctx context.Context, ownerID string, month core.YearMonth) ([]core.LedgerEntry, error)
	DeleteEntry(ctx context.Context, ownerID string, id int64) error

	ListRules(ctx context.Context, ownerID string) ([]core.RecurringRule, error)
	CreateRule(ctx context.Context, rule core.RecurringRule) (core.RecurringRule, error)
	DeleteRule(ctx context.Context, ownerID string, id int64) error
}

// Options configures a Server. Only Ledger is required.
type Options struct {
	Ledger    LedgerService
	Trigger   *services.TriggerCoordinator
	Summaries *cache.SummaryCache
	// Ready reports backend readiness for /readyz. Nil means always ready.
	Ready     func(ctx context.Context) error
	RateLimit ratelimit.Config
	Logger    *applog.Logger
	Now       func() time.Time
}

type Server struct {
	http.Server
	ledger    LedgerService
	trigger   *services.TriggerCoordinator
	summaries *cache.SummaryCache
	ready     func(ctx context.Context) error
	now       func() time.Time

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer builds the API server listening on addr.
func NewServer(addr string, opts Options) *Server {
	if opts.Trigger == nil {
		opts.Trigger = services.NewTriggerCoordinator()
	}
	if opts.Summaries == nil {
		opts.Summaries = cache.NewSummaryCache(256, 5*time.Minute)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = applog.FromContext(context.Background())
	}
	logger := opts.Logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		ledger:    opts.Ledger,
		trigger:   opts.Trigger,
		summaries: opts.Summaries,
		ready:     opts.Ready,
		now:       opts.Now,
		limiter:   ratelimit.NewLimiter(opts.RateLimit),
		detector:  security.NewDetector(),
		caches:    cache.NewManager(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.caches.Register(s.summaries)
	s.caches.StartCleanup(time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/months/{month}/materialize", s.handleMaterialize)
	mux.HandleFunc("GET /api/months/{month}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/months/{month}/entries", s.handleListEntries)

	mux.HandleFunc("POST /api/entries", s.handleCreateEntry)
	mux.HandleFunc("GET /api/entries/{id}", s.handleGetEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /api/rules", s.handleListRules)
	mux.HandleFunc("POST /api/rules", s.handleCreateRule)
	mux.HandleFunc("DELETE /api/rules/{id}", s.handleDeleteRule)

	s.Addr = addr
	s.Handler = s.middleware(mux, logger)
	s.ReadHeaderTimeout = 5 * time.Second
	s.ReadTimeout = 15 * time.Second
	s.WriteTimeout = 30 * time.Second
	s.IdleTimeout = 60 * time.Second
	s.RegisterOnShutdown(s.stopBackground)
	return s
}

// middleware wraps the mux, outermost first: trace, logger, security
// headers, suspicious request filter, rate limit.
func (s *Server) middleware(mux http.Handler, logger *applog.Logger) http.Handler {
	limitKey := func(r *http.Request) string {
		if owner, err := OwnerFromRequest(r); err == nil {
			return "owner:" + owner
		}
		return "ip:" + s.detector.ExtractClientIP(r)
	}
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path,
			applog.FieldClientIP, s.detector.ExtractClientIP(r))
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}

	var h http.Handler = mux
	h = s.limiter.Middleware(limitKey, onLimit, http.MethodPost, http.MethodDelete)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.Middleware(logger, trace.RequestIDFromRequest, func(r *http.Request) string {
		id, _ := OwnerFromRequest(r)
		return id
	})(h)
	h = s.tracer.Middleware(h)
	return h
}

func (s *Server) stopBackground() {
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
	})
}

// Close stops background goroutines without serving. Shutdown does the same
// for a running server.
func (s *Server) Close() error {
	s.stopBackground()
	return s.Server.Close()
}

// Metrics returns request, rate limit and detection counters.
func (s *Server) Metrics() (trace.Metrics, ratelimit.Metrics, security.DetectionMetrics) {
	return s.tracer.GetMetrics(), s.limiter.GetMetrics(), s.detector.GetMetrics()
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
