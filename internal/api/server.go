// Package api exposes the catalog and the pipeline over HTTP.
package api

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/grant-cli/internal/catalog"
	"github.com/sells-group/grant-cli/internal/metrics"
	"github.com/sells-group/grant-cli/internal/model"
	"github.com/sells-group/grant-cli/internal/pipeline"
	"github.com/sells-group/grant-cli/internal/progress"
	"github.com/sells-group/grant-cli/internal/store"
)

// Runner is the pipeline surface the API drives.
type Runner interface {
	Run(ctx context.Context, opts model.RunOptions, sink progress.Sink) (*model.Summary, error)
	Reenrich(ctx context.Context, slug string, opts pipeline.ReenrichOptions) (*pipeline.ReenrichResult, error)
	ReenrichBulk(ctx context.Context, opts pipeline.BulkOptions) (*pipeline.BulkResult, error)
}

// RunReader reads the run ledger.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)
	Ping(ctx context.Context) error
}

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// Deps are the collaborators of a Server. Runs is optional; without it the
// /runs routes are not mounted.
type Deps struct {
	Runner   Runner
	Catalog  *catalog.Catalog
	Runs     RunReader
	Metrics  *metrics.Metrics
	HTTP     *metrics.Middleware
	Gatherer prometheus.Gatherer
}

// Server serves the HTTP API. At most one pipeline operation runs at a time;
// a second trigger gets 409 while the first is in flight.
type Server struct {
	deps    Deps
	cfg     Config
	running atomic.Bool
}

// New creates a Server.
func New(deps Deps, cfg Config) *Server {
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Server{deps: deps, cfg: cfg}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	if s.deps.HTTP != nil {
		r.Use(s.deps.HTTP.Handler)
	}
	r.Use(
		cors.Handler(cors.Options{
			AllowedOrigins: s.allowedOrigins(),
			AllowedMethods: []string{"GET", "PUT", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.RealIP,
		requestLogger,
		middleware.Recoverer,
	)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	// Pipeline operations outlive the request, so they sit outside the timeout group.
	r.Post("/runs", s.triggerRun)
	r.Post("/programs/{slug}/reenrich", s.reenrich)
	r.Post("/reenrich", s.reenrichBulk)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))

		r.Get("/programs", s.listPrograms)
		r.Get("/programs/{slug}", s.getProgram)
		r.Get("/programs/{slug}/analysis", s.getAnalysis)
		r.Get("/programs/{slug}/strategy", s.getStrategy)
		r.Get("/applications/{slug}", s.getApplication)
		r.Put("/applications/{slug}", s.putApplication)

		if s.deps.Runs != nil {
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{id}", s.getRun)
		}
	})

	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.cfg.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.cfg.AllowedOrigins
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Runs != nil {
		if err := s.deps.Runs.Ping(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	render.JSON(w, r, map[string]string{"status": "ok"})
}

// acquire claims the single pipeline slot.
func (s *Server) acquire() bool {
	return s.running.CompareAndSwap(false, true)
}

func (s *Server) release() {
	s.running.Store(false)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
