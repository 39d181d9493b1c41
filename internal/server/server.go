// Package server is the HTTP surface: flow dispatch, asset upload and
// review, health, and metrics.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contentmix/internal/asset"
	"github.com/sells-group/contentmix/internal/flow"
	"github.com/sells-group/contentmix/internal/metrics"
	"github.com/sells-group/contentmix/internal/model"
	"github.com/sells-group/contentmix/internal/store"
)

// defaultMaxBody bounds JSON request bodies and multipart uploads when no
// limit is configured.
const defaultMaxBody = 32 << 20

// Flows dispatches a flow by name. *flow.Executor implements it.
type Flows interface {
	Run(ctx context.Context, name string, input []byte) (*flow.Result, error)
}

// Ingester analyzes and saves uploads. *asset.Analyzer implements it.
type Ingester interface {
	Ingest(ctx context.Context, up asset.Upload) (*model.Asset, error)
}

// Options configures a Server.
type Options struct {
	CORSOrigins []string
	MaxBody     int64
}

// Server holds the collaborators the handlers use. Any of them may be nil;
// the routes that need a missing one answer 503.
type Server struct {
	flows    Flows
	ingester Ingester
	store    store.Store
	metrics  *metrics.Metrics
	opts     Options
}

// New creates a Server.
func New(flows Flows, ing Ingester, st store.Store, m *metrics.Metrics, opts Options) *Server {
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	return &Server{flows: flows, ingester: ing, store: st, metrics: m, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/flows/{flow}", s.handleRunFlow)
		r.Get("/runs", s.handleListRuns)
		r.Get("/assets", s.handleListAssets)
		r.Post("/assets", s.handleUpload)
		r.Get("/assets/{id}", s.handleGetAsset)
		r.Patch("/assets/{id}", s.handlePatchAsset)
	})
	return r
}

// observe logs each request and feeds the HTTP metrics.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		d := time.Since(start)

		route := ""
		if rc := chi.RouteContext(r.Context()); rc != nil {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.ObserveHTTP(r.Method, route, status, d)
		}
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", d),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			zap.L().Warn("health: store ping failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "store": "unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ResolvePort prefers the flag value over the configured port.
func ResolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// Start serves h on port until ctx is done, then shuts down gracefully
// within the grace period.
func Start(ctx context.Context, h http.Handler, port int, grace time.Duration) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if grace <= 0 {
		grace = 15 * time.Second
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "server: shutdown")
	}
	return nil
}
