// Package api serves the pipeline configuration admin API.
package api

import (
	"log/slog"
	"net/http"

	"github.com/GoCodeAlone/pipelineapi/cache"
	"github.com/GoCodeAlone/pipelineapi/observability"
	"github.com/GoCodeAlone/pipelineapi/representer"
	"github.com/GoCodeAlone/pipelineapi/service"
)

// Config holds configuration for the API layer.
type Config struct {
	// JWTSecret signs admin tokens. Empty disables authentication.
	JWTSecret string //nolint:gosec // config field
	// BaseURL roots the hrefs in _links. When empty, links use the scheme
	// and host of each request.
	BaseURL string
	// RateLimit is the number of requests per minute allowed per client
	// IP. Zero disables limiting.
	RateLimit int

	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Deps groups the collaborators the handlers need.
type Deps struct {
	Service *service.PipelineConfigService
	Codec   *representer.Codec
	ETags   *cache.ETags
}

type linkResolver func(r *http.Request) *representer.LinkBuilder

func newLinkResolver(base string) linkResolver {
	if base != "" {
		b := representer.NewLinkBuilder(base)
		return func(*http.Request) *representer.LinkBuilder { return b }
	}
	return func(r *http.Request) *representer.LinkBuilder {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if fwd := r.Header.Get("X-Forwarded-Proto"); fwd != "" {
			scheme = fwd
		}
		return representer.NewLinkBuilder(scheme + "://" + r.Host)
	}
}

// Router routes admin API requests. Call Close to stop background work.
type Router struct {
	mux *http.ServeMux
	mw  *Middleware
}

// NewRouter registers every admin API route.
func NewRouter(deps Deps, cfg Config) *Router {
	mux := http.NewServeMux()
	mw := NewMiddleware([]byte(cfg.JWTSecret), cfg.Logger, cfg.Metrics)
	links := newLinkResolver(cfg.BaseURL)
	limit := mw.RateLimit(cfg.RateLimit)

	handle := func(pattern, route string, h http.HandlerFunc) {
		mux.Handle(pattern, mw.Observe(route, mw.RequestID(limit(mw.RequireAuth(h)))))
	}

	pipelineH := NewPipelineHandler(deps.Service, deps.Codec, deps.ETags, links, cfg.Metrics, cfg.Logger)
	handle("GET /api/admin/pipelines/{name}", "/api/admin/pipelines/{name}", pipelineH.Show)
	handle("PUT /api/admin/pipelines/{name}", "/api/admin/pipelines/{name}", pipelineH.Update)
	handle("GET /api/admin/pipelines/{name}/history", "/api/admin/pipelines/{name}/history", pipelineH.History)

	groupH := NewGroupHandler(deps.Service, deps.Codec, links, cfg.Logger)
	handle("GET /api/admin/pipeline_groups", "/api/admin/pipeline_groups", groupH.List)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	return &Router{mux: mux, mw: mw}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) { rt.mux.ServeHTTP(w, r) }

// Close stops the rate limiter's cleanup goroutine.
func (rt *Router) Close() { rt.mw.Stop() }
