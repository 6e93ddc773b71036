// Package server exposes the public lead submission endpoint and the
// password-gated admin endpoint over HTTP.
package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/truepath-leads/intake-cli/internal/crmsync"
	"github.com/truepath-leads/intake-cli/internal/store"
)

// Config holds the HTTP-layer knobs.
type Config struct {
	// AllowedOrigins is the explicit CORS allow-list for the public
	// submission route.
	AllowedOrigins []string
	// PreviewOriginSuffix additionally admits preview-deployment
	// subdomains, e.g. ".preview.truepathleads.com".
	PreviewOriginSuffix string
	// TrustProxy controls whether X-Forwarded-For / X-Real-IP headers are
	// honored when deriving the caller IP for rate limiting. Leave false
	// when the server is reachable directly, or callers can rotate the
	// header to evade the per-IP limit.
	TrustProxy bool
}

// Server wires the handlers to their collaborators.
type Server struct {
	store   store.Store
	syncer  *crmsync.Syncer
	auth    Authenticator
	limiter RateLimiter
	cfg     Config
}

// New creates a Server.
func New(st store.Store, syncer *crmsync.Syncer, auth Authenticator, limiter RateLimiter, cfg Config) *Server {
	return &Server{
		store:   st,
		syncer:  syncer,
		auth:    auth,
		limiter: limiter,
		cfg:     cfg,
	}
}

// allowOrigin implements the submission route's CORS policy: exact matches
// against the allow-list, plus suffix-matched preview deployments.
func (s *Server) allowOrigin(r *http.Request, origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == strings.TrimSuffix(allowed, "/") {
			return true
		}
	}
	if s.cfg.PreviewOriginSuffix != "" &&
		strings.HasPrefix(origin, "https://") &&
		strings.HasSuffix(origin, s.cfg.PreviewOriginSuffix) {
		return true
	}
	return false
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc: s.allowOrigin,
			AllowedMethods:  []string{http.MethodPost, http.MethodOptions},
			AllowedHeaders:  []string{"Content-Type"},
			MaxAge:          300,
		}))
		r.Post("/api/leads", s.handleSubmit)
	})

	r.Group(func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", adminPasswordHeader},
		}))
		r.Use(s.requireAdmin)
		r.Get("/api/admin/leads", s.handleAdminList)
		r.Post("/api/admin/leads", s.handleAdminAction)
	})

	return r
}

// requireAdmin rejects every admin operation with a uniform 401 unless the
// authenticator accepts the request.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Verify(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
