package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"muadati/internal/config"
	"muadati/internal/models"
	"muadati/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// HTTPOptions carries the collaborators of the public HTTP API.
type HTTPOptions struct {
	Config    *config.Config
	Auth      *service.AuthService
	Equipment *service.EquipmentService
	Requests  *service.RequestService
	// UploadsDir is served under the uploads URL prefix when set.
	UploadsDir string
	// Ready reports whether dependencies are reachable for /readyz.
	Ready  func(ctx context.Context) error
	Logger *zerolog.Logger
}

// HTTPServer exposes the REST API.
type HTTPServer struct {
	cfg       *config.Config
	auth      *service.AuthService
	equipment *service.EquipmentService
	requests  *service.RequestService
	ready     func(ctx context.Context) error
	errs      errorWriter
	router    chi.Router
	server    *http.Server
	logger    *zerolog.Logger
}

func NewHTTPServer(opts HTTPOptions) *HTTPServer {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &HTTPServer{
		cfg:       opts.Config,
		auth:      opts.Auth,
		equipment: opts.Equipment,
		requests:  opts.Requests,
		ready:     opts.Ready,
		errs:      errorWriter{production: opts.Config.IsProduction(), logger: logger},
		logger:    logger,
	}
	s.router = s.routes(opts.UploadsDir)

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Config.API.HTTP.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

func (s *HTTPServer) routes(uploadsDir string) chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	limiter := newRateLimiter(s.cfg.API.RateLimit.RPS, s.cfg.API.RateLimit.Burst)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	if uploadsDir != "" {
		prefix := "/" + strings.Trim(s.cfg.Uploads.URLPrefix, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix+"/", http.FileServer(http.Dir(uploadsDir))))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(limiter))

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", s.handleRegister)
			r.Post("/login", s.handleLogin)
			r.Group(func(r chi.Router) {
				r.Use(s.protect)
				r.Get("/me", s.handleMe)
				r.Post("/logout", s.handleLogout)
			})
		})

		r.Route("/equipment", func(r chi.Router) {
			r.Get("/", s.handleListEquipment)
			r.Get("/owner/{ownerId}", s.handleListOwnerEquipment)
			r.Get("/{id}", s.handleGetEquipment)
			r.Group(func(r chi.Router) {
				r.Use(s.protect, s.requireRole(models.RoleOwner))
				r.Post("/", s.handleCreateEquipment)
				r.Put("/{id}", s.handleUpdateEquipment)
				r.Delete("/{id}", s.handleDeleteEquipment)
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Use(s.protect)
			r.With(s.requireRole(models.RoleCustomer)).Post("/", s.handleCreateRequest)
			r.With(s.requireRole(models.RoleCustomer)).Get("/customer", s.handleCustomerRequests)
			r.With(s.requireRole(models.RoleOwner)).Get("/owner", s.handleOwnerRequests)
			r.With(s.requireRole(models.RoleOwner)).Get("/owner/export", s.handleExportOwnerRequests)
			r.Put("/{id}/status", s.handleUpdateRequestStatus)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		s.errs.message(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		s.errs.message(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return errors.New("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ok"})
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("readiness check failed")
			s.errs.message(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "ready"})
}
