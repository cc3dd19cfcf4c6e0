// Package httpapi exposes registration, login and village records over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/villagekeeper/internal/logging"
	"github.com/dmitrijs2005/villagekeeper/internal/server/authz"
	"github.com/dmitrijs2005/villagekeeper/internal/server/identity"
	"github.com/dmitrijs2005/villagekeeper/internal/server/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 10 * time.Second

// Logouter is implemented by providers that support server-side logout.
type Logouter interface {
	Logout(ctx context.Context, principal *identity.Principal) error
}

type HTTPServer struct {
	address     string
	identity    identity.Provider
	villages    *services.VillageService
	corsOrigins []string
	logger      logging.Logger
	engine      *gin.Engine
}

type Option func(*HTTPServer)

// WithCORSOrigins enables CORS for the given origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *HTTPServer) {
		s.corsOrigins = origins
	}
}

func NewHTTPServer(a string, l logging.Logger, provider identity.Provider, vs *services.VillageService, opts ...Option) *HTTPServer {
	s := &HTTPServer{
		address:  a,
		logger:   l.With("module", "http_server"),
		identity: provider,
		villages: vs,
	}
	for _, o := range opts {
		o(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.engine
}

func (s *HTTPServer) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.logger))

	if len(s.corsOrigins) > 0 {
		cfg := cors.DefaultConfig()
		cfg.AllowOrigins = s.corsOrigins
		cfg.AllowCredentials = true
		cfg.AddAllowHeaders("Authorization")
		r.Use(cors.New(cfg))
	}

	r.GET("/health", s.health)
	r.POST("/register", s.register)
	r.POST("/login", s.login)

	authed := r.Group("/", authz.Authenticate(s.identity, s.logger))
	if lo, ok := s.identity.(Logouter); ok {
		authed.POST("/logout", s.logout(lo))
	}

	authed.GET("/users", s.listUsers)
	authed.DELETE("/users/:id", s.deleteUser)
	authed.DELETE("/user/:id", s.deleteUser)

	authed.GET("/village", s.listVillages)
	authed.POST("/village", s.createVillage)
	authed.GET("/village/:id", s.getVillage)
	authed.GET("/village/:id/image", s.villageImage)
	authed.DELETE("/village/:id", s.deleteVillage)

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
