package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/signage-server/signage-server-pro/internal/auth"
	"github.com/signage-server/signage-server-pro/internal/config"
	"github.com/signage-server/signage-server-pro/internal/distributor"
	"github.com/signage-server/signage-server-pro/internal/registry"
	"github.com/signage-server/signage-server-pro/internal/storage"
	"github.com/signage-server/signage-server-pro/internal/transport"
	"github.com/signage-server/signage-server-pro/internal/validation"
)

// RESTServer represents the admin REST API server. It also mounts the
// display-unit session endpoint so units and operators share one port.
type RESTServer struct {
	config      *config.Config
	store       storage.Store
	registry    *registry.Registry
	distributor *distributor.Distributor
	hub         *transport.Hub
	auth        *auth.JWTManager
	validator   *validation.Validator
	router      chi.Router
	server      *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, store storage.Store, reg *registry.Registry, dist *distributor.Distributor, hub *transport.Hub) *RESTServer {
	s := &RESTServer{
		config:      cfg,
		store:       store,
		registry:    reg,
		distributor: dist,
		hub:         hub,
		auth:        auth.NewJWTManager(&cfg.JWT),
		validator:   validation.NewValidator(),
		router:      chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Display unit session endpoint. Units authenticate via the
	// registration handshake, not JWT.
	s.router.Get(s.config.Transport.EndpointPath, s.hub.ServeWS)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// authMiddleware is the authentication middleware
func (s *RESTServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.respondError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.respondError(w, http.StatusUnauthorized, "invalid authorization header")
			return
		}

		claims, err := s.auth.ValidateToken(parts[1])
		if err != nil {
			s.respondError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type contextKey string

const claimsContextKey contextKey = "claims"

// claimsFromContext returns the authenticated claims, nil on public routes
func claimsFromContext(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}
