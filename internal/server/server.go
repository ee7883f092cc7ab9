package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/sweetshop/apiserver/config"
	"github.com/sweetshop/apiserver/internal/auth"
	"github.com/sweetshop/apiserver/internal/db"
	"github.com/sweetshop/apiserver/internal/handlers"
	"github.com/sweetshop/apiserver/internal/mq"
	"github.com/sweetshop/apiserver/internal/services"
	"github.com/sweetshop/apiserver/internal/storage"
	"github.com/sweetshop/apiserver/internal/store"
)

// Server wraps the HTTP server, router, and owned resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     mq.Backend
	log        zerolog.Logger
}

// New wires the application together and seeds the administrator account.
func New(ctx context.Context, cfg config.Config, log zerolog.Logger) (*Server, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	tokens, err := auth.NewTokenService(
		cfg.Token.SecretKey,
		cfg.Token.Algorithm,
		time.Duration(cfg.Token.TTLMinutes)*time.Minute,
	)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open event broker: %w", err)
	}

	images, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = dbConn.Close()
		if broker != nil {
			_ = broker.Close()
		}
		return nil, fmt.Errorf("open image storage: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	sweetRepo := store.NewSweetRepository(dbConn)

	authService := services.NewAuthService(userRepo, tokens, services.AdminPolicy{
		Email:    cfg.Admin.Email,
		Password: cfg.Admin.Password,
		Secret:   cfg.Admin.Secret,
	}, log)

	var publisher services.EventPublisher
	if broker != nil {
		publisher = broker
	}
	var imageStore services.ObjectStore
	if images != nil {
		imageStore = images
	}
	sweetService := services.NewSweetService(sweetRepo, publisher, imageStore, log)

	if err := authService.SeedAdmin(ctx); err != nil {
		log.Error().Err(err).Msg("administrator seeding failed")
	}

	authHandler := handlers.NewAuthHandler(authService, tokens, log)
	sweetHandler := handlers.NewSweetHandler(sweetService, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		requestLogger(log),
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Route("/api/sweets", func(r chi.Router) {
		handlers.SweetRouter(r, sweetHandler, authHandler.Authenticate)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration in tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("server listening")
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown and releases owned resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func requestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapped.Status()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("request")
		})
	}
}
