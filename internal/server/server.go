package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/taskflow/apiserver/config"
	"github.com/taskflow/apiserver/internal/auth"
	"github.com/taskflow/apiserver/internal/db"
	"github.com/taskflow/apiserver/internal/mq"
	"github.com/taskflow/apiserver/internal/services"
	"github.com/taskflow/apiserver/internal/storage"
	"github.com/taskflow/apiserver/internal/store"
)

// Server wraps the HTTP server and the resources it owns.
type Server struct {
	httpServer *http.Server
	router     chi.Router
	db         *sql.DB
	mq         *mq.MQ
	logger     zerolog.Logger
}

// New connects to the database, the message broker and object storage and
// assembles the router.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	codec, err := auth.NewTokenCodec(auth.TokenConfig{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Lifetime: cfg.Auth.TokenLifetime,
	})
	if err != nil {
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("open message queue: %w", err)
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		_ = broker.Close()
		_ = dbConn.Close()
		return nil, fmt.Errorf("open object storage: %w", err)
	}

	userRepo := store.NewUserRepository(dbConn)
	taskRepo := store.NewTaskRepository(dbConn)
	events := mq.NewPublisher(broker)

	router := NewRouter(RouterOptions{
		Logger:         logger,
		Gate:           auth.NewGate(codec, userRepo),
		UserService:    services.NewUserService(userRepo, codec, events),
		TaskService:    services.NewTaskService(taskRepo, userRepo, objects, events),
		StatsService:   services.NewStatsService(userRepo, taskRepo),
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info().
		Int("port", port).
		Str("mq_backend", cfg.MQ.Backend).
		Str("storage_backend", cfg.Storage.Backend).
		Bool("attachments", objects != nil).
		Msg("server configured")

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		mq:         broker,
		logger:     logger,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() chi.Router {
	return s.router
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and releases the database and broker.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.mq != nil {
		if mqErr := s.mq.Close(); mqErr != nil {
			s.logger.Warn().Err(mqErr).Msg("failed to close message queue")
		}
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}
