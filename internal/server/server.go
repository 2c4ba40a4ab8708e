package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/biospace/apiserver/config"
	"github.com/biospace/apiserver/internal/db"
	"github.com/biospace/apiserver/internal/handlers"
	"github.com/biospace/apiserver/internal/mail"
	"github.com/biospace/apiserver/internal/mq"
	"github.com/biospace/apiserver/internal/services"
	"github.com/biospace/apiserver/internal/storage"
	"github.com/biospace/apiserver/internal/store"
	"github.com/biospace/apiserver/internal/token"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Server wraps the HTTP server, router, and owned backend connections.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	sqlDB      *sql.DB
	events     *mq.EventPublisher
	logger     *slog.Logger
}

// New constructs a Server: it connects the configured backends, builds
// the dependency graph, and wires the routes. Connections are owned by
// the returned Server and released by Shutdown.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	logger := slog.Default().With("service", "apiserver")

	if cfg.JWT.AccessSecret == "" || cfg.JWT.RefreshSecret == "" {
		return nil, errors.New("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET are required")
	}

	srv := &Server{logger: logger}

	userRepo, err := srv.connectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	mailer, err := mail.NewSMTPMailer(cfg.SMTP)
	if err != nil {
		srv.closeBackends()
		return nil, err
	}

	issuer := token.NewIssuer(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)

	events, err := connectEvents(ctx, cfg)
	if err != nil {
		srv.closeBackends()
		return nil, err
	}
	srv.events = events

	avatars, err := connectAvatars(ctx, cfg)
	if err != nil {
		srv.closeBackends()
		return nil, err
	}

	authService := services.NewAuthService(userRepo, mailer, issuer, events, avatars, logger)
	inferenceService := services.NewInferenceService(cfg.Upstream)

	requireAuth := handlers.RequireAuth(issuer)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
	)
	router.Get("/", handlers.Root)
	router.Get("/health", handlers.Health)
	router.Post("/ask-gemini", handlers.NewAskHandler(inferenceService).Ask)
	router.Route("/api/user", func(r chi.Router) {
		handlers.UserRouter(r, authService, requireAuth)
	})
	router.NotFound(handlers.NotFound)

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	srv.router = router
	srv.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func (s *Server) connectStore(ctx context.Context, cfg config.Config) (services.UserRepository, error) {
	switch cfg.StoreBackend {
	case "postgres":
		sqlDB, err := db.Open(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		s.sqlDB = sqlDB
		return store.NewPostgresUserRepository(sqlDB), nil
	case "mongo", "":
		mongoDB, err := db.ConnectMongo(ctx, cfg.Mongo)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		repo, err := store.NewMongoUserRepository(ctx, mongoDB)
		if err != nil {
			return nil, fmt.Errorf("init mongo repository: %w", err)
		}
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func connectEvents(ctx context.Context, cfg config.Config) (*mq.EventPublisher, error) {
	switch cfg.MQBackend {
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return mq.NewEventPublisher(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return mq.NewEventPublisher(client), nil
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQBackend)
	}
}

func connectAvatars(ctx context.Context, cfg config.Config) (*storage.AvatarStore, error) {
	var backend storage.ObjectStorage
	switch cfg.StorageBackend {
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, fmt.Errorf("connect minio: %w", err)
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, fmt.Errorf("connect gcs: %w", err)
		}
		backend = client
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	avatars := storage.NewAvatarStore(backend)
	if err := avatars.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure avatar bucket: %w", err)
	}
	return avatars, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown releases owned connections and closes the HTTP server.
func (s *Server) Shutdown() error {
	s.closeBackends()
	return s.httpServer.Close()
}

func (s *Server) closeBackends() {
	if s.sqlDB != nil {
		_ = s.sqlDB.Close()
	}
	if s.events != nil {
		_ = s.events.Close()
	}
}
