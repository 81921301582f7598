package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/authloop/authserver/config"
	"github.com/authloop/authserver/internal/audit"
	"github.com/authloop/authserver/internal/bus"
	"github.com/authloop/authserver/internal/cache"
	"github.com/authloop/authserver/internal/db"
	"github.com/authloop/authserver/internal/handlers"
	"github.com/authloop/authserver/internal/mailer"
	"github.com/authloop/authserver/internal/services"
	"github.com/authloop/authserver/internal/store"
	"github.com/authloop/authserver/internal/token"
)

// Server wraps the HTTP server and the process-lifetime dependencies it
// owns: the database pool, the code cache, and the audit recorder.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	recorder   *audit.Recorder
	closers    []io.Closer
}

// New constructs a fully wired Server from config.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var closers []io.Closer

	codes, codeCloser, err := newCodeCache(ctx, cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if codeCloser != nil {
		closers = append(closers, codeCloser)
	}

	mail, err := newMailer(cfg, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	sink, sinkCloser, err := newAuditSink(ctx, cfg, dbConn, logger)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if sinkCloser != nil {
		closers = append(closers, sinkCloser)
	}
	recorder := audit.NewRecorder(sink, cfg.Audit.BufferSize, logger)

	issuer := token.NewIssuer(cfg.JWTSecret)
	userRepo := store.NewUserRepository(dbConn)
	authService := services.NewAuthService(
		userRepo,
		codes,
		mail,
		issuer,
		services.BcryptHasher{},
		recorder,
		logger,
		cfg.PublicURL,
	)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, issuer)
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
		recorder:   recorder,
		closers:    closers,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the HTTP server first so no handler can record while
// the audit recorder drains, then releases owned resources.
func (s *Server) Shutdown() error {
	err := s.httpServer.Close()
	if s.recorder != nil {
		s.recorder.Close()
	}
	for _, closer := range s.closers {
		_ = closer.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

func newCodeCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.CodeCache, io.Closer, error) {
	if strings.TrimSpace(cfg.Redis.Addr) == "" {
		logger.Warn("REDIS_ADDR not set, using in-process code cache")
		memory := cache.NewMemoryCache()
		return memory, memory, nil
	}
	redisCache, err := cache.NewRedisCache(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	return redisCache, redisCache, nil
}

func newMailer(cfg config.Config, logger *slog.Logger) (mailer.Mailer, error) {
	if strings.TrimSpace(cfg.SMTP.Host) == "" {
		logger.Warn("SMTP_HOST not set, mail will be logged instead of delivered")
		return mailer.NewLogMailer(logger), nil
	}
	return mailer.NewSMTPMailer(cfg.SMTP)
}

func newAuditSink(ctx context.Context, cfg config.Config, dbConn *sql.DB, logger *slog.Logger) (audit.Sink, io.Closer, error) {
	switch cfg.Audit.Sink {
	case "postgres", "":
		return audit.NewPostgresSink(dbConn), nil, nil
	case "bus":
		eventBus, err := NewBus(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return audit.NewBusSink(eventBus), eventBus, nil
	case "log":
		return audit.NewLogSink(logger), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown audit sink %q", cfg.Audit.Sink)
	}
}

// NewBus constructs the configured audit event bus backend. Shared with
// the audit tail and archive commands.
func NewBus(ctx context.Context, cfg config.Config) (bus.Bus, error) {
	switch cfg.Bus.Backend {
	case "rabbitmq", "":
		return bus.NewRabbitMQBus(cfg.Bus.RabbitMQ)
	case "pubsub":
		return bus.NewPubSubBus(ctx, cfg.Bus.PubSub)
	default:
		return nil, fmt.Errorf("unknown bus backend %q", cfg.Bus.Backend)
	}
}
