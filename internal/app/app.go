package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/config"
	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/kirinyoku/mesa-go/internal/payment"
	"github.com/kirinyoku/mesa-go/internal/postgres"
	"github.com/kirinyoku/mesa-go/internal/redis"
	postgresrepo "github.com/kirinyoku/mesa-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/mesa-go/internal/repository/redis"
	"github.com/kirinyoku/mesa-go/internal/room"
	"github.com/kirinyoku/mesa-go/internal/service"
	"github.com/kirinyoku/mesa-go/internal/service/orders"
	"github.com/kirinyoku/mesa-go/internal/service/publish"
	"github.com/kirinyoku/mesa-go/internal/service/query"
	"github.com/kirinyoku/mesa-go/internal/session"
	httpgin "github.com/kirinyoku/mesa-go/internal/transport/http/gin"
	"golang.org/x/sync/errgroup"
)

const sweepInterval = time.Minute

type App struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpServer *http.Server
	hub        *room.Hub
	pubsub     *redisrepo.RoomsPubSub
	services   *service.Services
}

func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// Initialize dependencies
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.Name,
		cfg.Postgres.SSLMode,
	)

	pgxPool, err := postgres.New(context.Background(), postgres.Config{DSN: dsn})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	rdb, err := redis.New(context.Background(), redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	// Initialize repositories and live-state infrastructure
	store := postgresrepo.NewStore(pgxPool)
	cache := redisrepo.New(rdb)
	pubsub := redisrepo.NewRoomsPubSub(rdb, uuid.New().String())
	limiter := redisrepo.NewSlidingWindowLimiter(rdb, "draft", cfg.Orders.DraftRateLimit, 1*time.Minute)
	idempotencyStore := redisrepo.NewIdempotencyStore(rdb, 2*time.Hour)

	registry := session.NewRegistry()
	hub := room.NewHub(64)
	publisher := publish.New(hub, pubsub, cache, 0)

	var pay payment.Initiator
	if cfg.Payment.GatewayURL != "" {
		pay = payment.NewHTTPClient(cfg.Payment.GatewayURL, 0)
	}

	// Initialize services
	services := service.NewServices(registry, store, cache, publisher, limiter, pay, logger, service.Config{
		Orders: orders.Config{ConfirmWindow: cfg.Orders.ConfirmWindow},
		Query:  query.Config{},
	})

	// Initialize Gin router
	router := httpgin.NewRouter(services, idempotencyStore, logger)

	return &App{
		cfg:      cfg,
		logger:   logger,
		hub:      hub,
		pubsub:   pubsub,
		services: services,
		httpServer: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: router,
		},
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		a.logger.Info("HTTP server listening", "host", a.cfg.Server.Host, "port", a.cfg.Server.Port)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	// Republish events from other instances into local session rooms
	g.Go(func() error {
		err := a.pubsub.Subscribe(gCtx, func(ctx context.Context, ev domain.Event) {
			a.hub.Publish(ev.RoomKey, ev)
		})
		if err != nil && gCtx.Err() == nil {
			return fmt.Errorf("rooms pubsub subscriber: %w", err)
		}
		return nil
	})

	// Roll back orders stuck in pending_confirmation
	g.Go(func() error {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				n, err := a.services.Orders.ExpirePending(gCtx)
				if err != nil {
					a.logger.Error("pending confirmation sweep failed", "error", err)
					continue
				}
				if n > 0 {
					a.logger.Info("rolled back unconfirmed orders", "count", n)
				}
			}
		}
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}
