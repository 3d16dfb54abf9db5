package service

import (
	"log/slog"

	"github.com/kirinyoku/mesa-go/internal/payment"
	postgresrepo "github.com/kirinyoku/mesa-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/mesa-go/internal/repository/redis"
	kitchensvc "github.com/kirinyoku/mesa-go/internal/service/kitchen"
	"github.com/kirinyoku/mesa-go/internal/service/orders"
	"github.com/kirinyoku/mesa-go/internal/service/publish"
	"github.com/kirinyoku/mesa-go/internal/service/query"
	"github.com/kirinyoku/mesa-go/internal/session"
)

type Services struct {
	Orders  *orders.Service
	Kitchen *kitchensvc.Service
	Query   *query.Service
}

type Config struct {
	Orders orders.Config
	Query  query.Config
}

func NewServices(
	registry *session.Registry,
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	pub *publish.Publisher,
	limiter *redisrepo.SlidingWindowLimiter,
	pay payment.Initiator,
	logger *slog.Logger,
	cfg Config,
) *Services {
	querySvc := query.New(registry, store, cache, pub.Hub(), cfg.Query)

	return &Services{
		Orders:  orders.New(registry, store, pub, limiter, querySvc, logger, cfg.Orders),
		Kitchen: kitchensvc.New(registry, store, pub, pay, logger),
		Query:   querySvc,
	}
}
