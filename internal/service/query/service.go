package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/catalog"
	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/kirinyoku/mesa-go/internal/repository"
	postgresrepo "github.com/kirinyoku/mesa-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/mesa-go/internal/repository/redis"
	"github.com/kirinyoku/mesa-go/internal/room"
	"github.com/kirinyoku/mesa-go/internal/session"
)

type Config struct {
	CatalogTTL time.Duration
}

// Service is the read side: menu/catalog lookups, room snapshots for join
// and refresh, and the join/leave lifecycle of viewer subscriptions.
type Service struct {
	registry *session.Registry
	store    *postgresrepo.Store
	cache    *redisrepo.Cache
	hub      *room.Hub
	cfg      Config
}

func New(
	registry *session.Registry,
	store *postgresrepo.Store,
	cache *redisrepo.Cache,
	hub *room.Hub,
	cfg Config,
) *Service {
	if cfg.CatalogTTL <= 0 {
		cfg.CatalogTTL = 5 * time.Minute
	}

	return &Service{
		registry: registry,
		store:    store,
		cache:    cache,
		hub:      hub,
		cfg:      cfg,
	}
}

// Menu returns the raw catalog rows, redis-cached with a singleflight
// loader so a cold cache hits postgres once.
func (s *Service) Menu(ctx context.Context) ([]domain.MenuItem, error) {
	const op = "service.query.Menu"

	items, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyCatalog(),
		s.cfg.CatalogTTL,
		func(ctx context.Context) ([]domain.MenuItem, error) {
			return s.store.Catalog().ListMenu(ctx)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return items, nil
}

// RefreshCatalog drops the cached menu and reloads it from postgres. Called
// by staff after editing menu rows so tables see the change without waiting
// out the TTL.
func (s *Service) RefreshCatalog(ctx context.Context) ([]domain.MenuItem, error) {
	const op = "service.query.RefreshCatalog"

	if s.cache != nil {
		if err := s.cache.InvalidateCatalog(ctx); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}
	return s.Menu(ctx)
}

// Catalog builds the indexed menu snapshot used for draft validation.
func (s *Service) Catalog(ctx context.Context) (*catalog.Snapshot, error) {
	items, err := s.Menu(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.NewSnapshot(items), nil
}

// Snapshot returns the current full state of one order: from the local
// session when this instance owns it, otherwise from the cached copy the
// owning instance published last.
func (s *Service) Snapshot(ctx context.Context, roomKey string) (domain.Snapshot, error) {
	const op = "service.query.Snapshot"

	if sess, ok := s.registry.Get(roomKey); ok {
		var snap domain.Snapshot
		_ = sess.Do(func(a *session.Aggregate) error {
			snap = a.Snapshot()
			return nil
		})
		return snap, nil
	}

	if s.cache != nil {
		snap, ok, err := redisrepo.GetJSON[domain.Snapshot](ctx, s.cache, redisrepo.KeyRoomSnapshot(roomKey))
		if err == nil && ok {
			return snap, nil
		}
	}

	return domain.Snapshot{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
}

// Order looks one order up by id in postgres, returning the persisted row
// and its room key. Works for archived orders whose session left memory.
func (s *Service) Order(ctx context.Context, id uuid.UUID) (*domain.Order, string, error) {
	const op = "service.query.Order"

	o, roomKey, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", fmt.Errorf("%s:%w", op, ErrOrderNotFound)
		}
		return nil, "", fmt.Errorf("%s:%w", op, err)
	}

	return o, roomKey, nil
}

// Completion reports the item completion aggregate for one order.
func (s *Service) Completion(ctx context.Context, roomKey string) (domain.Completion, error) {
	snap, err := s.Snapshot(ctx, roomKey)
	if err != nil {
		return domain.Completion{}, err
	}
	return snap.Completion, nil
}

// Join subscribes a viewer to an order's session room and hands it the
// current full snapshot first, so a late joiner never renders from deltas
// alone.
func (s *Service) Join(ctx context.Context, roomKey string, kind room.ViewerKind, area domain.KitchenArea) (*room.Handle, domain.Snapshot, error) {
	const op = "service.query.Join"

	snap, err := s.Snapshot(ctx, roomKey)
	if err != nil {
		return nil, domain.Snapshot{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	h := s.hub.Join(roomKey, kind, area)

	// first frame: the snapshot baseline; a fresher one may already be in
	// flight behind it, which the viewer applies idempotently
	snap, err = s.Snapshot(ctx, roomKey)
	if err != nil {
		s.hub.Leave(roomKey, h)
		return nil, domain.Snapshot{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}
	h.Send(domain.Event{
		Type:     domain.EventSnapshot,
		RoomKey:  roomKey,
		Seq:      snap.Seq,
		Snapshot: &snap,
		At:       time.Now(),
	})

	return h, snap, nil
}

// Leave drops a viewer subscription; the room is collected with its last
// viewer.
func (s *Service) Leave(roomKey string, h *room.Handle) {
	s.hub.Leave(roomKey, h)
}
