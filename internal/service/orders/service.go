package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/catalog"
	"github.com/kirinyoku/mesa-go/internal/domain"
	postgresrepo "github.com/kirinyoku/mesa-go/internal/repository/postgres"
	redisrepo "github.com/kirinyoku/mesa-go/internal/repository/redis"
	"github.com/kirinyoku/mesa-go/internal/service/publish"
	"github.com/kirinyoku/mesa-go/internal/session"
	"github.com/kirinyoku/mesa-go/internal/uow"
)

// CatalogProvider supplies the per-session menu snapshot used to validate
// draft mutations.
type CatalogProvider interface {
	Catalog(ctx context.Context) (*catalog.Snapshot, error)
}

type Config struct {
	// ConfirmWindow is how long an order may sit in pending_confirmation
	// before the sweeper rolls it back to draft.
	ConfirmWindow time.Duration
}

// Service owns every mutation of live order state: customer draft edits,
// draft submission (initial group and later batches) and order-status
// transitions. Mutations for one order are serialized by its session lock;
// persistence commits first and publication happens in the after-commit
// hook, so nothing is ever emitted for a write that did not land.
type Service struct {
	registry *session.Registry
	store    *postgresrepo.Store
	uow      *uow.UoW
	pub      *publish.Publisher
	limiter  *redisrepo.SlidingWindowLimiter
	catalog  CatalogProvider
	logger   *slog.Logger
	cfg      Config
}

func New(
	registry *session.Registry,
	store *postgresrepo.Store,
	pub *publish.Publisher,
	limiter *redisrepo.SlidingWindowLimiter,
	catalogProvider CatalogProvider,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.ConfirmWindow <= 0 {
		cfg.ConfirmWindow = 10 * time.Minute
	}

	return &Service{
		registry: registry,
		store:    store,
		uow:      uow.NewUoW(store),
		pub:      pub,
		limiter:  limiter,
		catalog:  catalogProvider,
		logger:   logger,
		cfg:      cfg,
	}
}

// Open resolves a room key (table number or online-order id) to its live
// order, creating and persisting a fresh draft order on first use.
func (s *Service) Open(ctx context.Context, roomKey string, owner domain.OwnerRef) (domain.Snapshot, error) {
	const op = "service.orders.Open"

	now := time.Now()
	sess, created := s.registry.GetOrCreate(roomKey, func() *session.Aggregate {
		return session.New(domain.Order{
			ID:        uuid.New(),
			Owner:     owner,
			Status:    domain.OrderDraft,
			CreatedAt: now,
		}, roomKey)
	})

	var snap domain.Snapshot
	err := sess.Do(func(a *session.Aggregate) error {
		if created {
			if err := s.store.Orders().Insert(ctx, a.Order, roomKey); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}
		snap = a.Snapshot()
		return nil
	})
	if err != nil {
		if created {
			s.registry.Remove(roomKey)
		}
		return domain.Snapshot{}, err
	}

	return snap, nil
}

// ApplyDraftMutation merges one customer edit into the order's draft,
// recomputes the total and publishes the resulting snapshot to the session
// room, all in one synchronous call. The returned snapshot carries the
// mutation sequence the viewer uses to ignore stale echoes.
func (s *Service) ApplyDraftMutation(ctx context.Context, roomKey string, d session.DraftDelta, rlKey string) (domain.Snapshot, error) {
	const op = "service.orders.ApplyDraftMutation"

	if s.limiter != nil && rlKey != "" {
		ok, _, retry, err := s.limiter.Allow(ctx, rlKey)
		if err != nil {
			return domain.Snapshot{}, fmt.Errorf("%s:%w", op, err)
		}
		if !ok {
			return domain.Snapshot{}, fmt.Errorf("%s:%w, retry in %s", op, ErrRateLimited, retry)
		}
	}

	cat, err := s.catalog.Catalog(ctx)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%s:%w", op, err)
	}

	resolved, err := cat.Resolve(d.MenuItemID, d.VariantID, d.ToppingIDs)
	if err != nil {
		return domain.Snapshot{}, fmt.Errorf("%s: %v: %w", op, err, ErrInvalidReference)
	}

	sess, ok := s.registry.Get(roomKey)
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	var snap domain.Snapshot
	err = sess.Do(func(a *session.Aggregate) error {
		switch a.Order.Status {
		case domain.OrderDraft, domain.OrderProcessing:
		default:
			return fmt.Errorf("%s:%w: status %s", op, ErrDraftLocked, a.Order.Status)
		}

		if err := a.ApplyDraft(d, resolved.Name, resolved.Area, resolved.UnitPrice, resolved.ToppingSum, time.Now()); err != nil {
			return fmt.Errorf("%s:%w", op, mapSessionErr(err))
		}

		snap = a.Snapshot()
		s.pub.Snapshot(ctx, snap)
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	return snap, nil
}

// SubmitDraft freezes the non-empty draft lines into the order's initial
// group (first submission) or a new batch (isAddition), persists the group,
// clears the draft and publishes. Returns the new group's ledger id.
func (s *Service) SubmitDraft(ctx context.Context, roomKey string, isAddition bool) (domain.Snapshot, int, error) {
	const op = "service.orders.SubmitDraft"

	sess, ok := s.registry.Get(roomKey)
	if !ok {
		return domain.Snapshot{}, 0, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	var (
		snap    domain.Snapshot
		groupID int
	)
	err := sess.Do(func(a *session.Aggregate) error {
		now := time.Now()
		initial := a.Order.Status == domain.OrderDraft

		staged, err := a.StageSubmit(now)
		if err != nil {
			return fmt.Errorf("%s:%w", op, mapSessionErr(err))
		}
		if isAddition == initial {
			return fmt.Errorf("%s:%w", op, ErrConflictingSubmission)
		}

		var transition *domain.Transition
		if initial {
			t, err := a.StageTransition(domain.OrderPendingConfirmation, domain.ActorCustomer, "order submitted", now)
			if err != nil {
				return fmt.Errorf("%s:%w", op, mapSessionErr(err))
			}
			transition = &t
		}

		err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			if err := s.store.Groups().With(tx).Insert(ctx, a.Order.ID, staged); err != nil {
				return err
			}
			if transition != nil {
				total := a.Order.TotalPrice
				if err := s.store.Orders().With(tx).RecordTransition(ctx, a.Order.ID, *transition, total); err != nil {
					return err
				}
			}

			after(func(ctx context.Context) {
				a.CommitSubmit(staged, now)
				snap = a.Snapshot()
				groupID = staged.ID

				if !initial {
					s.pub.Delta(ctx, domain.Event{
						Type:    domain.EventBatchAppended,
						RoomKey: roomKey,
						Seq:     snap.Seq,
						Batch:   &domain.BatchDelta{Batch: staged},
						At:      now,
					}, snap)
				}
				s.pub.Snapshot(ctx, snap)
			})
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, 0, err
	}

	return snap, groupID, nil
}

// TransitionStatus applies one enforced order-status change (staff
// accept/reject, sweeper rollback, completion). The initiating actor and
// reason travel with the transition event.
func (s *Service) TransitionStatus(ctx context.Context, roomKey string, to domain.OrderStatus, actor domain.Actor, reason string) (domain.Snapshot, error) {
	const op = "service.orders.TransitionStatus"

	sess, ok := s.registry.Get(roomKey)
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	var snap domain.Snapshot
	err := sess.Do(func(a *session.Aggregate) error {
		return s.transitionLocked(ctx, op, roomKey, a, to, actor, reason, &snap)
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	return snap, nil
}

// transitionLocked stages, persists and publishes one transition. Caller
// holds the session lock.
func (s *Service) transitionLocked(
	ctx context.Context,
	op, roomKey string,
	a *session.Aggregate,
	to domain.OrderStatus,
	actor domain.Actor,
	reason string,
	snap *domain.Snapshot,
) error {
	now := time.Now()

	t, err := a.StageTransition(to, actor, reason, now)
	if err != nil {
		return fmt.Errorf("%s:%w", op, mapSessionErr(err))
	}

	err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
		if err := s.store.Orders().With(tx).RecordTransition(ctx, a.Order.ID, t, a.Order.TotalPrice); err != nil {
			return err
		}
		if t.To == domain.OrderDraft {
			if err := s.store.Groups().With(tx).CancelActive(ctx, a.Order.ID); err != nil {
				return err
			}
		}

		after(func(ctx context.Context) {
			a.CommitTransition(t)
			*snap = a.Snapshot()
			if t.To == domain.OrderDraft {
				// a rollback voids groups and reshapes the draft; no single
				// delta carries that, so viewers get the full snapshot
				s.pub.Snapshot(ctx, *snap)
				return
			}
			s.pub.Delta(ctx, domain.Event{
				Type:    domain.EventStatusChanged,
				RoomKey: roomKey,
				Seq:     snap.Seq,
				Status:  &domain.StatusDelta{Transition: t, Status: t.To},
				At:      now,
			}, *snap)
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}
	return nil
}

// Archive closes out a completed order once the table is released; the
// session stops being reachable and all further mutation fails.
func (s *Service) Archive(ctx context.Context, roomKey string) error {
	const op = "service.orders.Archive"

	sess, ok := s.registry.Get(roomKey)
	if !ok {
		return fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	err := sess.Do(func(a *session.Aggregate) error {
		if a.Order.Status != domain.OrderCompleted {
			return fmt.Errorf("%s:%w: status %s", op, ErrInvalidTransition, a.Order.Status)
		}
		if err := s.store.Orders().Archive(ctx, a.Order.ID); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
		a.Archive()
		return nil
	})
	if err != nil {
		return err
	}

	s.registry.Remove(roomKey)
	s.pub.Forget(ctx, roomKey)
	return nil
}

// ExpirePending rolls orders stuck in pending_confirmation past the
// configured window back to draft, notifying the customer through the room.
// Run periodically by the app.
func (s *Service) ExpirePending(ctx context.Context) (int, error) {
	const op = "service.orders.ExpirePending"

	var rolledBack int
	for _, key := range s.registry.Keys() {
		sess, ok := s.registry.Get(key)
		if !ok {
			continue
		}

		var snap domain.Snapshot
		err := sess.Do(func(a *session.Aggregate) error {
			if a.Order.Status != domain.OrderPendingConfirmation {
				return nil
			}
			if time.Since(a.ChangedAt()) < s.cfg.ConfirmWindow {
				return nil
			}
			if err := s.transitionLocked(ctx, op, key, a, domain.OrderDraft, domain.ActorSystem, "confirmation timeout", &snap); err != nil {
				return err
			}
			rolledBack++
			return nil
		})
		if err != nil {
			s.logger.Error("pending confirmation rollback failed", "room", key, "error", err)
		}
	}

	return rolledBack, nil
}

// mapSessionErr lifts aggregate sentinels into this package's taxonomy so
// callers only ever match service errors.
func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, session.ErrEmptySubmission):
		return fmt.Errorf("%v: %w", err, ErrEmptySubmission)
	case errors.Is(err, session.ErrInvalidTransition):
		return fmt.Errorf("%v: %w", err, ErrInvalidTransition)
	case errors.Is(err, session.ErrOrderNotProcessing):
		return fmt.Errorf("%v: %w", err, ErrConflictingSubmission)
	case errors.Is(err, session.ErrArchived):
		return fmt.Errorf("%v: %w", err, ErrOrderArchived)
	default:
		return err
	}
}
