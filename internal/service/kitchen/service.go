package kitchen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/kirinyoku/mesa-go/internal/kitchen"
	"github.com/kirinyoku/mesa-go/internal/payment"
	postgresrepo "github.com/kirinyoku/mesa-go/internal/repository/postgres"
	"github.com/kirinyoku/mesa-go/internal/service/publish"
	"github.com/kirinyoku/mesa-go/internal/session"
	"github.com/kirinyoku/mesa-go/internal/uow"
)

// Service is the station-facing side: per-area queues, start-of-prep
// marking and item completion. Completing the last outstanding item
// auto-transitions the order to completed and kicks off payment initiation.
type Service struct {
	registry *session.Registry
	store    *postgresrepo.Store
	uow      *uow.UoW
	pub      *publish.Publisher
	pay      payment.Initiator
	logger   *slog.Logger
}

func New(
	registry *session.Registry,
	store *postgresrepo.Store,
	pub *publish.Publisher,
	pay payment.Initiator,
	logger *slog.Logger,
) *Service {
	if pay == nil {
		pay = payment.Noop{}
	}

	return &Service{
		registry: registry,
		store:    store,
		uow:      uow.NewUoW(store),
		pub:      pub,
		pay:      pay,
		logger:   logger,
	}
}

// Queue returns the outstanding items for one cooking area, FIFO. Built
// fresh from the current snapshot on every call; stations poll or refresh on
// room events, there is no cursor to resume.
func (s *Service) Queue(ctx context.Context, roomKey string, area domain.KitchenArea) ([]kitchen.QueueItem, error) {
	const op = "service.kitchen.Queue"

	sess, ok := s.registry.Get(roomKey)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	var snap domain.Snapshot
	_ = sess.Do(func(a *session.Aggregate) error {
		snap = a.Snapshot()
		return nil
	})

	return kitchen.QueueFor(snap, area), nil
}

// MarkStarted flags an item as being prepared and records the start
// timestamp for elapsed-time display. Already-preparing items are a no-op.
func (s *Service) MarkStarted(ctx context.Context, roomKey string, ref kitchen.ItemRef) (domain.Snapshot, error) {
	return s.markItem(ctx, "service.kitchen.MarkStarted", roomKey, ref, domain.ItemPreparing)
}

// MarkItemStatus promotes one item's status. Idempotent: re-applying the
// current status changes nothing; backward transitions are rejected.
func (s *Service) MarkItemStatus(ctx context.Context, roomKey string, ref kitchen.ItemRef, status domain.ItemStatus) (domain.Snapshot, error) {
	return s.markItem(ctx, "service.kitchen.MarkItemStatus", roomKey, ref, status)
}

func (s *Service) markItem(ctx context.Context, op, roomKey string, ref kitchen.ItemRef, status domain.ItemStatus) (domain.Snapshot, error) {
	sess, ok := s.registry.Get(roomKey)
	if !ok {
		return domain.Snapshot{}, fmt.Errorf("%s:%w", op, ErrOrderNotFound)
	}

	var (
		snap     domain.Snapshot
		complete bool
	)
	err := sess.Do(func(a *session.Aggregate) error {
		now := time.Now()

		// items only move while staff has the order accepted
		if a.Order.Status != domain.OrderProcessing {
			return fmt.Errorf("%s:%w: status %s", op, ErrOrderNotProcessing, a.Order.Status)
		}

		changed, err := a.StageItemStatus(ref.BatchID, ref.MenuItemID, status)
		if err != nil {
			return fmt.Errorf("%s:%w", op, mapSessionErr(err))
		}
		if !changed {
			snap = a.Snapshot()
			return nil
		}

		err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
			if err := s.store.Groups().With(tx).UpdateItemStatus(ctx, a.Order.ID, ref.BatchID, ref.MenuItemID, status); err != nil {
				return err
			}

			after(func(ctx context.Context) {
				var startedAt *time.Time
				if status == domain.ItemPreparing {
					startedAt = &now
				}
				a.CommitItemStatus(ref.BatchID, ref.MenuItemID, status, startedAt, now)
				snap = a.Snapshot()

				s.pub.Delta(ctx, domain.Event{
					Type:    domain.EventItemStatus,
					RoomKey: roomKey,
					Seq:     snap.Seq,
					Item: &domain.ItemStatusDelta{
						BatchID:    ref.BatchID,
						MenuItemID: ref.MenuItemID,
						Status:     status,
						StartedAt:  startedAt,
					},
					At: now,
				}, snap)
			})
			return nil
		})
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		// last completion closes the order and unlocks payment
		if status == domain.ItemCompleted &&
			a.Order.Status == domain.OrderProcessing &&
			a.Completion().Done() {
			t, err := a.StageTransition(domain.OrderCompleted, domain.ActorKitchen, "all items completed", now)
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}

			err = s.uow.Do(ctx, func(ctx context.Context, tx postgresrepo.DB, after func(uow.AfterCommit)) error {
				if err := s.store.Orders().With(tx).RecordTransition(ctx, a.Order.ID, t, a.Order.TotalPrice); err != nil {
					return err
				}

				after(func(ctx context.Context) {
					a.CommitTransition(t)
					snap = a.Snapshot()
					complete = true
					s.pub.Delta(ctx, domain.Event{
						Type:    domain.EventStatusChanged,
						RoomKey: roomKey,
						Seq:     snap.Seq,
						Status:  &domain.StatusDelta{Transition: t, Status: t.To},
						At:      now,
					}, snap)
				})
				return nil
			})
			if err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	if complete {
		go s.initiatePayment(snap)
	}

	return snap, nil
}

func (s *Service) initiatePayment(snap domain.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	redirect, err := s.pay.Initiate(ctx, snap.OrderID, snap.TotalPrice)
	if err != nil {
		s.logger.Error("payment initiation failed", "order_id", snap.OrderID, "error", err)
		return
	}
	s.logger.Info("payment initiated", "order_id", snap.OrderID, "amount", snap.TotalPrice, "redirect", redirect)
}

func mapSessionErr(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidItemTransition):
		return fmt.Errorf("%v: %w", err, ErrInvalidItemTransition)
	case errors.Is(err, session.ErrGroupNotFound),
		errors.Is(err, session.ErrGroupCancelled),
		errors.Is(err, session.ErrItemNotFound):
		return fmt.Errorf("%v: %w", err, ErrItemNotFound)
	case errors.Is(err, session.ErrArchived):
		return fmt.Errorf("%v: %w", err, ErrOrderArchived)
	default:
		return err
	}
}
