package kitchen

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/domain"
	"github.com/kirinyoku/mesa-go/internal/kitchen"
	"github.com/kirinyoku/mesa-go/internal/session"
)

// submittedSession builds a registry holding one order that has been
// submitted but not yet accepted by staff.
func submittedSession(t *testing.T, key string) *session.Registry {
	t.Helper()

	reg := session.NewRegistry()
	sess, _ := reg.GetOrCreate(key, func() *session.Aggregate {
		return session.New(domain.Order{
			ID:        uuid.New(),
			Status:    domain.OrderDraft,
			CreatedAt: time.Now(),
		}, key)
	})

	err := sess.Do(func(a *session.Aggregate) error {
		d := session.DraftDelta{MenuItemID: "pho-bo", Quantity: 1}
		if err := a.ApplyDraft(d, "Pho Bo", "hot", 50000, 0, time.Now()); err != nil {
			return err
		}
		b, err := a.StageSubmit(time.Now())
		if err != nil {
			return err
		}
		a.CommitSubmit(b, time.Now())
		return nil
	})
	if err != nil {
		t.Fatalf("seeding session: %v", err)
	}
	return reg
}

func accept(t *testing.T, reg *session.Registry, key string) {
	t.Helper()

	sess, _ := reg.Get(key)
	err := sess.Do(func(a *session.Aggregate) error {
		tr, err := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", time.Now())
		if err != nil {
			return err
		}
		a.CommitTransition(tr)
		return nil
	})
	if err != nil {
		t.Fatalf("accepting order: %v", err)
	}
}

func testService(reg *session.Registry) *Service {
	return New(reg, nil, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestQueueHiddenUntilAccepted(t *testing.T) {
	reg := submittedSession(t, "table:7")
	s := testService(reg)

	q, err := s.Queue(context.Background(), "table:7", "hot")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(q) != 0 {
		t.Fatalf("queue visible while pending_confirmation: %d items", len(q))
	}

	accept(t, reg, "table:7")

	q, err = s.Queue(context.Background(), "table:7", "hot")
	if err != nil {
		t.Fatalf("Queue: %v", err)
	}
	if len(q) != 1 || q[0].Ref.MenuItemID != "pho-bo" {
		t.Fatalf("queue after accept = %+v, want pho-bo", q)
	}
}

func TestMarkItemRequiresAcceptedOrder(t *testing.T) {
	reg := submittedSession(t, "table:7")
	s := testService(reg)

	ref := kitchen.ItemRef{BatchID: 0, MenuItemID: "pho-bo"}
	if _, err := s.MarkStarted(context.Background(), "table:7", ref); !errors.Is(err, ErrOrderNotProcessing) {
		t.Fatalf("MarkStarted before accept: got %v, want ErrOrderNotProcessing", err)
	}
	if _, err := s.MarkItemStatus(context.Background(), "table:7", ref, domain.ItemCompleted); !errors.Is(err, ErrOrderNotProcessing) {
		t.Fatalf("MarkItemStatus before accept: got %v, want ErrOrderNotProcessing", err)
	}
}
