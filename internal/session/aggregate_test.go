package session

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/mesa-go/internal/domain"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestAggregate() *Aggregate {
	return New(domain.Order{
		ID:        uuid.New(),
		Status:    domain.OrderDraft,
		CreatedAt: testNow,
	}, "table:7")
}

func mustApply(t *testing.T, a *Aggregate, id string, qty int, unit, toppings int64) {
	t.Helper()
	d := DraftDelta{MenuItemID: id, Quantity: qty}
	if err := a.ApplyDraft(d, id, "hot", unit, toppings, testNow); err != nil {
		t.Fatalf("ApplyDraft(%s): %v", id, err)
	}
}

func mustSubmit(t *testing.T, a *Aggregate) domain.Batch {
	t.Helper()
	b, err := a.StageSubmit(testNow)
	if err != nil {
		t.Fatalf("StageSubmit: %v", err)
	}
	a.CommitSubmit(b, testNow)
	return b
}

func TestDraftTotalRecompute(t *testing.T) {
	a := newTestAggregate()

	mustApply(t, a, "pho-bo", 2, 50000, 5000)
	if a.Order.TotalPrice != 110000 {
		t.Fatalf("TotalPrice = %d, want 110000", a.Order.TotalPrice)
	}

	mustApply(t, a, "iced-tea", 1, 10000, 0)
	if a.Order.TotalPrice != 120000 {
		t.Fatalf("TotalPrice = %d, want 120000", a.Order.TotalPrice)
	}

	// re-setting a line replaces it, never accumulates
	mustApply(t, a, "pho-bo", 1, 50000, 5000)
	if a.Order.TotalPrice != 65000 {
		t.Fatalf("TotalPrice = %d, want 65000", a.Order.TotalPrice)
	}

	// quantity 0 removes the line
	mustApply(t, a, "iced-tea", 0, 10000, 0)
	if a.Order.TotalPrice != 55000 {
		t.Fatalf("TotalPrice = %d, want 55000", a.Order.TotalPrice)
	}
}

func TestSeqBumpsOnEveryMutation(t *testing.T) {
	a := newTestAggregate()
	if a.Seq() != 0 {
		t.Fatalf("fresh aggregate Seq = %d", a.Seq())
	}

	mustApply(t, a, "pho-bo", 1, 50000, 0)
	if a.Seq() != 1 {
		t.Fatalf("Seq after draft edit = %d, want 1", a.Seq())
	}

	mustSubmit(t, a)
	if a.Seq() != 2 {
		t.Fatalf("Seq after submit = %d, want 2", a.Seq())
	}
}

func TestSubmitEmptyDraft(t *testing.T) {
	a := newTestAggregate()
	if _, err := a.StageSubmit(testNow); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("empty submit: got %v, want ErrEmptySubmission", err)
	}

	// a draft reduced back to nothing must also be rejected
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustApply(t, a, "pho-bo", 0, 50000, 0)
	if _, err := a.StageSubmit(testNow); !errors.Is(err, ErrEmptySubmission) {
		t.Fatalf("emptied submit: got %v, want ErrEmptySubmission", err)
	}
}

func TestInitialSubmitMovesToPendingConfirmation(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 2, 50000, 5000)

	b := mustSubmit(t, a)
	if b.ID != domain.InitialGroupID {
		t.Errorf("first group ID = %d, want %d", b.ID, domain.InitialGroupID)
	}
	if b.Subtotal != 110000 {
		t.Errorf("Subtotal = %d, want 110000", b.Subtotal)
	}
	if a.Order.Status != domain.OrderPendingConfirmation {
		t.Errorf("Status = %s, want pending_confirmation", a.Order.Status)
	}

	snap := a.Snapshot()
	if len(snap.Draft) != 0 {
		t.Errorf("draft not cleared after submit: %d lines", len(snap.Draft))
	}
}

func TestRollbackRestoresDraftForReorder(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 2, 50000, 5000)
	mustSubmit(t, a)

	tr, err := a.StageTransition(domain.OrderDraft, domain.ActorStaff, "out of stock", testNow)
	if err != nil {
		t.Fatalf("StageTransition: %v", err)
	}
	a.CommitTransition(tr)

	snap := a.Snapshot()
	if !snap.Groups[0].Cancelled {
		t.Error("rejected group not cancelled")
	}
	if len(snap.Draft) != 1 || snap.Draft[0].MenuItemID != "pho-bo" {
		t.Fatalf("draft not restored: %+v", snap.Draft)
	}
	if snap.TotalPrice != 110000 {
		t.Errorf("TotalPrice after rollback = %d, want 110000 (draft only)", snap.TotalPrice)
	}
	if snap.Completion.Total != 0 {
		t.Errorf("cancelled group still counts toward completion: %+v", snap.Completion)
	}

	// the customer adjusts and submits again; this re-enters
	// pending_confirmation with the next ledger id
	mustApply(t, a, "iced-tea", 1, 10000, 0)
	b := mustSubmit(t, a)
	if b.ID != 1 {
		t.Errorf("resubmitted group ID = %d, want 1", b.ID)
	}
	if a.Order.Status != domain.OrderPendingConfirmation {
		t.Errorf("Status after resubmit = %s, want pending_confirmation", a.Order.Status)
	}
	if a.Order.TotalPrice != 120000 {
		t.Errorf("TotalPrice after resubmit = %d, want 120000", a.Order.TotalPrice)
	}
	if got := a.Completion(); got.Total != 2 {
		t.Errorf("Completion.Total = %d, want 2", got.Total)
	}

	// items in the voided group are no longer addressable
	if _, err := a.StageItemStatus(0, "pho-bo", domain.ItemPreparing); !errors.Is(err, ErrGroupCancelled) {
		t.Errorf("item in cancelled group: got %v, want ErrGroupCancelled", err)
	}
}

func TestRollbackResetsStartedItems(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustSubmit(t, a)

	tr, _ := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", testNow)
	a.CommitTransition(tr)
	started := testNow.Add(time.Minute)
	a.CommitItemStatus(0, "pho-bo", domain.ItemPreparing, &started, started)

	tr, err := a.StageTransition(domain.OrderDraft, domain.ActorStaff, "customer changed mind", started)
	if err != nil {
		t.Fatalf("StageTransition: %v", err)
	}
	a.CommitTransition(tr)

	snap := a.Snapshot()
	if len(snap.Draft) != 1 {
		t.Fatalf("draft not restored: %+v", snap.Draft)
	}
	d := snap.Draft[0]
	if d.Status != domain.ItemInitial {
		t.Errorf("restored line status = %s, want initial", d.Status)
	}
	if d.StartedAt != nil {
		t.Errorf("restored line keeps StartedAt = %v", d.StartedAt)
	}
}

func TestSubmitRejectedWhenCompleted(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustSubmit(t, a)

	tr, _ := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", testNow)
	a.CommitTransition(tr)
	a.CommitItemStatus(0, "pho-bo", domain.ItemCompleted, nil, testNow)
	tr, err := a.StageTransition(domain.OrderCompleted, domain.ActorKitchen, "", testNow)
	if err != nil {
		t.Fatalf("StageTransition: %v", err)
	}
	a.CommitTransition(tr)

	mustApply(t, a, "iced-tea", 1, 10000, 0)
	if _, err := a.StageSubmit(testNow); !errors.Is(err, ErrOrderNotProcessing) {
		t.Fatalf("submit on completed order: got %v, want ErrOrderNotProcessing", err)
	}
}

func TestAdditionsGetGaplessIDs(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustSubmit(t, a)

	tr, err := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", testNow)
	if err != nil {
		t.Fatalf("StageTransition: %v", err)
	}
	a.CommitTransition(tr)

	for want := 1; want <= 3; want++ {
		mustApply(t, a, "iced-tea", want, 10000, 0)
		b := mustSubmit(t, a)
		if b.ID != want {
			t.Fatalf("group ID = %d, want %d", b.ID, want)
		}
	}

	snap := a.Snapshot()
	for i, g := range snap.Groups {
		if g.ID != i {
			t.Errorf("Groups[%d].ID = %d", i, g.ID)
		}
	}
}

func TestAdditionDoesNotChangeOrderStatus(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustSubmit(t, a)

	tr, _ := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", testNow)
	a.CommitTransition(tr)

	mustApply(t, a, "iced-tea", 2, 10000, 0)
	mustSubmit(t, a)

	if a.Order.Status != domain.OrderProcessing {
		t.Errorf("Status after addition = %s, want processing", a.Order.Status)
	}
	if a.Order.TotalPrice != 70000 {
		t.Errorf("TotalPrice = %d, want 70000", a.Order.TotalPrice)
	}
}

func TestCompletionGatesCompletedTransition(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustApply(t, a, "iced-tea", 1, 10000, 0)
	mustSubmit(t, a)

	tr, _ := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", testNow)
	a.CommitTransition(tr)

	if _, err := a.StageTransition(domain.OrderCompleted, domain.ActorStaff, "", testNow); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completed with pending items: got %v, want ErrInvalidTransition", err)
	}

	for _, id := range []string{"pho-bo", "iced-tea"} {
		changed, err := a.StageItemStatus(domain.InitialGroupID, id, domain.ItemCompleted)
		if err != nil || !changed {
			t.Fatalf("StageItemStatus(%s): changed=%v err=%v", id, changed, err)
		}
		a.CommitItemStatus(domain.InitialGroupID, id, domain.ItemCompleted, nil, testNow)
	}
	if !a.Completion().Done() {
		t.Fatalf("Completion = %+v, want done", a.Completion())
	}

	if _, err := a.StageTransition(domain.OrderCompleted, domain.ActorStaff, "", testNow); err != nil {
		t.Fatalf("completed with all items done: %v", err)
	}
}

func TestItemStatusPromotion(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustSubmit(t, a)

	// same status is a silent no-op
	changed, err := a.StageItemStatus(0, "pho-bo", domain.ItemInitial)
	if err != nil || changed {
		t.Fatalf("re-apply initial: changed=%v err=%v", changed, err)
	}

	started := testNow.Add(time.Minute)
	a.CommitItemStatus(0, "pho-bo", domain.ItemPreparing, &started, started)
	snap := a.Snapshot()
	li := snap.Groups[0].Items[0]
	if li.Status != domain.ItemPreparing {
		t.Fatalf("Status = %s, want preparing", li.Status)
	}
	if li.StartedAt == nil || !li.StartedAt.Equal(started) {
		t.Fatalf("StartedAt = %v, want %v", li.StartedAt, started)
	}

	// backward transition is rejected
	if _, err := a.StageItemStatus(0, "pho-bo", domain.ItemInitial); !errors.Is(err, ErrInvalidItemTransition) {
		t.Fatalf("backward transition: got %v, want ErrInvalidItemTransition", err)
	}

	// StartedAt is written once; completing later must not overwrite it
	later := started.Add(5 * time.Minute)
	a.CommitItemStatus(0, "pho-bo", domain.ItemCompleted, &later, later)
	snap = a.Snapshot()
	if got := snap.Groups[0].Items[0].StartedAt; !got.Equal(started) {
		t.Fatalf("StartedAt overwritten: %v", got)
	}
}

func TestItemStatusUnknownRefs(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	mustSubmit(t, a)

	if _, err := a.StageItemStatus(5, "pho-bo", domain.ItemPreparing); !errors.Is(err, ErrGroupNotFound) {
		t.Errorf("bad group: got %v, want ErrGroupNotFound", err)
	}
	if _, err := a.StageItemStatus(0, "no-such", domain.ItemPreparing); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("bad item: got %v, want ErrItemNotFound", err)
	}
}

func TestArchivedRejectsMutations(t *testing.T) {
	a := newTestAggregate()
	mustApply(t, a, "pho-bo", 1, 50000, 0)
	a.Archive()

	if err := a.ApplyDraft(DraftDelta{MenuItemID: "x", Quantity: 1}, "x", "hot", 1000, 0, testNow); !errors.Is(err, ErrArchived) {
		t.Errorf("ApplyDraft on archived: got %v", err)
	}
	if _, err := a.StageSubmit(testNow); !errors.Is(err, ErrArchived) {
		t.Errorf("StageSubmit on archived: got %v", err)
	}
	if _, err := a.StageTransition(domain.OrderPendingConfirmation, domain.ActorStaff, "", testNow); !errors.Is(err, ErrArchived) {
		t.Errorf("StageTransition on archived: got %v", err)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	a := newTestAggregate()
	d := DraftDelta{MenuItemID: "pho-bo", Quantity: 1, ToppingIDs: []string{"extra-beef"}}
	if err := a.ApplyDraft(d, "Pho Bo", "hot", 50000, 5000, testNow); err != nil {
		t.Fatalf("ApplyDraft: %v", err)
	}
	mustSubmit(t, a)

	snap := a.Snapshot()
	snap.Groups[0].Items[0].Status = domain.ItemCompleted
	snap.Groups[0].Items[0].ToppingIDs[0] = "mutated"

	fresh := a.Snapshot()
	if fresh.Groups[0].Items[0].Status != domain.ItemInitial {
		t.Error("snapshot mutation leaked into aggregate item status")
	}
	if fresh.Groups[0].Items[0].ToppingIDs[0] != "extra-beef" {
		t.Error("snapshot mutation leaked into aggregate topping IDs")
	}
}

// The running total must always equal the sum of committed group subtotals
// plus the live draft lines, no matter the edit sequence.
func TestTotalInvariantRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	items := []string{"a", "b", "c", "d", "e"}

	for run := 0; run < 50; run++ {
		a := newTestAggregate()
		for step := 0; step < 100; step++ {
			id := items[rng.Intn(len(items))]
			qty := rng.Intn(4) // 0 removes
			unit := int64(1000 * (1 + rng.Intn(50)))
			mustApply(t, a, id, qty, unit, 0)

			if rng.Intn(10) == 0 {
				if b, err := a.StageSubmit(testNow); err == nil {
					a.CommitSubmit(b, testNow)
					if a.Order.Status == domain.OrderPendingConfirmation {
						tr, terr := a.StageTransition(domain.OrderProcessing, domain.ActorStaff, "", testNow)
						if terr != nil {
							t.Fatalf("run %d: StageTransition: %v", run, terr)
						}
						a.CommitTransition(tr)
					}
				}
			}

			snap := a.Snapshot()
			var want int64
			for _, g := range snap.Groups {
				want += g.Subtotal
			}
			for _, li := range snap.Draft {
				want += li.LineTotal()
			}
			if snap.TotalPrice != want {
				t.Fatalf("run %d step %d: TotalPrice = %d, want %d", run, step, snap.TotalPrice, want)
			}
		}
	}
}
