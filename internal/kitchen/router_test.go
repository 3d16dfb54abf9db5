package kitchen

import (
	"testing"
	"time"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

var base = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func testOrderSnapshot() domain.Snapshot {
	started := base.Add(30 * time.Second)
	return domain.Snapshot{
		Status: domain.OrderProcessing,
		Groups: []domain.Batch{
			{
				ID:          0,
				SubmittedAt: base,
				Items: []domain.LineItem{
					{MenuItemID: "pho-bo", Name: "Pho Bo", Quantity: 2, Area: "hot", Status: domain.ItemInitial},
					{MenuItemID: "iced-tea", Name: "Iced Tea", Quantity: 1, Area: "drinks", Status: domain.ItemInitial},
					{MenuItemID: "spring-rolls", Name: "Spring Rolls", Quantity: 1, Area: "cold", Status: domain.ItemCompleted},
				},
			},
			{
				ID:          1,
				SubmittedAt: base.Add(10 * time.Minute),
				Items: []domain.LineItem{
					{MenuItemID: "bun-cha", Name: "Bun Cha", Quantity: 1, Area: "hot", Status: domain.ItemPreparing, StartedAt: &started},
				},
			},
		},
	}
}

func TestQueueForFiltersArea(t *testing.T) {
	q := QueueFor(testOrderSnapshot(), "drinks")
	if len(q) != 1 {
		t.Fatalf("drinks queue has %d items, want 1", len(q))
	}
	if q[0].Ref.MenuItemID != "iced-tea" {
		t.Errorf("queued %q, want iced-tea", q[0].Ref.MenuItemID)
	}
}

func TestQueueForExcludesCompleted(t *testing.T) {
	q := QueueFor(testOrderSnapshot(), "cold")
	if len(q) != 0 {
		t.Fatalf("cold queue has %d items, want 0 (item completed)", len(q))
	}
}

// bun-cha started 30s after the initial group was submitted, so the untouched
// pho-bo has been waiting longer and stays at the head of the hot queue.
func TestQueueForFIFO(t *testing.T) {
	q := QueueFor(testOrderSnapshot(), "hot")
	if len(q) != 2 {
		t.Fatalf("hot queue has %d items, want 2", len(q))
	}
	if q[0].Ref.MenuItemID != "pho-bo" || q[1].Ref.MenuItemID != "bun-cha" {
		t.Errorf("hot queue order: %s, %s", q[0].Ref.MenuItemID, q[1].Ref.MenuItemID)
	}
	if q[0].Ref.BatchID != 0 {
		t.Errorf("head BatchID = %d, want 0", q[0].Ref.BatchID)
	}
}

func TestQueueForTieBreakByBatch(t *testing.T) {
	snap := domain.Snapshot{
		Status: domain.OrderProcessing,
		Groups: []domain.Batch{
			{ID: 0, SubmittedAt: base, Items: []domain.LineItem{
				{MenuItemID: "a", Area: "hot", Status: domain.ItemInitial},
				{MenuItemID: "b", Area: "hot", Status: domain.ItemInitial},
			}},
			{ID: 1, SubmittedAt: base, Items: []domain.LineItem{
				{MenuItemID: "c", Area: "hot", Status: domain.ItemInitial},
			}},
		},
	}

	q := QueueFor(snap, "hot")
	want := []string{"a", "b", "c"}
	if len(q) != len(want) {
		t.Fatalf("queue has %d items, want %d", len(q), len(want))
	}
	for i, id := range want {
		if q[i].Ref.MenuItemID != id {
			t.Errorf("q[%d] = %s, want %s", i, q[i].Ref.MenuItemID, id)
		}
	}
}

// An order staff has not accepted yet never reaches the stations, no matter
// how many items its ledger holds.
func TestQueueForHiddenBeforeProcessing(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderDraft, domain.OrderPendingConfirmation, domain.OrderCompleted} {
		snap := testOrderSnapshot()
		snap.Status = status
		if q := QueueFor(snap, "hot"); len(q) != 0 {
			t.Errorf("status %s: hot queue has %d items, want 0", status, len(q))
		}
		if areas := Areas(snap); len(areas) != 0 {
			t.Errorf("status %s: Areas = %v, want none", status, areas)
		}
	}
}

func TestQueueForExcludesCancelledGroups(t *testing.T) {
	snap := testOrderSnapshot()
	snap.Groups[0].Cancelled = true

	q := QueueFor(snap, "hot")
	if len(q) != 1 || q[0].Ref.MenuItemID != "bun-cha" {
		t.Fatalf("hot queue = %+v, want only bun-cha", q)
	}

	snap.Groups[1].Cancelled = true
	if areas := Areas(snap); len(areas) != 0 {
		t.Errorf("Areas over cancelled ledger = %v, want none", areas)
	}
}

func TestQueueForEmptyArea(t *testing.T) {
	if q := QueueFor(testOrderSnapshot(), "grill"); len(q) != 0 {
		t.Errorf("grill queue has %d items, want 0", len(q))
	}
}

func TestAreas(t *testing.T) {
	got := Areas(testOrderSnapshot())
	want := []domain.KitchenArea{"drinks", "hot"}
	if len(got) != len(want) {
		t.Fatalf("Areas = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Areas = %v, want %v", got, want)
		}
	}
}
