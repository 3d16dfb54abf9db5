// Package session holds the authoritative live state of one active order:
// the customer's draft, the append-only group ledger (initial group plus
// later batches), the order status and the mutation sequence. An Aggregate
// is never touched directly by viewers; every mutation goes through the
// service entry points under the session's single-writer lock.
package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

var (
	ErrEmptySubmission       = errors.New("nothing to submit")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrInvalidItemTransition = errors.New("invalid item status transition")
	ErrOrderNotProcessing    = errors.New("order not accepting additional batches")
	ErrGroupNotFound         = errors.New("group not found")
	ErrGroupCancelled        = errors.New("group cancelled")
	ErrItemNotFound          = errors.New("item not found")
	ErrArchived              = errors.New("order is archived")
)

// DraftDelta is one customer edit: set an item's quantity, chosen variant
// and chosen toppings in the current draft. Quantity 0 removes the line.
type DraftDelta struct {
	MenuItemID string
	Quantity   int
	VariantID  string
	ToppingIDs []string
}

// Aggregate is one order's live state. All methods assume the caller holds
// the owning Session's lock.
type Aggregate struct {
	Order   domain.Order
	RoomKey string

	draft     []domain.LineItem // ordered; index kept in draftIdx
	draftIdx  map[string]int
	groups    []domain.Batch // append-only ledger, groups[0] = initial group
	seq       uint64
	changedAt time.Time
	archived  bool
}

func New(order domain.Order, roomKey string) *Aggregate {
	return &Aggregate{
		Order:     order,
		RoomKey:   roomKey,
		draftIdx:  make(map[string]int),
		changedAt: order.CreatedAt,
	}
}

func (a *Aggregate) Seq() uint64          { return a.seq }
func (a *Aggregate) Archived() bool       { return a.archived }
func (a *Aggregate) ChangedAt() time.Time { return a.changedAt }

func (a *Aggregate) bump(now time.Time) {
	a.seq++
	a.changedAt = now
}

// ApplyDraft merges one resolved customer edit into the draft and recomputes
// the running total. The reference must already be validated against the
// catalog snapshot.
func (a *Aggregate) ApplyDraft(d DraftDelta, name string, area domain.KitchenArea, unitPrice, toppingSum int64, now time.Time) error {
	if a.archived {
		return ErrArchived
	}

	if d.Quantity <= 0 {
		if i, ok := a.draftIdx[d.MenuItemID]; ok {
			a.draft = append(a.draft[:i], a.draft[i+1:]...)
			delete(a.draftIdx, d.MenuItemID)
			for j := i; j < len(a.draft); j++ {
				a.draftIdx[a.draft[j].MenuItemID] = j
			}
		}
	} else {
		li := domain.LineItem{
			MenuItemID: d.MenuItemID,
			Name:       name,
			Quantity:   d.Quantity,
			VariantID:  d.VariantID,
			ToppingIDs: append([]string(nil), d.ToppingIDs...),
			Area:       area,
			UnitPrice:  unitPrice,
			ToppingSum: toppingSum,
			Status:     domain.ItemInitial,
		}
		if i, ok := a.draftIdx[d.MenuItemID]; ok {
			a.draft[i] = li
		} else {
			a.draftIdx[d.MenuItemID] = len(a.draft)
			a.draft = append(a.draft, li)
		}
	}

	a.recomputeTotal()
	a.bump(now)
	return nil
}

// recomputeTotal rebuilds the running total from scratch: committed group
// subtotals plus the current draft lines. Cancelled groups do not bill.
// Never adjusted incrementally.
func (a *Aggregate) recomputeTotal() {
	var total int64
	for _, g := range a.groups {
		if g.Cancelled {
			continue
		}
		total += g.Subtotal
	}
	for _, li := range a.draft {
		total += li.LineTotal()
	}
	a.Order.TotalPrice = total
}

// StageSubmit validates the draft for submission and builds the would-be
// group without mutating anything. The caller persists the group first and
// then commits with CommitSubmit, so a failed write leaves the aggregate
// untouched.
func (a *Aggregate) StageSubmit(now time.Time) (domain.Batch, error) {
	if a.archived {
		return domain.Batch{}, ErrArchived
	}

	items := make([]domain.LineItem, 0, len(a.draft))
	var subtotal int64
	for _, li := range a.draft {
		if li.Quantity <= 0 {
			continue
		}
		cp := li
		cp.ToppingIDs = append([]string(nil), li.ToppingIDs...)
		cp.Status = domain.ItemInitial
		items = append(items, cp)
		subtotal += cp.LineTotal()
	}
	if len(items) == 0 {
		return domain.Batch{}, ErrEmptySubmission
	}

	// a draft order submits its (next) initial group; additions are only
	// accepted once staff is, or is about to be, on it
	switch a.Order.Status {
	case domain.OrderDraft, domain.OrderPendingConfirmation, domain.OrderProcessing:
	default:
		return domain.Batch{}, fmt.Errorf("%w: status %s", ErrOrderNotProcessing, a.Order.Status)
	}

	return domain.Batch{
		ID:          len(a.groups),
		Items:       items,
		Subtotal:    subtotal,
		SubmittedAt: now,
	}, nil
}

// CommitSubmit appends a staged group to the ledger, clears the draft so the
// next customer edit starts fresh, and moves a submission out of draft to
// pending_confirmation. A resubmission after a rollback counts as a fresh
// initial group even though the ledger already holds cancelled ones.
func (a *Aggregate) CommitSubmit(b domain.Batch, now time.Time) {
	a.groups = append(a.groups, b)
	a.draft = nil
	a.draftIdx = make(map[string]int)
	if a.Order.Status == domain.OrderDraft {
		a.Order.Status = domain.OrderPendingConfirmation
	}
	a.recomputeTotal()
	a.bump(now)
}

// StageTransition validates an order-status change without applying it.
// Entering completed is additionally gated on full item completion.
func (a *Aggregate) StageTransition(to domain.OrderStatus, actor domain.Actor, reason string, now time.Time) (domain.Transition, error) {
	if a.archived {
		return domain.Transition{}, ErrArchived
	}

	from := a.Order.Status
	if !domain.CanTransition(from, to) {
		return domain.Transition{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == domain.OrderCompleted && !a.Completion().Done() {
		return domain.Transition{}, fmt.Errorf("%w: %s -> %s before all items completed", ErrInvalidTransition, from, to)
	}

	return domain.Transition{From: from, To: to, Actor: actor, Reason: reason, At: now}, nil
}

// CommitTransition applies a staged status change. A rollback to draft voids
// every active group: the customer gets the rejected items back in the draft
// to adjust and resubmit, and voided groups stop counting toward the total,
// completion and station queues.
func (a *Aggregate) CommitTransition(t domain.Transition) {
	a.Order.Status = t.To
	if t.To == domain.OrderDraft {
		a.cancelGroups()
	}
	a.bump(t.At)
}

func (a *Aggregate) cancelGroups() {
	for i := range a.groups {
		if a.groups[i].Cancelled {
			continue
		}
		a.groups[i].Cancelled = true
		for _, li := range a.groups[i].Items {
			if _, ok := a.draftIdx[li.MenuItemID]; ok {
				continue
			}
			cp := li
			cp.ToppingIDs = append([]string(nil), li.ToppingIDs...)
			cp.Status = domain.ItemInitial
			cp.StartedAt = nil
			a.draftIdx[cp.MenuItemID] = len(a.draft)
			a.draft = append(a.draft, cp)
		}
	}
	a.recomputeTotal()
}

// StageItemStatus validates an item-status promotion inside a group.
// Re-applying the current status reports changed=false and no error;
// backward transitions are rejected.
func (a *Aggregate) StageItemStatus(batchID int, menuItemID string, to domain.ItemStatus) (bool, error) {
	if a.archived {
		return false, ErrArchived
	}

	li, err := a.item(batchID, menuItemID)
	if err != nil {
		return false, err
	}
	if li.Status == to {
		return false, nil
	}
	if !domain.CanPromoteItem(li.Status, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidItemTransition, li.Status, to)
	}
	return true, nil
}

// CommitItemStatus applies a promotion staged by StageItemStatus. Both run
// under the same session lock, so the ref the stage resolved cannot have
// gone away here; a failed lookup means a commit without a stage and is
// ignored rather than applied blind.
func (a *Aggregate) CommitItemStatus(batchID int, menuItemID string, to domain.ItemStatus, startedAt *time.Time, now time.Time) {
	li, err := a.item(batchID, menuItemID)
	if err != nil {
		return
	}
	li.Status = to
	if startedAt != nil && li.StartedAt == nil {
		li.StartedAt = startedAt
	}
	a.bump(now)
}

func (a *Aggregate) item(batchID int, menuItemID string) (*domain.LineItem, error) {
	if batchID < 0 || batchID >= len(a.groups) {
		return nil, fmt.Errorf("%w: %d", ErrGroupNotFound, batchID)
	}
	if a.groups[batchID].Cancelled {
		return nil, fmt.Errorf("%w: %d", ErrGroupCancelled, batchID)
	}
	items := a.groups[batchID].Items
	for i := range items {
		if items[i].MenuItemID == menuItemID {
			return &items[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s in group %d", ErrItemNotFound, menuItemID, batchID)
}

// Completion counts completed items across the active ledger.
func (a *Aggregate) Completion() domain.Completion {
	var c domain.Completion
	for _, g := range a.groups {
		if g.Cancelled {
			continue
		}
		for _, li := range g.Items {
			c.Total++
			if li.Status == domain.ItemCompleted {
				c.Completed++
			}
		}
	}
	return c
}

// Archive marks the aggregate terminal after payment; any further staged
// mutation fails with ErrArchived.
func (a *Aggregate) Archive() {
	a.archived = true
}

// Snapshot deep-copies the full state for publication. Safe to hand to
// other goroutines.
func (a *Aggregate) Snapshot() domain.Snapshot {
	draft := make([]domain.LineItem, len(a.draft))
	for i, li := range a.draft {
		draft[i] = li
		draft[i].ToppingIDs = append([]string(nil), li.ToppingIDs...)
	}

	groups := make([]domain.Batch, len(a.groups))
	for i, g := range a.groups {
		cp := g
		cp.Items = make([]domain.LineItem, len(g.Items))
		for j, li := range g.Items {
			cp.Items[j] = li
			cp.Items[j].ToppingIDs = append([]string(nil), li.ToppingIDs...)
		}
		groups[i] = cp
	}

	return domain.Snapshot{
		OrderID:    a.Order.ID,
		RoomKey:    a.RoomKey,
		Status:     a.Order.Status,
		Seq:        a.seq,
		Draft:      draft,
		Groups:     groups,
		TotalPrice: a.Order.TotalPrice,
		Completion: a.Completion(),
		CreatedAt:  a.Order.CreatedAt,
	}
}
