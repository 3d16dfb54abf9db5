package domain

import "time"

type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorStaff    Actor = "staff"
	ActorKitchen  Actor = "kitchen"
	ActorSystem   Actor = "system"
)

// Transition records one order-status change together with who initiated it
// and why, so rollbacks are never reconstructed from guesswork.
type Transition struct {
	From   OrderStatus `json:"from"`
	To     OrderStatus `json:"to"`
	Actor  Actor       `json:"actor"`
	Reason string      `json:"reason,omitempty"`
	At     time.Time   `json:"at"`
}

// allowedTransitions is the order lifecycle:
// draft → pending_confirmation → processing → completed, plus the
// staff/system rollback paths back to draft.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderDraft:               {OrderPendingConfirmation},
	OrderPendingConfirmation: {OrderProcessing, OrderDraft},
	OrderProcessing:          {OrderCompleted, OrderDraft},
	OrderCompleted:           {},
}

func CanTransition(from, to OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

var itemRank = map[ItemStatus]int{
	ItemInitial:   0,
	ItemPreparing: 1,
	ItemCompleted: 2,
}

// CanPromoteItem reports whether an item status change moves strictly
// forward (initial → preparing → completed). Re-applying the current status
// is not a promotion; callers treat it as a no-op, not an error.
func CanPromoteItem(from, to ItemStatus) bool {
	fromRank, ok := itemRank[from]
	if !ok {
		return false
	}
	toRank, ok := itemRank[to]
	if !ok {
		return false
	}
	return toRank > fromRank
}
