package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventSnapshot      EventType = "snapshot"
	EventItemStatus    EventType = "item_status"
	EventBatchAppended EventType = "batch_appended"
	EventStatusChanged EventType = "status_changed"
)

// Snapshot is the full current state of one order as published to its
// session room. Seq is the order's mutation sequence: it increases by one on
// every committed mutation, and a viewer ignores any snapshot whose Seq is
// behind its own last locally-issued mutation.
type Snapshot struct {
	OrderID    uuid.UUID   `json:"order_id"`
	RoomKey    string      `json:"room_key"`
	Status     OrderStatus `json:"status"`
	Seq        uint64      `json:"seq"`
	Draft      []LineItem  `json:"draft"`
	Groups     []Batch     `json:"groups"` // groups[0] is the initial group
	TotalPrice int64       `json:"total_price"`
	Completion Completion  `json:"completion"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ItemStatusDelta reports one line item's status promotion inside a group.
type ItemStatusDelta struct {
	BatchID    int        `json:"batch_id"`
	MenuItemID string     `json:"menu_item_id"`
	Status     ItemStatus `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

// BatchDelta carries a freshly appended batch.
type BatchDelta struct {
	Batch Batch `json:"batch"`
}

// StatusDelta carries an order-status transition, actor and reason included.
type StatusDelta struct {
	Transition Transition  `json:"transition"`
	Status     OrderStatus `json:"status"`
}

// Event is the one wire shape fanned out to every viewer joined to a session
// room: either a full snapshot or exactly one incremental delta. Seq matches
// the order's mutation sequence at publish time, so deltas can be applied
// contiguously and a gap tells the viewer its baseline is stale.
type Event struct {
	Type     EventType        `json:"type"`
	RoomKey  string           `json:"room_key"`
	Seq      uint64           `json:"seq"`
	Snapshot *Snapshot        `json:"snapshot,omitempty"`
	Item     *ItemStatusDelta `json:"item,omitempty"`
	Batch    *BatchDelta      `json:"batch,omitempty"`
	Status   *StatusDelta     `json:"status,omitempty"`
	At       time.Time        `json:"at"`
}
