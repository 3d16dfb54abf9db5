package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderDraft               OrderStatus = "draft"
	OrderPendingConfirmation OrderStatus = "pending_confirmation"
	OrderProcessing          OrderStatus = "processing"
	OrderCompleted           OrderStatus = "completed"
)

type ItemStatus string

const (
	ItemInitial   ItemStatus = "initial"
	ItemPreparing ItemStatus = "preparing"
	ItemCompleted ItemStatus = "completed"
)

// KitchenArea is a cooking-station tag (e.g. "hot", "grill", "cold", "drinks")
// used to route line items to the right station display.
type KitchenArea string

// InitialGroupID is the ledger id of the order's first submitted group.
// Later additions get ids 1, 2, ... (gapless).
const InitialGroupID = 0

// OwnerRef identifies who the order belongs to: a dine-in table or an
// online customer, never both.
type OwnerRef struct {
	TableNumber *int    `json:"table_number,omitempty"`
	CustomerID  *string `json:"customer_id,omitempty"`
}

type LineItem struct {
	MenuItemID string      `json:"menu_item_id"`
	Name       string      `json:"name"`
	Quantity   int         `json:"quantity"`
	VariantID  string      `json:"variant_id,omitempty"`
	ToppingIDs []string    `json:"topping_ids,omitempty"`
	Area       KitchenArea `json:"area"`
	UnitPrice  int64       `json:"unit_price"`
	ToppingSum int64       `json:"topping_sum"`
	Status     ItemStatus  `json:"status"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
}

// LineTotal is quantity × (variant-or-base price + topping prices).
func (li LineItem) LineTotal() int64 {
	return int64(li.Quantity) * (li.UnitPrice + li.ToppingSum)
}

// Batch is an immutable group of line items submitted together. The initial
// group is batch 0; "ordered more later" groups follow with monotonic ids.
// Only the Status/StartedAt fields of its items ever change after append.
type Batch struct {
	ID          int        `json:"id"`
	Items       []LineItem `json:"items"`
	Subtotal    int64      `json:"subtotal"`
	SubmittedAt time.Time  `json:"submitted_at"`
	Cancelled   bool       `json:"cancelled,omitempty"`
}

type Order struct {
	ID         uuid.UUID   `json:"id"`
	Owner      OwnerRef    `json:"owner"`
	Status     OrderStatus `json:"status"`
	TotalPrice int64       `json:"total_price"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Completion aggregates item completion across the initial group and all
// batches. The order may enter OrderCompleted iff Completed == Total > 0.
type Completion struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

func (c Completion) Done() bool {
	return c.Total > 0 && c.Completed == c.Total
}

// --- catalog ---

type Variant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Topping struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type MenuItem struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	BasePrice int64       `json:"base_price"`
	Variants  []Variant   `json:"variants,omitempty"`
	Toppings  []Topping   `json:"toppings,omitempty"`
	Area      KitchenArea `json:"area"`
	Available bool        `json:"available"`
}
