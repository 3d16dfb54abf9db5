package httpgin

import "github.com/kirinyoku/mesa-go/internal/domain"

type OpenOrderRequest struct {
	TableNumber *int    `json:"table_number"`
	CustomerID  *string `json:"customer_id"`
}

type DraftMutationRequest struct {
	MenuItemID string   `json:"menu_item_id" binding:"required"`
	Quantity   int      `json:"quantity" binding:"min=0"`
	VariantID  string   `json:"variant_id"`
	ToppingIDs []string `json:"topping_ids"`
}

type SubmitDraftRequest struct {
	Addition bool `json:"addition"`
}

type SubmitDraftResponse struct {
	GroupID  int             `json:"group_id"`
	Snapshot domain.Snapshot `json:"snapshot"`
}

type TransitionRequest struct {
	To     domain.OrderStatus `json:"to" binding:"required"`
	Actor  domain.Actor       `json:"actor" binding:"required"`
	Reason string             `json:"reason"`
}

type ItemStartRequest struct {
	BatchID    int    `json:"batch_id" binding:"min=0"`
	MenuItemID string `json:"menu_item_id" binding:"required"`
}

type ItemStatusRequest struct {
	BatchID    int               `json:"batch_id" binding:"min=0"`
	MenuItemID string            `json:"menu_item_id" binding:"required"`
	Status     domain.ItemStatus `json:"status" binding:"required"`
}

type OrderLookupResponse struct {
	Order   domain.Order `json:"order"`
	RoomKey string       `json:"room_key"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
