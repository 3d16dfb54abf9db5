package kitchen

import "errors"

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrItemNotFound          = errors.New("item not found")
	ErrInvalidItemTransition = errors.New("invalid item status transition")
	ErrOrderNotProcessing    = errors.New("order not in preparation")
	ErrOrderArchived         = errors.New("order is archived")
)
