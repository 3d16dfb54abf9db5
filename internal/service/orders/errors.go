package orders

import "errors"

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrInvalidReference      = errors.New("invalid menu reference")
	ErrEmptySubmission       = errors.New("nothing selected to submit")
	ErrInvalidTransition     = errors.New("invalid order status transition")
	ErrDraftLocked           = errors.New("draft locked while awaiting confirmation")
	ErrConflictingSubmission = errors.New("submission kind does not match order state")
	ErrOrderArchived         = errors.New("order is archived")
	ErrRateLimited           = errors.New("rate limited")
)
