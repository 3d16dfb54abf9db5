// Package kitchen derives per-station views of outstanding line items. The
// router holds no state of its own: each call is a fresh projection over an
// order snapshot, so station displays can refresh at any pace.
package kitchen

import (
	"sort"
	"time"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

// ItemRef addresses one line item inside the group ledger.
type ItemRef struct {
	BatchID    int    `json:"batch_id"`
	MenuItemID string `json:"menu_item_id"`
}

// QueueItem is one station-display row.
type QueueItem struct {
	Ref          ItemRef           `json:"ref"`
	Name         string            `json:"name"`
	Quantity     int               `json:"quantity"`
	VariantID    string            `json:"variant_id,omitempty"`
	ToppingIDs   []string          `json:"topping_ids,omitempty"`
	Status       domain.ItemStatus `json:"status"`
	WaitingSince time.Time         `json:"waiting_since"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`

	batchSeq int
	index    int
}

// QueueFor projects a snapshot onto one cooking area: items across the
// initial group and all batches whose area tag matches and whose status is
// still initial or preparing. Stations only see orders staff has accepted;
// cancelled groups never queue. FIFO order: oldest started-or-submitted time
// first, ties broken by batch sequence, then insertion order within the
// batch.
func QueueFor(snap domain.Snapshot, area domain.KitchenArea) []QueueItem {
	if snap.Status != domain.OrderProcessing {
		return nil
	}

	var out []QueueItem
	for _, g := range snap.Groups {
		if g.Cancelled {
			continue
		}
		for i, li := range g.Items {
			if li.Area != area {
				continue
			}
			if li.Status != domain.ItemInitial && li.Status != domain.ItemPreparing {
				continue
			}

			since := g.SubmittedAt
			if li.StartedAt != nil {
				since = *li.StartedAt
			}
			out = append(out, QueueItem{
				Ref:          ItemRef{BatchID: g.ID, MenuItemID: li.MenuItemID},
				Name:         li.Name,
				Quantity:     li.Quantity,
				VariantID:    li.VariantID,
				ToppingIDs:   li.ToppingIDs,
				Status:       li.Status,
				WaitingSince: since,
				StartedAt:    li.StartedAt,
				batchSeq:     g.ID,
				index:        i,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].WaitingSince.Equal(out[j].WaitingSince) {
			return out[i].WaitingSince.Before(out[j].WaitingSince)
		}
		if out[i].batchSeq != out[j].batchSeq {
			return out[i].batchSeq < out[j].batchSeq
		}
		return out[i].index < out[j].index
	})

	return out
}

// Areas lists the distinct areas with at least one outstanding item, for the
// staff dashboard's station overview. Same visibility rules as QueueFor.
func Areas(snap domain.Snapshot) []domain.KitchenArea {
	if snap.Status != domain.OrderProcessing {
		return nil
	}

	seen := make(map[domain.KitchenArea]bool)
	var out []domain.KitchenArea
	for _, g := range snap.Groups {
		if g.Cancelled {
			continue
		}
		for _, li := range g.Items {
			if li.Status == domain.ItemCompleted || seen[li.Area] {
				continue
			}
			seen[li.Area] = true
			out = append(out, li.Area)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
