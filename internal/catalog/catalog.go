// Package catalog holds the read-only menu snapshot fetched once per session
// and the reference validation used by draft mutations.
package catalog

import (
	"errors"
	"fmt"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

var (
	ErrUnknownItem    = errors.New("unknown menu item")
	ErrUnknownVariant = errors.New("unknown variant")
	ErrUnknownTopping = errors.New("unknown topping")
	ErrUnavailable    = errors.New("menu item unavailable")
)

// Snapshot is an immutable, indexed view of the menu. It is built once from
// the catalog rows and shared read-only across sessions.
type Snapshot struct {
	items map[string]domain.MenuItem
}

func NewSnapshot(items []domain.MenuItem) *Snapshot {
	m := make(map[string]domain.MenuItem, len(items))
	for _, it := range items {
		m[it.ID] = it
	}
	return &Snapshot{items: m}
}

func (s *Snapshot) Len() int { return len(s.items) }

func (s *Snapshot) Item(id string) (domain.MenuItem, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Resolved is a validated line-item reference with its prices computed.
type Resolved struct {
	Name       string
	Area       domain.KitchenArea
	UnitPrice  int64
	ToppingSum int64
}

// Resolve validates a menu item / variant / topping reference set and
// computes the unit price (variant price when chosen, base price otherwise)
// and the topping price sum.
func (s *Snapshot) Resolve(itemID, variantID string, toppingIDs []string) (Resolved, error) {
	it, ok := s.items[itemID]
	if !ok {
		return Resolved{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if !it.Available {
		return Resolved{}, fmt.Errorf("%w: %s", ErrUnavailable, itemID)
	}

	unit := it.BasePrice
	if variantID != "" {
		found := false
		for _, v := range it.Variants {
			if v.ID == variantID {
				unit = v.Price
				found = true
				break
			}
		}
		if !found {
			return Resolved{}, fmt.Errorf("%w: %s", ErrUnknownVariant, variantID)
		}
	}

	var toppingSum int64
	for _, tid := range toppingIDs {
		found := false
		for _, t := range it.Toppings {
			if t.ID == tid {
				toppingSum += t.Price
				found = true
				break
			}
		}
		if !found {
			return Resolved{}, fmt.Errorf("%w: %s", ErrUnknownTopping, tid)
		}
	}

	return Resolved{
		Name:       it.Name,
		Area:       it.Area,
		UnitPrice:  unit,
		ToppingSum: toppingSum,
	}, nil
}
