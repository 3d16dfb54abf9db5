package catalog

import (
	"errors"
	"testing"

	"github.com/kirinyoku/mesa-go/internal/domain"
)

func testSnapshot() *Snapshot {
	return NewSnapshot([]domain.MenuItem{
		{
			ID:        "pho-bo",
			Name:      "Pho Bo",
			BasePrice: 45000,
			Area:      "hot",
			Available: true,
			Variants: []domain.Variant{
				{ID: "large", Name: "Large", Price: 50000},
			},
			Toppings: []domain.Topping{
				{ID: "extra-beef", Name: "Extra Beef", Price: 5000},
			},
		},
		{ID: "iced-tea", Name: "Iced Tea", BasePrice: 10000, Area: "drinks", Available: true},
		{ID: "banh-mi", Name: "Banh Mi", BasePrice: 25000, Area: "cold", Available: false},
	})
}

func TestResolveBasePrice(t *testing.T) {
	r, err := testSnapshot().Resolve("iced-tea", "", nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.UnitPrice != 10000 || r.ToppingSum != 0 || r.Area != "drinks" {
		t.Errorf("unexpected resolution: %+v", r)
	}
}

func TestResolveVariantAndToppings(t *testing.T) {
	r, err := testSnapshot().Resolve("pho-bo", "large", []string{"extra-beef"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if r.UnitPrice != 50000 {
		t.Errorf("UnitPrice = %d, want 50000", r.UnitPrice)
	}
	if r.ToppingSum != 5000 {
		t.Errorf("ToppingSum = %d, want 5000", r.ToppingSum)
	}
	if r.Name != "Pho Bo" {
		t.Errorf("Name = %q", r.Name)
	}
}

func TestResolveErrors(t *testing.T) {
	s := testSnapshot()

	if _, err := s.Resolve("no-such", "", nil); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("unknown item: got %v", err)
	}
	if _, err := s.Resolve("pho-bo", "no-such", nil); !errors.Is(err, ErrUnknownVariant) {
		t.Errorf("unknown variant: got %v", err)
	}
	if _, err := s.Resolve("pho-bo", "", []string{"no-such"}); !errors.Is(err, ErrUnknownTopping) {
		t.Errorf("unknown topping: got %v", err)
	}
	if _, err := s.Resolve("banh-mi", "", nil); !errors.Is(err, ErrUnavailable) {
		t.Errorf("unavailable item: got %v", err)
	}
}
