package services

import (
	"errors"
	"testing"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
)

func TestBuildSnapshotTotals(t *testing.T) {
	cart := []dto.CartEntry{
		{ProductID: "a", Name: "Product A", UnitPrice: 12.50, Quantity: 2},
		{
			ProductID: "b", Name: "Product B", UnitPrice: 9.00, Quantity: 1,
			SelectedModifiers: []dto.CartModifier{
				{GroupName: "Extras", OptionName: "Cheese", ExtraPrice: 1.00},
			},
		},
	}

	snapshot, err := BuildSnapshot(cart)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}

	if snapshot.Total != 35.00 {
		t.Errorf("total = %.2f, want 35.00", snapshot.Total)
	}
	if len(snapshot.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(snapshot.Items))
	}
	if snapshot.Items[0].Subtotal != 25.00 {
		t.Errorf("item 0 subtotal = %.2f, want 25.00", snapshot.Items[0].Subtotal)
	}
	if snapshot.Items[1].Subtotal != 10.00 {
		t.Errorf("item 1 subtotal = %.2f, want 10.00", snapshot.Items[1].Subtotal)
	}
	if snapshot.Items[1].SelectedModifiers[0].OptionName != "Cheese" {
		t.Errorf("modifier not retained verbatim: %+v", snapshot.Items[1].SelectedModifiers)
	}
}

func TestBuildSnapshotEmptyCart(t *testing.T) {
	_, err := BuildSnapshot(nil)
	if !errors.Is(err, core.ErrEmptyCart) {
		t.Errorf("err = %v, want ErrEmptyCart", err)
	}
}

func TestBuildSnapshotCopiesByValue(t *testing.T) {
	removed := []string{"onion"}
	cart := []dto.CartEntry{
		{Name: "Burger", UnitPrice: 5.00, Quantity: 1, RemovedIngredients: removed},
	}

	snapshot, err := BuildSnapshot(cart)
	if err != nil {
		t.Fatalf("BuildSnapshot: %v", err)
	}

	// Later edits to the caller's cart must not bleed into the frozen
	// snapshot.
	removed[0] = "pickles"
	cart[0].UnitPrice = 99.00

	if snapshot.Items[0].RemovedIngredients[0] != "onion" {
		t.Errorf("removed ingredients not copied: %v", snapshot.Items[0].RemovedIngredients)
	}
	if snapshot.Items[0].UnitPrice != 5.00 {
		t.Errorf("unit price not frozen: %.2f", snapshot.Items[0].UnitPrice)
	}
}

func TestBuildSnapshotRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name string
		cart []dto.CartEntry
	}{
		{"zero quantity", []dto.CartEntry{{Name: "X", UnitPrice: 1, Quantity: 0}}},
		{"negative price", []dto.CartEntry{{Name: "X", UnitPrice: -1, Quantity: 1}}},
		{"missing name", []dto.CartEntry{{UnitPrice: 1, Quantity: 1}}},
		{
			"negative modifier price",
			[]dto.CartEntry{{
				Name: "X", UnitPrice: 1, Quantity: 1,
				SelectedModifiers: []dto.CartModifier{{OptionName: "Y", ExtraPrice: -0.5}},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := BuildSnapshot(tt.cart); !errors.Is(err, core.ErrInvalidLineItem) {
				t.Errorf("err = %v, want ErrInvalidLineItem", err)
			}
		})
	}
}
