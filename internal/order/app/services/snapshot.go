package services

import (
	"fmt"

	"github.com/FedePlevak/Fila0/internal/order/app/core"
	"github.com/FedePlevak/Fila0/internal/order/domain/dto"
	"github.com/FedePlevak/Fila0/internal/order/domain/models"
)

// BuildSnapshot freezes a cart into immutable line items and a total.
// Every name and price is copied by value; nothing in the result points
// back at live menu data, so later menu edits cannot change what the
// customer agreed to.
func BuildSnapshot(cart []dto.CartEntry) (models.Snapshot, error) {
	if len(cart) == 0 {
		return models.Snapshot{}, core.ErrEmptyCart
	}

	snapshot := models.Snapshot{
		Items: make([]models.LineItem, 0, len(cart)),
	}

	for i, entry := range cart {
		if err := validateCartEntry(entry); err != nil {
			return models.Snapshot{}, fmt.Errorf("cart entry %d: %w", i+1, err)
		}

		item := models.LineItem{
			ProductID: entry.ProductID,
			Name:      entry.Name,
			UnitPrice: entry.UnitPrice,
			Quantity:  entry.Quantity,
			ImageURL:  entry.ImageURL,
		}

		if len(entry.RemovedIngredients) > 0 {
			item.RemovedIngredients = make([]string, len(entry.RemovedIngredients))
			copy(item.RemovedIngredients, entry.RemovedIngredients)
		}

		extras := 0.0
		for _, m := range entry.SelectedModifiers {
			item.SelectedModifiers = append(item.SelectedModifiers, models.ModifierChoice{
				GroupName:  m.GroupName,
				OptionName: m.OptionName,
				ExtraPrice: m.ExtraPrice,
			})
			extras += m.ExtraPrice
		}

		item.Subtotal = (entry.UnitPrice + extras) * float64(entry.Quantity)
		snapshot.Total += item.Subtotal
		snapshot.Items = append(snapshot.Items, item)
	}

	return snapshot, nil
}

func validateCartEntry(entry dto.CartEntry) error {
	if entry.Name == "" {
		return fmt.Errorf("%w: missing product name", core.ErrInvalidLineItem)
	}
	if entry.Quantity < 1 {
		return fmt.Errorf("%w: quantity %d", core.ErrInvalidLineItem, entry.Quantity)
	}
	if entry.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price %f", core.ErrInvalidLineItem, entry.UnitPrice)
	}
	for _, m := range entry.SelectedModifiers {
		if m.ExtraPrice < 0 {
			return fmt.Errorf("%w: modifier %q extra price %f", core.ErrInvalidLineItem, m.OptionName, m.ExtraPrice)
		}
	}
	return nil
}
