package engine

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// ItemInput describes an item to insert.
type ItemInput struct {
	Name          string
	Quantity      int
	UnitPrice     decimal.Decimal
	ManuallyAdded bool
	OCRConfidence *float64
}

// ItemPatch holds the fields of an item edit. Nil fields are left unchanged.
type ItemPatch struct {
	Name      *string
	Quantity  *int
	UnitPrice *decimal.Decimal
}

func (in ItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Validation("name", "cannot be empty")
	}
	if err := money.ValidateQuantity(in.Quantity); err != nil {
		return err
	}
	if err := money.ValidatePrice(in.UnitPrice); err != nil {
		return err
	}
	if c := in.OCRConfidence; c != nil && (*c < 0 || *c > 1) {
		return apperrors.Validation("ocr_confidence", "must be between 0 and 1")
	}
	return nil
}

// AddItem appends an item with OrderIndex equal to the current item count.
func (e *Engine) AddItem(in ItemInput) (models.Item, []models.Change, error) {
	items, changes, err := e.AddItems([]ItemInput{in})
	if err != nil {
		return models.Item{}, nil, err
	}
	return items[0], changes, nil
}

// AddItems appends a batch, e.g. the lines of a recognized receipt. The
// whole batch is validated before anything is inserted.
func (e *Engine) AddItems(inputs []ItemInput) ([]models.Item, []models.Change, error) {
	for i, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, nil, fmt.Errorf("item %d: %w", i, err)
		}
	}

	var added []models.Item
	changes, err := e.mutate("add_items", func(w *working) error {
		now := e.now().Unix()
		for _, in := range inputs {
			item := models.Item{
				ID:            e.newID(),
				SessionID:     w.state.Session.ID,
				Name:          strings.TrimSpace(in.Name),
				Quantity:      in.Quantity,
				UnitPrice:     in.UnitPrice,
				TotalPrice:    money.LineTotal(in.Quantity, in.UnitPrice),
				OrderIndex:    len(w.state.Items),
				ManuallyAdded: in.ManuallyAdded,
				OCRConfidence: in.OCRConfidence,
				CreatedAt:     now,
			}
			w.state.Items = append(w.state.Items, item)
			w.emit(models.Change{Type: models.ChangeInsert, Entity: models.EntityItem, ID: item.ID, Item: &item})
			added = append(added, item)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return added, changes, nil
}

// EditItem patches an item and recomputes its total. Assignments are not
// touched.
func (e *Engine) EditItem(itemID string, patch ItemPatch) (models.Item, []models.Change, error) {
	var edited models.Item
	changes, err := e.mutate("edit_item", func(w *working) error {
		ii := w.itemIndex(itemID)
		if ii < 0 {
			return apperrors.NotFound("item", itemID)
		}
		item := w.state.Items[ii]

		in := ItemInput{
			Name:          item.Name,
			Quantity:      item.Quantity,
			UnitPrice:     item.UnitPrice,
			OCRConfidence: item.OCRConfidence,
		}
		if patch.Name != nil {
			in.Name = *patch.Name
		}
		if patch.Quantity != nil {
			in.Quantity = *patch.Quantity
		}
		if patch.UnitPrice != nil {
			in.UnitPrice = *patch.UnitPrice
		}
		if err := in.validate(); err != nil {
			return err
		}

		item.Name = strings.TrimSpace(in.Name)
		item.Quantity = in.Quantity
		item.UnitPrice = in.UnitPrice
		item.TotalPrice = money.LineTotal(in.Quantity, in.UnitPrice)
		w.state.Items[ii] = item
		w.updateItem(ii)
		edited = item
		return nil
	})
	if err != nil {
		return models.Item{}, nil, err
	}
	return edited, changes, nil
}

// DeleteItem removes an item together with its assignments. Other items
// keep their OrderIndex.
func (e *Engine) DeleteItem(itemID string) ([]models.Change, error) {
	return e.mutate("delete_item", func(w *working) error {
		ii := w.itemIndex(itemID)
		if ii < 0 {
			return apperrors.NotFound("item", itemID)
		}

		for i := 0; i < len(w.state.Assignments); {
			if w.state.Assignments[i].ItemID == itemID {
				w.deleteAssignment(i)
				continue
			}
			i++
		}

		item := w.state.Items[ii]
		w.state.Items = append(w.state.Items[:ii], w.state.Items[ii+1:]...)
		w.emit(models.Change{Type: models.ChangeDelete, Entity: models.EntityItem, ID: item.ID, Item: &item})
		return nil
	})
}
