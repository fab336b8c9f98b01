// Package receipt turns receipt photos into item candidates.
package receipt

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/engine"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// Recognizer detects line items in a receipt image.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) ([]models.DetectedItem, error)
}

// StubRecognizer returns a fixed batch of items, standing in for a real
// OCR backend.
type StubRecognizer struct {
	// Delay simulates processing time.
	Delay time.Duration
}

var demoItems = []models.DetectedItem{
	{Name: "Hamburguesa Clásica", Quantity: 2, UnitPrice: decimal.NewFromInt(28000), Confidence: 0.95},
	{Name: "Pizza Margarita", Quantity: 1, UnitPrice: decimal.NewFromInt(42000), Confidence: 0.92},
	{Name: "Coca Cola", Quantity: 3, UnitPrice: decimal.NewFromInt(6000), Confidence: 0.98},
	{Name: "Papas Fritas", Quantity: 2, UnitPrice: decimal.NewFromInt(12000), Confidence: 0.89},
	{Name: "Cerveza Artesanal", Quantity: 4, UnitPrice: decimal.NewFromInt(15000), Confidence: 0.85},
}

// Recognize implements Recognizer.
func (s StubRecognizer) Recognize(ctx context.Context, image []byte) ([]models.DetectedItem, error) {
	if len(image) == 0 {
		return nil, apperrors.Validation("image", "no image provided")
	}
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	return append([]models.DetectedItem(nil), demoItems...), nil
}

// ExpenseField is one labeled value of a receipt line as reported by an
// expense-analysis OCR service: Type is ITEM, QUANTITY, PRICE or
// UNIT_PRICE, Confidence is in percent.
type ExpenseField struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// ParseLineItem builds a detected item from the fields of one receipt
// line. Lines without a name or a positive price are skipped.
func ParseLineItem(fields []ExpenseField) (models.DetectedItem, bool) {
	item := models.DetectedItem{Quantity: 1, UnitPrice: decimal.Zero}
	for _, f := range fields {
		value := strings.TrimSpace(f.Value)
		switch strings.ToUpper(f.Type) {
		case "ITEM":
			item.Name = value
			if c := f.Confidence / 100; c > item.Confidence {
				item.Confidence = c
			}
		case "QUANTITY":
			if q, err := strconv.Atoi(value); err == nil && q > 0 {
				item.Quantity = q
			}
		case "PRICE", "UNIT_PRICE":
			item.UnitPrice = money.Parse(value)
		}
	}
	if item.Name == "" || !item.UnitPrice.IsPositive() {
		return models.DetectedItem{}, false
	}
	return item, true
}

// ToItemInputs converts detected items into engine inputs, keeping the
// recognizer's confidence. Quantities below one become one.
func ToItemInputs(detected []models.DetectedItem) []engine.ItemInput {
	inputs := make([]engine.ItemInput, 0, len(detected))
	for _, d := range detected {
		qty := d.Quantity
		if qty < 1 {
			qty = 1
		}
		confidence := d.Confidence
		inputs = append(inputs, engine.ItemInput{
			Name:          d.Name,
			Quantity:      qty,
			UnitPrice:     d.UnitPrice,
			ManuallyAdded: false,
			OCRConfidence: &confidence,
		})
	}
	return inputs
}
