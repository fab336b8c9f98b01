package receipt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/models"
)

const defaultOCRTimeout = 30 * time.Second

// HTTPRecognizer sends the image to an expense-analysis OCR endpoint and
// parses the line items it reports.
//
// The endpoint receives the raw image bytes and answers with
//
//	{"line_items": [{"fields": [{"type": "ITEM", "value": "...", "confidence": 97.5}]}]}
type HTTPRecognizer struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPRecognizer creates an HTTPRecognizer with a bounded client timeout.
func NewHTTPRecognizer(endpoint string) *HTTPRecognizer {
	return &HTTPRecognizer{
		Endpoint: endpoint,
		Client:   &http.Client{Timeout: defaultOCRTimeout},
	}
}

type ocrLine struct {
	Fields []ExpenseField `json:"fields"`
}

type ocrResponse struct {
	LineItems []ocrLine `json:"line_items"`
}

// Recognize implements Recognizer.
func (r *HTTPRecognizer) Recognize(ctx context.Context, image []byte) ([]models.DetectedItem, error) {
	if len(image) == 0 {
		return nil, apperrors.Validation("image", "no image provided")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to build OCR request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("OCR request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("OCR endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var decoded ocrResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode OCR response: %w", err)
	}

	items := make([]models.DetectedItem, 0, len(decoded.LineItems))
	for _, line := range decoded.LineItems {
		if item, ok := ParseLineItem(line.Fields); ok {
			items = append(items, item)
		}
	}
	slog.Debug("Receipt recognized",
		"lines", len(decoded.LineItems),
		"items", len(items),
	)
	return items, nil
}
