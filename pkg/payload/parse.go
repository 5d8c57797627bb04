package payload

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Parse decodes a payload from JSON. Numeric fields that arrive as
// strings, nulls, or garbage coerce to 0 instead of failing the decode;
// only malformed JSON itself is an error.
func Parse(data []byte) (*ReceiptPayload, error) {
	var raw struct {
		Date         string          `json:"date"`
		CustomerName string          `json:"customer_name"`
		Course       string          `json:"course"`
		Items        []rawLine       `json:"items"`
		Total        json.RawMessage `json:"total"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse receipt payload: %w", err)
	}

	p := &ReceiptPayload{
		Date:         raw.Date,
		CustomerName: raw.CustomerName,
		Course:       raw.Course,
		Total:        coerceNumber(raw.Total),
	}

	for _, line := range raw.Items {
		p.Items = append(p.Items, OrderLine{
			Name:  line.Name,
			Qty:   int(coerceNumber(line.Qty)),
			Price: coerceNumber(line.Price),
		})
	}

	p.Normalize()
	return p, nil
}

type rawLine struct {
	Name  string          `json:"name"`
	Qty   json.RawMessage `json:"qty"`
	Price json.RawMessage `json:"price"`
}

// coerceNumber extracts a finite number from a raw JSON value. Numbers
// and numeric strings parse normally; anything else becomes 0.
func coerceNumber(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return f
		}
	}

	return 0
}

// ToJSON serializes the payload for storage or transport.
func (p *ReceiptPayload) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
