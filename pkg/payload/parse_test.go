package payload

import (
	"testing"
)

func TestParse_WellFormed(t *testing.T) {
	data := []byte(`{
		"date": "2024-03-01",
		"customer_name": "Juan Dela Cruz",
		"course": "BSIT",
		"items": [
			{"name": "PE Shirt", "qty": 2, "price": 250},
			{"name": "ID Lace", "qty": 1, "price": 35.5}
		],
		"total": 535.5
	}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if p.CustomerName != "Juan Dela Cruz" {
		t.Errorf("CustomerName = %q", p.CustomerName)
	}
	if len(p.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(p.Items))
	}
	if p.Items[0].Qty != 2 || p.Items[0].Price != 250 {
		t.Errorf("item[0] = %+v", p.Items[0])
	}
	if p.Total != 535.5 {
		t.Errorf("Total = %v", p.Total)
	}
}

func TestParse_MalformedNumbersCoerceToZero(t *testing.T) {
	data := []byte(`{
		"items": [
			{"name": "Logbook", "qty": "three", "price": null},
			{"name": "Pin", "qty": "4", "price": "12.50"}
		],
		"total": "not a number"
	}`)

	p, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if p.Items[0].Qty != 0 || p.Items[0].Price != 0 {
		t.Errorf("malformed numerics should coerce to 0, got %+v", p.Items[0])
	}
	if p.Items[1].Qty != 4 || p.Items[1].Price != 12.5 {
		t.Errorf("numeric strings should parse, got %+v", p.Items[1])
	}
	if p.Total != 0 {
		t.Errorf("Total = %v, want 0", p.Total)
	}
}

func TestParse_InvalidJSON(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	if err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestNormalize_ClampsNegatives(t *testing.T) {
	p := &ReceiptPayload{
		Items: []OrderLine{{Name: "Refund?", Qty: -2, Price: -10}},
		Total: -20,
	}
	p.Normalize()

	if p.Items[0].Qty != 0 || p.Items[0].Price != 0 || p.Total != 0 {
		t.Errorf("Normalize left negatives: %+v total=%v", p.Items[0], p.Total)
	}
}
