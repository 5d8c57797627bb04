// Package payload defines the order payload handed to the receipt
// formatter, plus a lenient JSON decoder for it.
package payload

// OrderLine is a single purchased item on a receipt.
type OrderLine struct {
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// ReceiptPayload is the structured order behind one printed receipt.
// Date, CustomerName and Course are optional; empty values are omitted
// from the printed layout rather than rejected.
type ReceiptPayload struct {
	Date         string      `json:"date,omitempty"`
	CustomerName string      `json:"customer_name,omitempty"`
	Course       string      `json:"course,omitempty"`
	Items        []OrderLine `json:"items"`
	Total        float64     `json:"total"`
}

// Normalize clamps negative quantities and prices to zero. Formatting
// must never fail on a malformed payload, so bad numbers degrade to 0.
func (p *ReceiptPayload) Normalize() {
	for i := range p.Items {
		if p.Items[i].Qty < 0 {
			p.Items[i].Qty = 0
		}
		if p.Items[i].Price < 0 {
			p.Items[i].Price = 0
		}
	}
	if p.Total < 0 {
		p.Total = 0
	}
}
