// Package receipt lays out order payloads as fixed-width text for
// 58mm text-mode thermal printers.
package receipt

import (
	"fmt"
	"math"
	"strings"

	"github.com/itrackpos/pos-engine/internal/escpos"
	"github.com/itrackpos/pos-engine/pkg/payload"
)

// Width is the printable column count of the target paper.
const Width = 32

// Template selects the receipt header variant.
type Template string

const (
	TemplateGarment Template = "garment"
	TemplateBook    Template = "book"
)

// storeName is the shared first title line for every template.
const storeName = "iTrack Merchandise"

// templateTitle is the second title line per template.
func (t Template) title() string {
	if t == TemplateBook {
		return "Books & Supplies"
	}
	return "Garments Section"
}

// docCode is the document code literal per template.
func (t Template) docCode() string {
	if t == TemplateBook {
		return "Doc Code: BKS-OR"
	}
	return "Doc Code: GMT-OR"
}

// Valid reports whether t names a known template.
func (t Template) Valid() bool {
	return t == TemplateGarment || t == TemplateBook
}

// Build renders the payload into the fixed-width receipt text, one line
// per element, ending with two blank lines. It never fails: missing
// optional fields are omitted and malformed numbers print as zero.
func Build(p *payload.ReceiptPayload, tpl Template) string {
	return strings.Join(Lines(p, tpl), "\n") + "\n"
}

// Lines renders the payload as individual receipt lines. Free-text
// fields are normalized with escpos.Printable before layout so that
// the byte-width padding below matches what the printer receives.
func Lines(p *payload.ReceiptPayload, tpl Template) []string {
	sep := strings.Repeat("-", Width)

	var lines []string
	lines = append(lines, center(storeName), center(tpl.title()), sep)

	lines = append(lines, tpl.docCode())
	if p.Date != "" {
		lines = append(lines, clip("Date : "+escpos.Printable(p.Date)))
	}
	lines = append(lines, "")

	if p.CustomerName != "" {
		lines = append(lines, clip("Name : "+escpos.Printable(p.CustomerName)))
	}
	if p.Course != "" {
		lines = append(lines, clip("Course : "+escpos.Printable(p.Course)))
	}
	lines = append(lines, "", "OR#: ________________", sep)

	for _, item := range p.Items {
		lines = append(lines, clip(escpos.Printable(item.Name)))
		lines = append(lines, rightAlign(fmt.Sprintf(" x%d", item.Qty), money(item.Price)))
	}

	lines = append(lines, sep)
	if !math.IsNaN(p.Total) && !math.IsInf(p.Total, 0) {
		lines = append(lines, rightAlign("TOTAL:", money(p.Total)))
	}

	lines = append(lines, sep, center("Thank you!"), "", "")
	return lines
}

// money formats an amount with the printable currency token.
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return fmt.Sprintf("PHP %.2f", v)
}

// center pads text to exactly Width columns. Text at or beyond Width is
// truncated; otherwise the leftover space splits evenly with any odd
// column going to the right side.
func center(s string) string {
	if len(s) >= Width {
		return s[:Width]
	}
	left := (Width - len(s)) / 2
	right := Width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

// rightAlign joins a left label and right value with at least one space
// of padding. When both fit, the line is exactly Width columns; when
// they do not, the longer component is truncated.
func rightAlign(label, value string) string {
	pad := Width - len(label) - len(value)
	if pad >= 1 {
		return label + strings.Repeat(" ", pad) + value
	}

	avail := Width - 1
	if len(label) >= len(value) {
		if len(value) > avail {
			value = value[:avail]
		}
		label = label[:avail-len(value)]
	} else {
		if len(label) > avail {
			label = label[:avail]
		}
		value = value[:avail-len(label)]
	}
	return label + " " + value
}

// clip truncates a line to the paper width.
func clip(s string) string {
	if len(s) > Width {
		return s[:Width]
	}
	return s
}
