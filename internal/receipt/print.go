package receipt

import (
	"github.com/itrackpos/pos-engine/internal/escpos"
	"github.com/itrackpos/pos-engine/pkg/payload"
)

// Encode renders the payload into a complete ESC/POS document:
// initialize, the formatted receipt text, an optional QR footer, paper
// feed, and a full cut. qrContent is usually the OR number; empty skips
// the QR footer.
func Encode(p *payload.ReceiptPayload, tpl Template, qrContent string) ([]byte, error) {
	b := escpos.NewBuilder().Initialize()

	for _, line := range Lines(p, tpl) {
		b.Text(line).LineFeed()
	}

	if qrContent != "" {
		img, err := escpos.QR(qrContent)
		if err != nil {
			return nil, err
		}
		b.Raw(escpos.Raster(img)).LineFeed()
	}

	b.Feed(3).Cut()
	return b.Bytes(), nil
}
