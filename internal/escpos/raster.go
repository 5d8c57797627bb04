package escpos

import (
	"image"

	qrcode "github.com/skip2/go-qrcode"
)

// Raster encodes a monochrome image as ESC * bit-image lines, 8 pixels
// per byte, one printed row per image row. Pixels darker than mid-gray
// are printed black.
func Raster(img image.Image) []byte {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	bytesPerLine := (width + 7) / 8

	b := NewBuilder()
	for y := 0; y < height; y++ {
		b.Raw([]byte{ESC, '*', 33, byte(bytesPerLine & 0xFF), byte((bytesPerLine >> 8) & 0xFF)})

		line := make([]byte, bytesPerLine)
		for x := 0; x < width; x++ {
			r, g, bl, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// 16-bit channels; average and threshold at 50%
			lum := (r + g + bl) / 3
			if lum < 0x8000 {
				line[x/8] |= 0x80 >> (x % 8)
			}
		}
		b.Raw(line)
		b.LineFeed()
	}

	return b.Bytes()
}

// QR renders content as a QR code image sized for a 58mm text-mode
// printer, ready to pass to Raster.
func QR(content string) (image.Image, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, err
	}
	return qr.Image(192), nil
}
