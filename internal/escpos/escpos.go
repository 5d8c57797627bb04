// Package escpos builds the binary command stream understood by ESC/POS
// thermal receipt printers. The command byte sequences are a hardware
// compatibility contract and must not change.
package escpos

import (
	"bytes"
	"strings"
)

// Control byte prefixes
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	FS  byte = 0x1C
)

// pesoSign is replaced in text output because the printer code page has
// no glyph for it.
const pesoSign = "₱"

// Initialize returns the printer initialization command (ESC @).
func Initialize() []byte {
	return []byte{ESC, 0x40}
}

// LineFeed returns a single line feed.
func LineFeed() []byte {
	return []byte{0x0A}
}

// Cut returns the full paper cut command with feed (GS V A 16).
func Cut() []byte {
	return []byte{GS, 0x56, 0x41, 0x10}
}

// Printable rewrites a string so that every byte has a glyph on the
// printer. The peso sign becomes the literal "PHP "; everything else
// passes through unchanged. Callers that lay out columns by byte width
// must apply this before measuring.
func Printable(s string) string {
	return strings.ReplaceAll(s, pesoSign, "PHP ")
}

// Text encodes a string for transmission, applying Printable.
func Text(s string) []byte {
	return []byte(Printable(s))
}

// Concat joins byte sequences in order into a fresh buffer. The inputs
// are never aliased or modified.
func Concat(chunks ...[]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}

	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// Builder accumulates a command stream. It wraps the pure command
// functions for callers that compose a whole document.
type Builder struct {
	buffer bytes.Buffer
}

// NewBuilder creates an empty command stream builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Initialize appends the initialization command.
func (b *Builder) Initialize() *Builder {
	b.buffer.Write(Initialize())
	return b
}

// Text appends encoded text.
func (b *Builder) Text(s string) *Builder {
	b.buffer.Write(Text(s))
	return b
}

// LineFeed appends a line feed.
func (b *Builder) LineFeed() *Builder {
	b.buffer.Write(LineFeed())
	return b
}

// Feed appends n line feeds.
func (b *Builder) Feed(n int) *Builder {
	for i := 0; i < n; i++ {
		b.buffer.Write(LineFeed())
	}
	return b
}

// Cut appends the full cut command.
func (b *Builder) Cut() *Builder {
	b.buffer.Write(Cut())
	return b
}

// Raw appends bytes unchanged.
func (b *Builder) Raw(data []byte) *Builder {
	b.buffer.Write(data)
	return b
}

// Bytes returns a copy of the accumulated stream.
func (b *Builder) Bytes() []byte {
	out := make([]byte, b.buffer.Len())
	copy(out, b.buffer.Bytes())
	return out
}

// Len returns the current stream length.
func (b *Builder) Len() int {
	return b.buffer.Len()
}
