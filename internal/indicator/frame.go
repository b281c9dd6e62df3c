// Package indicator drives the node's 8×12 LED matrix status display.
package indicator

import (
	"strings"

	"vejrstation-node/internal/utils"
)

const (
	Rows = 8
	Cols = 12
)

// Frame is an 8×12 bitmap packed row-major, most significant bit first,
// into four 32-bit words. Only the first 96 bits are used.
type Frame [4]uint32

var (
	// Warning is a triangle with an exclamation mark.
	Warning = Frame{0x06009009, 0x01681682, 0x042647FE, 0x00000000}
	// Blank has every pixel off.
	Blank = Frame{}
)

// Pixel reports whether the pixel at row r, column c is lit.
func (f Frame) Pixel(r, c int) bool {
	if r < 0 || r >= Rows || c < 0 || c >= Cols {
		return false
	}
	i := r*Cols + c
	return f[i/32]&(1<<(31-uint(i%32))) != 0
}

// Lit reports whether any pixel is on.
func (f Frame) Lit() bool {
	return f[0]|f[1]|f[2]|f[3] != 0
}

// Render draws the frame as Rows lines of '#' and '.'.
func (f Frame) Render() []string {
	out := make([]string, Rows)
	var b strings.Builder
	for r := 0; r < Rows; r++ {
		b.Reset()
		for c := 0; c < Cols; c++ {
			if f.Pixel(r, c) {
				b.WriteByte('#')
			} else {
				b.WriteByte('.')
			}
		}
		out[r] = b.String()
	}
	return out
}

func (f Frame) String() string {
	return utils.Hex8(f[0]) + " " + utils.Hex8(f[1]) + " " + utils.Hex8(f[2]) + " " + utils.Hex8(f[3])
}
