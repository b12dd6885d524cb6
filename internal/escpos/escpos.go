// Package escpos converts monochrome images into the ESC/POS raster
// command stream spoken by networked thermal receipt printers.
package escpos

import (
	"bytes"
	"image"
	"image/color"
)

const (
	esc byte = 0x1B
	gs  byte = 0x1D

	// Pixels at or above this luminance are treated as paper.
	darkThreshold = 128

	feedLines = 4
)

// Encode produces the full command stream for one receipt: initialization,
// a GS v 0 raster block, trailing paper feed and an optional full cut.
//
// The raster header declares the row width in bytes (ceil(width/8)) and the
// height, both as little-endian 16-bit fields. Dark pixels are packed as
// 1-bits and every payload byte is then bitwise-inverted, because the
// printer expects 0-bits for printed dots. The encoding is bit-exact;
// changing the inversion or field sizing misaligns output on real hardware.
func Encode(img image.Image, cut bool) []byte {
	var buf bytes.Buffer
	buf.Write([]byte{esc, '@'})
	writeRaster(&buf, img)
	for i := 0; i < feedLines; i++ {
		buf.WriteByte('\n')
	}
	if cut {
		buf.Write(CutCommand())
	}
	return buf.Bytes()
}

// CutCommand returns the standalone full-cut command.
func CutCommand() []byte {
	return []byte{gs, 'V', 0}
}

func writeRaster(buf *bytes.Buffer, img image.Image) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	wBytes := (w + 7) / 8

	buf.Write([]byte{gs, 'v', '0', 0})
	buf.WriteByte(byte(wBytes))
	buf.WriteByte(byte(wBytes >> 8))
	buf.WriteByte(byte(h))
	buf.WriteByte(byte(h >> 8))

	row := make([]byte, wBytes)
	for y := 0; y < h; y++ {
		for i := range row {
			row[i] = 0
		}
		for x := 0; x < w; x++ {
			if dark(img.At(b.Min.X+x, b.Min.Y+y)) {
				row[x/8] |= 1 << uint(7-x%8)
			}
		}
		for _, v := range row {
			buf.WriteByte(^v)
		}
	}
}

func dark(c color.Color) bool {
	return color.GrayModel.Convert(c).(color.Gray).Y < darkThreshold
}
