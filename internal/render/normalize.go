package render

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
)

// monoPalette is the two-color palette all printable images are quantized
// to. Index 0 is black so a zeroed pixel buffer prints as ink.
var monoPalette = color.Palette{color.Black, color.White}

// Normalize rescales img proportionally so its width matches the printer
// head, converts it to grayscale and binarizes it with Floyd-Steinberg
// dithering. An image that is already head-wide and two-color passes
// through unchanged, making the call idempotent.
func Normalize(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok && p.Bounds().Dx() == PrintWidth && isMono(p.Palette) {
		return p
	}

	if img.Bounds().Dx() != PrintWidth {
		img = imaging.Resize(img, PrintWidth, 0, imaging.Lanczos)
	}
	gray := imaging.Grayscale(img)

	dst := image.NewPaletted(image.Rect(0, 0, gray.Bounds().Dx(), gray.Bounds().Dy()), monoPalette)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), gray, gray.Bounds().Min)
	return dst
}

func isMono(p color.Palette) bool {
	if len(p) != 2 {
		return false
	}
	for _, c := range p {
		y := color.GrayModel.Convert(c).(color.Gray).Y
		if y != 0 && y != 255 {
			return false
		}
	}
	return true
}
