package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	titleFontSize = 36
	bodyFontSize  = 28
	stampFontSize = 24

	lineHeightMult = 1.15
)

// FontSet holds the three logical font roles used on a receipt: a bold
// title face, a regular body face and a smaller timestamp face. A set is
// loaded once at startup and treated as immutable afterwards.
type FontSet struct {
	Title font.Face
	Body  font.Face
	Stamp font.Face
}

var (
	defaultFonts *FontSet
	fontsOnce    sync.Once
	fontsErr     error
)

// DefaultFonts returns the process-wide font set backed by the embedded Go
// fonts, loading it on first use.
func DefaultFonts() (*FontSet, error) {
	fontsOnce.Do(func() {
		defaultFonts, fontsErr = loadFonts()
	})
	return defaultFonts, fontsErr
}

func loadFonts() (*FontSet, error) {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bold font: %w", err)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse regular font: %w", err)
	}

	title, err := newFace(bold, titleFontSize)
	if err != nil {
		return nil, err
	}
	body, err := newFace(regular, bodyFontSize)
	if err != nil {
		return nil, err
	}
	stamp, err := newFace(regular, stampFontSize)
	if err != nil {
		return nil, err
	}

	return &FontSet{Title: title, Body: body, Stamp: stamp}, nil
}

func newFace(f *opentype.Font, size float64) (font.Face, error) {
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72, // at 72 DPI one point equals one pixel
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create font face: %w", err)
	}
	return face, nil
}

// LineHeight returns the pixel advance between baselines for a face,
// including the leading factor applied to every receipt line.
func LineHeight(face font.Face) int {
	m := face.Metrics()
	return int(float64((m.Ascent + m.Descent).Ceil()) * lineHeightMult)
}

func ascentPixels(face font.Face) float64 {
	return float64(face.Metrics().Ascent.Ceil())
}
