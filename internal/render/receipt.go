package render

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
)

// Geometry of the thermal roll. All receipts are rendered at the full head
// width; height is whatever the content needs, floored so degenerate jobs
// still feed a visible strip of paper.
const (
	PrintWidth = 576

	marginTop    = 28
	marginBottom = 40
	marginLeft   = 18
	marginRight  = 18

	titleGap    = 10
	minCanvasPx = 100

	stampLayout = "2006-01-02 15:04"
)

// UsableWidth is the horizontal space available to content between the
// left and right margins.
const UsableWidth = PrintWidth - marginLeft - marginRight

// Receipt composes an optional title, body lines and an optional timestamp
// into a grayscale canvas. Title and body are wrapped independently with
// their own fonts against the same usable width. The timestamp is captured
// at render time; it is the only source of nondeterminism.
func Receipt(fonts *FontSet, title string, body []string, withStamp bool) image.Image {
	return receiptAt(fonts, title, body, withStamp, time.Now())
}

func receiptAt(fonts *FontSet, title string, body []string, withStamp bool, now time.Time) image.Image {
	var titleLines []string
	if strings.TrimSpace(title) != "" {
		titleLines = Wrap(strings.TrimSpace(title), fonts.Title, UsableWidth)
	}
	var bodyLines []string
	for _, line := range body {
		bodyLines = append(bodyLines, Wrap(line, fonts.Body, UsableWidth)...)
	}
	stamp := ""
	if withStamp {
		stamp = now.Format(stampLayout)
	}

	lhTitle := LineHeight(fonts.Title)
	lhBody := LineHeight(fonts.Body)
	lhStamp := LineHeight(fonts.Stamp)

	h := marginTop
	if len(titleLines) > 0 {
		h += len(titleLines)*lhTitle + titleGap
	}
	if stamp != "" {
		h += lhStamp
	}
	h += len(bodyLines) * lhBody
	h += marginBottom
	if h < minCanvasPx {
		h = minCanvasPx
	}

	dc := gg.NewContext(PrintWidth, h)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)

	y := marginTop
	for _, ln := range titleLines {
		drawLine(dc, fonts.Title, ln, y)
		y += lhTitle
	}
	if len(titleLines) > 0 {
		y += titleGap
	}
	if stamp != "" {
		drawLine(dc, fonts.Stamp, stamp, y)
		y += lhStamp
	}
	for _, ln := range bodyLines {
		drawLine(dc, fonts.Body, ln, y)
		y += lhBody
	}

	return toGray(dc.Image())
}

func drawLine(dc *gg.Context, face font.Face, s string, top int) {
	if s == "" {
		return
	}
	dc.SetFontFace(face)
	dc.DrawString(s, marginLeft, float64(top)+ascentPixels(face))
}

func nowStamp() string {
	return time.Now().Format(stampLayout)
}

func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	return gray
}
