package render

import (
	"strings"

	"golang.org/x/image/font"
)

// MeasureString returns the rendered pixel width of s under face. It is a
// pure function of its inputs; no layout state survives between calls.
func MeasureString(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}

// Wrap splits text into lines whose measured width does not exceed maxWidth
// pixels. Wrapping is greedy: the next word is appended if it still fits
// with a single separating space, otherwise it starts a new line. Words are
// never split, so a single word wider than maxWidth occupies a line of its
// own and is the only permitted overflow. Empty input yields one empty line
// so blank separators keep their vertical space.
func Wrap(text string, face font.Face, maxWidth int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{""}
	}

	lines := make([]string, 0, len(words)/4+1)
	cur := words[0]
	for _, w := range words[1:] {
		if MeasureString(face, cur+" "+w) <= maxWidth {
			cur += " " + w
		} else {
			lines = append(lines, cur)
			cur = w
		}
	}
	return append(lines, cur)
}
