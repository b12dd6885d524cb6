package render

import (
	"image"
	"regexp"
	"strings"
)

var (
	sectionRe = regexp.MustCompile(`\\section\*?\{(.*?)\}`)
	itemEnvRe = regexp.MustCompile(`\\(?:begin|end)\{itemize\}`)
)

// Fallback renders markup source as a plain-text approximation when the
// TeX toolchain is unavailable. Section headers and list markers are
// replaced textually, everything else is printed verbatim and the result is
// normalized for the printer. It never fails: with nothing renderable it
// prints a short explanatory notice instead.
func Fallback(fonts *FontSet, source, title string, withStamp bool) image.Image {
	lines := stripMarkup(source)
	if len(lines) == 0 {
		return Normalize(Receipt(fonts, "Error",
			[]string{"No LaTeX engine found. Install TeX Live or MiKTeX."}, false))
	}
	return Normalize(Receipt(fonts, title, lines, withStamp))
}

// stripMarkup reduces a small set of markup constructs to plain text.
func stripMarkup(source string) []string {
	clean := strings.ReplaceAll(source, "$$", "$")
	clean = sectionRe.ReplaceAllString(clean, "\n--- $1 ---\n")
	clean = itemEnvRe.ReplaceAllString(clean, "")
	clean = strings.ReplaceAll(clean, `\item`, "\n * ")

	var lines []string
	for _, ln := range strings.Split(clean, "\n") {
		ln = strings.TrimRight(ln, " \t")
		if ln == "" && len(lines) == 0 {
			continue
		}
		lines = append(lines, ln)
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
