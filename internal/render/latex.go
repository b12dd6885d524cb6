package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
)

const (
	defaultCompiler  = "pdflatex"
	defaultInstaller = "mpm"
	defaultConverter = "pdftoppm"

	// Rasterization resolution matches the printer head density.
	latexDPI = 203

	logTailLimit = 500

	texFileName = "ticket.tex"
	pdfFileName = "ticket.pdf"
	logFileName = "ticket.log"
	pngBaseName = "ticket"

	titleBlockPx = 50
	stampBlockPx = 30
)

// documentTemplate fixes the page geometry to the thermal roll: 80mm wide,
// tall enough that real-world tickets never paginate.
const documentTemplate = `\documentclass[11pt]{article}
\usepackage[utf8]{inputenc}
\usepackage[T1]{fontenc}
\usepackage{amsmath}
\usepackage{amssymb}
\usepackage{amsfonts}
\usepackage{mathtools}
\usepackage{siunitx}
\usepackage{bm}
\usepackage{graphicx}
\usepackage{enumitem}
\usepackage{geometry}
\usepackage{tikz}
\usepackage{pgfplots}
\usepackage{listings}
\usepackage{xcolor}
\usepackage{booktabs}
\usepackage{tabularx}
\usetikzlibrary{patterns,decorations.pathmorphing,decorations.markings,calc}
\pgfplotsset{compat=1.18}
\geometry{paperwidth=80mm, paperheight=2000mm, left=2mm, right=2mm, top=2mm, bottom=2mm}
\renewcommand{\familydefault}{\sfdefault}
\setlength{\parindent}{0pt}
\setlength{\parskip}{0.5em}
\begin{document}
%s
\end{document}
`

// missingFileRe recognizes the compiler's missing-dependency diagnostic,
// e.g. "! LaTeX Error: File `tcolorbox.sty' not found."
var missingFileRe = regexp.MustCompile("LaTeX Error: File `([^']+)' not found")

// commandRunner abstracts subprocess execution so the compile loop can be
// exercised without a TeX installation.
type commandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
	LookPath(name string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = io.Discard
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// LatexEngine compiles markup source to a printable ticket image through an
// external TeX toolchain. A single render attempt moves through the states
// compiling -> repairing-dependency -> retried -> success or fatal; at most
// one dependency repair is performed per attempt.
type LatexEngine struct {
	fonts     *FontSet
	runner    commandRunner
	compiler  string
	installer string
	converter string
}

// LatexOptions overrides the external binaries the engine invokes. Zero
// values keep the defaults.
type LatexOptions struct {
	Compiler  string
	Installer string
	Converter string
}

func NewLatexEngine(fonts *FontSet, opts LatexOptions) *LatexEngine {
	e := &LatexEngine{
		fonts:     fonts,
		runner:    execRunner{},
		compiler:  defaultCompiler,
		installer: defaultInstaller,
		converter: defaultConverter,
	}
	if opts.Compiler != "" {
		e.compiler = opts.Compiler
	}
	if opts.Installer != "" {
		e.installer = opts.Installer
	}
	if opts.Converter != "" {
		e.converter = opts.Converter
	}
	return e
}

// Render produces a ticket image for the given markup source. It never
// returns an error: a missing toolchain degrades to the plain-text fallback
// and a failed compilation becomes a rendered error receipt carrying the
// tail of the compiler log.
func (e *LatexEngine) Render(ctx context.Context, source, title string, withStamp bool) image.Image {
	if err := e.checkToolchain(); err != nil {
		log.Printf("latex: %v, using fallback renderer", err)
		return Fallback(e.fonts, source, title, withStamp)
	}

	img, err := e.compile(ctx, source)
	if err != nil {
		log.Printf("latex: render failed: %v", err)
		return Receipt(e.fonts, "LaTeX Error", []string{truncate(err.Error(), 300)}, false)
	}
	return e.compose(img, title, withStamp)
}

// checkToolchain verifies both external binaries a render needs exist
// before any work starts. A present compiler with a missing converter is
// just as unusable as no compiler at all.
func (e *LatexEngine) checkToolchain() error {
	if _, err := e.runner.LookPath(e.compiler); err != nil {
		return NewRenderError(ErrCodeCompilerNotFound, e.compiler+" not found", err)
	}
	if _, err := e.runner.LookPath(e.converter); err != nil {
		return NewRenderError(ErrCodeCompilerNotFound, e.converter+" not found", err)
	}
	return nil
}

// compile runs one full compilation attempt inside a fresh workspace. The
// workspace is removed unconditionally, whatever path the attempt takes.
func (e *LatexEngine) compile(ctx context.Context, source string) (image.Image, error) {
	dir, err := os.MkdirTemp("", "ticket-")
	if err != nil {
		return nil, NewRenderError(ErrCodeWorkspaceFailed, "failed to create workspace", err)
	}
	defer os.RemoveAll(dir)

	doc := wrapDocument(source)
	if err := os.WriteFile(filepath.Join(dir, texFileName), []byte(doc), 0o644); err != nil {
		return nil, NewRenderError(ErrCodeWorkspaceFailed, "failed to write source", err)
	}

	repaired := ""
	for {
		err := e.runner.Run(ctx, dir, e.compiler, "-interaction=nonstopmode", texFileName)
		if err == nil {
			break
		}

		pkg := missingPackage(filepath.Join(dir, logFileName))
		if pkg == "" || repaired != "" {
			msg := "compilation failed"
			if repaired != "" && pkg == repaired {
				msg = fmt.Sprintf("package %s still missing after install", pkg)
			}
			return nil, NewRenderError(ErrCodeCompileFailed,
				msg+"\n"+logTail(filepath.Join(dir, logFileName)), err)
		}

		log.Printf("latex: installing missing package %s", pkg)
		if ierr := e.runner.Run(ctx, dir, e.installer, "--admin", "--install", pkg); ierr != nil {
			return nil, NewRenderError(ErrCodeRepairFailed,
				fmt.Sprintf("failed to install package %s", pkg), ierr)
		}
		repaired = pkg
	}

	// Rasterize page one at the printer's native resolution.
	err = e.runner.Run(ctx, dir, e.converter,
		"-f", "1", "-l", "1",
		"-r", fmt.Sprint(latexDPI),
		"-gray", "-png", "-singlefile",
		pdfFileName, pngBaseName)
	if err != nil {
		return nil, NewRenderError(ErrCodeConvertFailed, "pdf rasterization failed", err)
	}

	img, err := loadPNG(filepath.Join(dir, pngBaseName+".png"))
	if err != nil {
		return nil, NewRenderError(ErrCodeConvertFailed, "failed to read rasterized page", err)
	}
	return trimWhitespace(img), nil
}

// compose centers the compiled image on a full-width canvas under an
// optional title and timestamp header, downscaling it first if it exceeds
// the usable width.
func (e *LatexEngine) compose(latexImg image.Image, title string, withStamp bool) image.Image {
	if latexImg.Bounds().Dx() > UsableWidth {
		latexImg = imaging.Resize(latexImg, UsableWidth, 0, imaging.Lanczos)
	}

	headerH := marginTop
	if title != "" {
		headerH += titleBlockPx
	}
	if withStamp {
		headerH += stampBlockPx
	}
	finalH := headerH + latexImg.Bounds().Dy() + marginBottom

	dc := gg.NewContext(PrintWidth, finalH)
	dc.SetColor(color.White)
	dc.Clear()
	dc.SetColor(color.Black)

	y := marginTop
	if title != "" {
		drawLine(dc, e.fonts.Title, title, y)
		y += titleBlockPx
	}
	if withStamp {
		drawLine(dc, e.fonts.Stamp, nowStamp(), y)
		y += stampBlockPx
	}

	x := (PrintWidth - latexImg.Bounds().Dx()) / 2
	dc.DrawImage(latexImg, x, y)
	return toGray(dc.Image())
}

// wrapDocument embeds bare markup into the fixed-geometry document template.
// Source that already looks like a full document is compiled as-is, and
// content without an explicit math or drawing environment is wrapped in
// display-math delimiters.
func wrapDocument(source string) string {
	if strings.Contains(source, `\begin{document}`) || strings.Contains(source, `\section`) {
		return source
	}
	content := source
	if !strings.Contains(content, `\begin{tikzpicture}`) &&
		!strings.Contains(content, "$$") &&
		!strings.Contains(content, `\[`) {
		content = `\[ ` + content + ` \]`
	}
	return fmt.Sprintf(documentTemplate, content)
}

func missingPackage(logPath string) string {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return ""
	}
	m := missingFileRe.FindSubmatch(data)
	if m == nil {
		return ""
	}
	name := string(m[1])
	// The diagnostic names a file; the installer wants the package name.
	return strings.TrimSuffix(strings.TrimSuffix(name, ".sty"), ".cls")
}

func logTail(logPath string) string {
	data, err := os.ReadFile(logPath)
	if err != nil {
		return "no log found"
	}
	return truncateTail(string(data), logTailLimit)
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

// trimWhitespace crops the image to the bounding box of its non-white
// content. An all-white page is returned unchanged.
func trimWhitespace(img image.Image) image.Image {
	const contentThreshold = 245

	b := img.Bounds()
	minX, minY := b.Max.X, b.Max.Y
	maxX, maxY := b.Min.X-1, b.Min.Y-1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < contentThreshold {
				if x < minX {
					minX = x
				}
				if x > maxX {
					maxX = x
				}
				if y < minY {
					minY = y
				}
				if y > maxY {
					maxY = y
				}
			}
		}
	}
	if maxX < minX || maxY < minY {
		return img
	}
	return imaging.Crop(img, image.Rect(minX, minY, maxX+1, maxY+1))
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func truncateTail(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[len(s)-limit:]
}
