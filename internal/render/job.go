package render

import (
	"context"
	"image"
	"log"
	"os"

	_ "image/jpeg"
	_ "image/png"
)

// JobKind discriminates the three shapes a print request can take.
type JobKind int

const (
	JobText JobKind = iota
	JobMarkup
	JobImage
)

func (k JobKind) String() string {
	switch k {
	case JobText:
		return "text"
	case JobMarkup:
		return "latex"
	case JobImage:
		return "image"
	default:
		return "unknown"
	}
}

// Job is a tagged variant: exactly one constructor's fields are meaningful
// per request, selected by Kind.
type Job struct {
	Kind JobKind

	Title string
	Stamp bool

	// JobText
	Body []string

	// JobMarkup
	Source string

	// JobImage
	ImagePath string
	// Cleanup marks ImagePath as a temporary file owned by the job; the
	// executor removes it once the job has been rendered.
	Cleanup bool
}

func NewTextJob(title string, body []string, stamp bool) Job {
	return Job{Kind: JobText, Title: title, Body: body, Stamp: stamp}
}

func NewMarkupJob(source, title string, stamp bool) Job {
	return Job{Kind: JobMarkup, Source: source, Title: title, Stamp: stamp}
}

func NewImageJob(path string) Job {
	return Job{Kind: JobImage, ImagePath: path}
}

// NewUploadJob is NewImageJob for a file spooled to disk on the job's
// behalf; the file is deleted after rendering.
func NewUploadJob(path string) Job {
	return Job{Kind: JobImage, ImagePath: path, Cleanup: true}
}

// Discard removes the temporary file backing an upload job. Safe to call
// on any job; non-upload jobs own no files.
func (j Job) Discard() {
	if j.Cleanup && j.ImagePath != "" {
		if err := os.Remove(j.ImagePath); err != nil && !os.IsNotExist(err) {
			log.Printf("render: failed to remove upload %s: %v", j.ImagePath, err)
		}
	}
}

// Renderer turns jobs into printable images, dispatching on the job kind.
type Renderer struct {
	fonts *FontSet
	latex *LatexEngine
}

func NewRenderer(fonts *FontSet, latex *LatexEngine) *Renderer {
	return &Renderer{fonts: fonts, latex: latex}
}

// Render produces the monochrome-ready image for a job. Text and markup
// jobs cannot fail; an unreadable image file is the one error path.
func (r *Renderer) Render(ctx context.Context, job Job) (image.Image, error) {
	switch job.Kind {
	case JobMarkup:
		return r.latex.Render(ctx, job.Source, job.Title, job.Stamp), nil
	case JobImage:
		img, err := loadImage(job.ImagePath)
		if err != nil {
			return nil, NewRenderError(ErrCodeInvalidImage, "failed to load image "+job.ImagePath, err)
		}
		return Normalize(img), nil
	default:
		return Receipt(r.fonts, job.Title, job.Body, job.Stamp), nil
	}
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
