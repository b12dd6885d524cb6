package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uticket/printd/internal/config"
	"github.com/uticket/printd/internal/history"
	"github.com/uticket/printd/internal/render"
)

// Handler is the presentation glue between HTTP and the pipeline. It owns
// no rendering or delivery logic of its own.
type Handler struct {
	runner       *Runner
	settings     *config.Settings
	settingsPath string
	store        *history.Store
}

func NewHandler(runner *Runner, settings *config.Settings, settingsPath string, store *history.Store) *Handler {
	return &Handler{
		runner:       runner,
		settings:     settings,
		settingsPath: settingsPath,
		store:        store,
	}
}

type PrintTextRequest struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Bulk      bool   `json:"bulk"`
	Timestamp bool   `json:"timestamp"`
}

type PrintLatexRequest struct {
	Source    string `json:"source" binding:"required"`
	Title     string `json:"title"`
	Timestamp bool   `json:"timestamp"`
}

type PrintImageRequest struct {
	Path string `json:"path" binding:"required"`
}

type SubmitResponse struct {
	TicketID string `json:"ticket_id"`
}

func (h *Handler) PrintText(c *gin.Context) {
	var req PrintTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	jobs := h.textJobs(req)
	if len(jobs) == 0 {
		// Empty render job: skip silently rather than erroring.
		c.JSON(http.StatusOK, gin.H{"skipped": true})
		return
	}

	id := h.runner.Submit(jobs...)
	c.JSON(http.StatusAccepted, SubmitResponse{TicketID: id})
}

func (h *Handler) textJobs(req PrintTextRequest) []render.Job {
	var jobs []render.Job

	if req.Bulk {
		delim := h.settings.BulkDelimiter
		if delim == "" {
			delim = "::"
		}
		// One ticket per line; within a line the delimiter separates the
		// ticket title from its body. A line without the delimiter is a
		// title-only ticket.
		for _, ln := range strings.Split(req.Body, "\n") {
			ln = strings.TrimSpace(ln)
			if ln == "" {
				continue
			}
			title, rest, found := strings.Cut(ln, delim)
			var body []string
			if found {
				body = []string{strings.TrimSpace(rest)}
			}
			jobs = append(jobs, render.NewTextJob(strings.TrimSpace(title), body, req.Timestamp))
		}
		return jobs
	}

	if strings.TrimSpace(req.Body) == "" && strings.TrimSpace(req.Title) == "" {
		return nil
	}
	return []render.Job{render.NewTextJob(req.Title, strings.Split(req.Body, "\n"), req.Timestamp)}
}

func (h *Handler) PrintLatex(c *gin.Context) {
	var req PrintLatexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	id := h.runner.Submit(render.NewMarkupJob(req.Source, req.Title, req.Timestamp))
	c.JSON(http.StatusAccepted, SubmitResponse{TicketID: id})
}

func (h *Handler) PrintImage(c *gin.Context) {
	if file, err := c.FormFile("file"); err == nil {
		path := filepath.Join(os.TempDir(), "printd-upload-"+uuid.NewString()[:8]+filepath.Ext(file.Filename))
		if err := c.SaveUploadedFile(file, path); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store upload"})
			return
		}
		id := h.runner.Submit(render.NewUploadJob(path))
		c.JSON(http.StatusAccepted, SubmitResponse{TicketID: id})
		return
	}

	var req PrintImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Provide an uploaded file or an image path"})
		return
	}

	id := h.runner.Submit(render.NewImageJob(req.Path))
	c.JSON(http.StatusAccepted, SubmitResponse{TicketID: id})
}

func (h *Handler) Cut(c *gin.Context) {
	id := h.runner.Cut()
	c.JSON(http.StatusAccepted, SubmitResponse{TicketID: id})
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": h.runner.Status()})
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	req := *config.DefaultSettings()
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings payload"})
		return
	}

	*h.settings = req

	if err := h.settings.Save(h.settingsPath); err != nil {
		if errors.Is(err, config.ErrSettingsNotWritable) {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Cannot write " + h.settingsPath + ". Check file permissions or move the data directory.",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	records, err := h.store.List(limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": recordsToJSON(records)})
}

func (h *Handler) JobStats(c *gin.Context) {
	stats, err := h.store.Stats()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"today":      stats.Today,
		"total":      stats.Total,
		"by_outcome": stats.ByOutcome,
	})
}

type jobJSON struct {
	ID         int64  `json:"id"`
	TicketID   string `json:"ticket_id"`
	Kind       string `json:"kind"`
	Title      string `json:"title,omitempty"`
	Outcome    string `json:"outcome"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

func recordsToJSON(records []*history.Record) []jobJSON {
	out := make([]jobJSON, 0, len(records))
	for _, r := range records {
		out = append(out, jobJSON{
			ID:         r.ID,
			TicketID:   r.TicketID,
			Kind:       r.Kind,
			Title:      r.Title,
			Outcome:    r.Outcome,
			Error:      r.Error,
			DurationMS: r.DurationMS,
			CreatedAt:  r.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return out
}
