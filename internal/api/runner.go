package api

import (
	"context"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uticket/printd/internal/history"
	"github.com/uticket/printd/internal/notify"
	"github.com/uticket/printd/internal/render"
	"github.com/uticket/printd/internal/transport"
)

// Runner executes one print operation per submission on its own goroutine.
// Operations are not queued or coordinated; the design assumes discrete
// user-triggered actions, one in flight at a time. Only the latest status
// line is kept. Every failure is converted to a short human-readable status
// here — nothing propagates out of a worker, and a worker never takes the
// process down.
type Runner struct {
	renderer   *render.Renderer
	dispatcher *transport.Dispatcher
	store      *history.Store
	notifier   *notify.Notifier

	mu     sync.Mutex
	status string

	wg sync.WaitGroup
}

func NewRunner(renderer *render.Renderer, dispatcher *transport.Dispatcher, store *history.Store, notifier *notify.Notifier) *Runner {
	return &Runner{
		renderer:   renderer,
		dispatcher: dispatcher,
		store:      store,
		notifier:   notifier,
		status:     "idle",
	}
}

// Submit schedules one or more jobs (a bulk request expands to several) and
// returns the ticket id immediately.
func (r *Runner) Submit(jobs ...render.Job) string {
	id := newTicketID()
	r.setStatus("printing...")
	r.wg.Add(1)
	go r.run(id, jobs)
	return id
}

// Cut schedules a cut-only command.
func (r *Runner) Cut() string {
	id := newTicketID()
	r.setStatus("cutting...")
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.recoverPanic()

		start := time.Now()
		outcome := r.dispatcher.Cut()
		r.finish(id, "cut", "", outcome, "", time.Since(start))
	}()
	return id
}

// Status returns the latest operation's status line.
func (r *Runner) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Wait blocks until all in-flight operations have finished. Used at
// shutdown and by tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(id string, jobs []render.Job) {
	defer r.wg.Done()
	defer r.recoverPanic()

	for _, job := range jobs {
		start := time.Now()

		img, err := r.renderJob(job)
		job.Discard()
		if err != nil {
			r.finish(id, job.Kind.String(), job.Title, transport.OutcomeFailed, err.Error(), time.Since(start))
			return
		}

		outcome := r.dispatcher.Print(img, true)
		r.finish(id, job.Kind.String(), job.Title, outcome, "", time.Since(start))
		if outcome == transport.OutcomeFailed {
			return
		}
	}
}

func (r *Runner) renderJob(job render.Job) (img image.Image, err error) {
	return r.renderer.Render(context.Background(), job)
}

func (r *Runner) finish(id, kind, title string, outcome transport.Outcome, errMsg string, elapsed time.Duration) {
	status := statusLine(outcome, errMsg)
	r.setStatus(status)
	log.Printf("runner: %s %s: %s", kind, id, status)

	if r.store != nil {
		if _, err := r.store.Add(&history.Record{
			TicketID:   id,
			Kind:       kind,
			Title:      title,
			Outcome:    string(outcome),
			Error:      errMsg,
			DurationMS: elapsed.Milliseconds(),
		}); err != nil {
			log.Printf("runner: failed to record history: %v", err)
		}
	}

	if r.notifier != nil {
		event := notify.EventPrintCompleted
		if outcome == transport.OutcomeFailed {
			event = notify.EventPrintFailed
		}
		r.notifier.Send(&notify.Payload{
			Event:    event,
			TicketID: id,
			Kind:     kind,
			Outcome:  string(outcome),
			Error:    errMsg,
		})
	}
}

func (r *Runner) recoverPanic() {
	if rec := recover(); rec != nil {
		log.Printf("runner: recovered from panic: %v", rec)
		r.setStatus("print failed: internal error")
	}
}

func (r *Runner) setStatus(s string) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func statusLine(outcome transport.Outcome, errMsg string) string {
	switch {
	case errMsg != "":
		return "print failed: " + errMsg
	case outcome == transport.OutcomeLocal:
		return "delivered to printer over LAN"
	case outcome == transport.OutcomeCloud:
		return "delivered via cloud relay"
	default:
		return "print failed: no transport available"
	}
}

func newTicketID() string {
	return fmt.Sprintf("desk-%s", uuid.NewString()[:8])
}
