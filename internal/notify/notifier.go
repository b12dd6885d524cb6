// Package notify posts print-completion events to an optional webhook so
// other systems can react to finished or failed tickets.
package notify

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"
)

const (
	EventPrintCompleted = "print_completed"
	EventPrintFailed    = "print_failed"
)

type Payload struct {
	Event     string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	TicketID  string    `json:"ticket_id"`
	Kind      string    `json:"kind"`
	Outcome   string    `json:"outcome"`
	Error     string    `json:"error,omitempty"`
}

type Notifier struct {
	url        string
	httpClient *http.Client
	retryCount int
	retryDelay time.Duration
}

// New creates a notifier for the given URL. An empty URL yields a notifier
// whose Send is a no-op.
func New(url string) *Notifier {
	return &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryCount: 3,
		retryDelay: 5 * time.Second,
	}
}

// Send delivers the event in the background. Failures are logged and
// retried a few times; they never affect the print pipeline.
func (n *Notifier) Send(p *Payload) {
	if n.url == "" {
		return
	}
	p.Timestamp = time.Now()

	go func() {
		body, err := json.Marshal(p)
		if err != nil {
			log.Printf("notify: failed to encode payload: %v", err)
			return
		}

		for attempt := 0; attempt <= n.retryCount; attempt++ {
			if attempt > 0 {
				time.Sleep(n.retryDelay)
			}
			if err := n.post(body); err != nil {
				log.Printf("notify: attempt %d failed: %v", attempt+1, err)
				continue
			}
			return
		}
	}()
}

func (n *Notifier) post(body []byte) error {
	resp, err := n.httpClient.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode}
	}
	return nil
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return http.StatusText(e.code)
}
