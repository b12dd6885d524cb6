// Package transport delivers encoded receipts to the physical printer,
// either straight over the local network or through an MQTT cloud relay.
package transport

import (
	"errors"
	"image"
	"log"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrBrokerTimeout    = errors.New("broker operation timed out")
)

// Outcome describes how a print request ultimately left the process. A
// transport attempt is atomic from the caller's perspective; there is no
// partial delivery.
type Outcome string

const (
	OutcomeLocal  Outcome = "delivered-local"
	OutcomeCloud  Outcome = "delivered-cloud"
	OutcomeFailed Outcome = "failed"
)

// Transport is one delivery strategy. Configured reports whether the
// current settings give the strategy somewhere to send; unconfigured
// strategies are skipped, not treated as failures.
type Transport interface {
	Name() string
	Configured() bool
	Send(img image.Image, cut bool) error
	SendCut() error
	Outcome() Outcome
}

// Dispatcher tries each strategy in order and stops at the first success.
// With every strategy skipped or failed the result is OutcomeFailed; no
// error escapes a dispatch call.
type Dispatcher struct {
	transports []Transport
}

func NewDispatcher(transports ...Transport) *Dispatcher {
	return &Dispatcher{transports: transports}
}

// Print delivers the image, optionally followed by a paper cut.
func (d *Dispatcher) Print(img image.Image, cut bool) Outcome {
	for _, t := range d.transports {
		if !t.Configured() {
			continue
		}
		if err := t.Send(img, cut); err != nil {
			log.Printf("transport: %s delivery failed: %v", t.Name(), err)
			continue
		}
		return t.Outcome()
	}
	return OutcomeFailed
}

// Cut issues a cut-only command with the same fallback ordering as Print.
func (d *Dispatcher) Cut() Outcome {
	for _, t := range d.transports {
		if !t.Configured() {
			continue
		}
		if err := t.SendCut(); err != nil {
			log.Printf("transport: %s cut failed: %v", t.Name(), err)
			continue
		}
		return t.Outcome()
	}
	return OutcomeFailed
}
