package transport

import (
	"fmt"
	"image"
	"image/color"
	"net"
	"strconv"
	"time"

	"github.com/uticket/printd/internal/config"
	"github.com/uticket/printd/internal/escpos"
	"github.com/uticket/printd/internal/render"
)

const (
	printerPort = 9100
	lanTimeout  = 2 * time.Second
)

// LAN writes the raw ESC/POS stream straight to the printer's TCP port.
// The connection lives for a single delivery; there is no pooling.
type LAN struct {
	settings *config.Settings
	port     int
}

func NewLAN(settings *config.Settings) *LAN {
	return &LAN{settings: settings, port: printerPort}
}

func (l *LAN) Name() string { return "lan" }

func (l *LAN) Outcome() Outcome { return OutcomeLocal }

func (l *LAN) Configured() bool { return l.settings.PrinterIP != "" }

func (l *LAN) Send(img image.Image, cut bool) error {
	return l.send(escpos.Encode(render.Normalize(img), cut))
}

// SendCut feeds a 1x1 white placeholder so the printer advances and cuts
// without printing anything. The placeholder skips normalization; blowing
// it up to head width would just waste paper.
func (l *LAN) SendCut() error {
	blank := image.NewGray(image.Rect(0, 0, 1, 1))
	blank.SetGray(0, 0, color.Gray{Y: 255})
	return l.send(escpos.Encode(blank, true))
}

func (l *LAN) send(payload []byte) error {
	addr := net.JoinHostPort(l.settings.PrinterIP, strconv.Itoa(l.port))
	conn, err := net.DialTimeout("tcp", addr, lanTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(lanTimeout))

	if _, err := conn.Write(payload); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return nil
}
