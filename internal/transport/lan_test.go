package transport

import (
	"image"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uticket/printd/internal/config"
)

// acceptOne accepts a single connection and returns everything written to it.
func acceptOne(t *testing.T, ln net.Listener) <-chan []byte {
	t.Helper()
	out := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			out <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		out <- data
	}()
	return out
}

func newLoopbackLAN(t *testing.T) (*LAN, net.Listener) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	settings := config.DefaultSettings()
	settings.PrinterIP = "127.0.0.1"

	lan := NewLAN(settings)
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	lan.port, err = strconv.Atoi(portStr)
	require.NoError(t, err)
	return lan, ln
}

func TestLAN_NotConfiguredWithoutAddress(t *testing.T) {
	lan := NewLAN(config.DefaultSettings())
	assert.False(t, lan.Configured())

	settings := config.DefaultSettings()
	settings.PrinterIP = "192.168.1.50"
	assert.True(t, NewLAN(settings).Configured())
}

func TestLAN_SendWritesEscposStream(t *testing.T) {
	lan, ln := newLoopbackLAN(t)
	received := acceptOne(t, ln)

	img := image.NewGray(image.Rect(0, 0, 100, 40))
	require.NoError(t, lan.Send(img, true))

	select {
	case data := <-received:
		require.NotNil(t, data)
		// Initialize, then raster mode.
		assert.Equal(t, []byte{0x1B, '@', 0x1D, 'v', '0', 0x00}, data[:6])
		// Normalized to head width: 576/8 = 72 row bytes.
		assert.Equal(t, byte(72), data[6])
		assert.Equal(t, byte(0), data[7])
		// Cut command closes the stream.
		assert.Equal(t, []byte{0x1D, 'V', 0x00}, data[len(data)-3:])
	case <-time.After(2 * time.Second):
		t.Fatal("printer never received data")
	}
}

func TestLAN_SendCutSkipsNormalization(t *testing.T) {
	lan, ln := newLoopbackLAN(t)
	received := acceptOne(t, ln)

	require.NoError(t, lan.SendCut())

	select {
	case data := <-received:
		require.NotNil(t, data)
		// The 1x1 blank stays 1x1: a single row byte.
		assert.Equal(t, byte(1), data[6])
		assert.Equal(t, byte(0), data[7])
		assert.Equal(t, byte(1), data[8])
		assert.Equal(t, byte(0), data[9])
		assert.Equal(t, []byte{0x1D, 'V', 0x00}, data[len(data)-3:])
	case <-time.After(2 * time.Second):
		t.Fatal("printer never received data")
	}
}

func TestLAN_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	ln.Close() // free the port so the dial is refused

	settings := config.DefaultSettings()
	settings.PrinterIP = "127.0.0.1"
	lan := NewLAN(settings)
	lan.port, _ = strconv.Atoi(portStr)

	err = lan.Send(image.NewGray(image.Rect(0, 0, 8, 8)), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnectionFailed)
}
