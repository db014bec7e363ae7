// Package serialport is the thin glue that satisfies pkg/transport.Opener
// against a real OS serial device. USB-serial port enumeration and opening
// is explicitly out of scope for the core (spec §1) — no example repo in
// the corpus vendors a full cross-platform serial library, so this adapter
// is a minimal POSIX termios configuration on top of golang.org/x/sys/unix
// (already present transitively via the rest of the dependency graph)
// rather than a hand-rolled byte-banged protocol.
package serialport

import (
	"fmt"
	"os"
	"time"

	"github.com/edlflash/edlctl/pkg/transport"
)

// Opener opens an OS serial device by path and configures it for raw,
// 8N1, no-flow-control operation at the requested baud rate. It satisfies
// transport.Opener.
type Opener struct{}

// Open implements transport.Opener.
func (Opener) Open(portName string, baud int) (transport.Port, error) {
	f, err := os.OpenFile(portName, os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serialport: open %s: %w", portName, err)
	}
	if err := configureRaw(f, baud); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("serialport: configure %s: %w", portName, err)
	}
	return &port{f: f}, nil
}

// port adapts *os.File to transport.Port. SetReadTimeout uses the file's
// read deadline rather than a VTIME/VMIN termios setting, since deadlines
// compose cleanly with the context cancellation pkg/transport layers on
// top.
type port struct {
	f *os.File
}

func (p *port) Read(b []byte) (int, error)  { return p.f.Read(b) }
func (p *port) Write(b []byte) (int, error) { return p.f.Write(b) }
func (p *port) Close() error                { return p.f.Close() }

func (p *port) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return p.f.SetReadDeadline(time.Time{})
	}
	return p.f.SetReadDeadline(time.Now().Add(d))
}
