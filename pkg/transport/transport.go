// Package transport provides the framed, synchronous byte transport that
// Sahara and Firehose are built on top of: a single full-duplex serial
// stream with read_exact/write_all/drain semantics and disconnection
// detection.
//
// Opening the underlying OS serial port is explicitly out of scope (see
// spec §1) — Transport is constructed from an injectable Opener so the core
// never imports a platform-specific serial library directly. Callers supply
// a concrete Opener (backed by whatever serial package they prefer); the
// transport only ever sees an io.ReadWriteCloser.
package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

// Port is the minimal capability Transport needs from an open serial
// connection. Any real serial library's port type satisfies this with a
// thin adapter.
type Port interface {
	io.Reader
	io.Writer
	io.Closer
	// SetReadTimeout bounds the next Read call; implementations that do not
	// support per-call timeouts may approximate with a read deadline.
	SetReadTimeout(d time.Duration) error
}

// Opener is the injectable collaborator that knows how to open an OS
// serial port. The core never constructs one directly — see design note
// in spec §9 ("no global state in the core").
type Opener interface {
	Open(portName string, baud int) (Port, error)
}

// Config controls how a Transport opens its underlying port.
type Config struct {
	PortName string
	Baud     int
	// PurgeBuffers discards anything already buffered on entry. False when
	// entering Sahara (the device's unsolicited Hello must be read), true
	// when entering Firehose.
	PurgeBuffers bool
	ReadTimeout  time.Duration
}

// DisconnectHandler is notified when the transport detects the underlying
// port has gone away. It may be called from a goroutine other than the one
// that issued the failing operation.
type DisconnectHandler func(err error)

// Transport is a framed synchronous byte transport over a single
// full-duplex serial stream. All methods are safe to call from one
// goroutine at a time except IsConnected, which may be polled concurrently.
type Transport struct {
	opener Opener

	mu           sync.Mutex
	port         Port
	cfg          Config
	connected    bool
	onDisconnect DisconnectHandler
}

// New creates a Transport bound to the given Opener. The port is not opened
// until Open is called.
func New(opener Opener) *Transport {
	return &Transport{opener: opener}
}

// OnDisconnect registers a handler invoked the first time a read or write
// observes the port has disconnected.
func (t *Transport) OnDisconnect(h DisconnectHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDisconnect = h
}

// Open opens the configured port. If PurgeBuffers is set, any bytes already
// waiting on the wire are drained before returning.
func (t *Transport) Open(cfg Config) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	port, err := t.opener.Open(cfg.PortName, cfg.Baud)
	if err != nil {
		return edlerr.Wrap(edlerr.CategoryTransport, "transport.Open", "failed to open port", err)
	}

	t.port = port
	t.cfg = cfg
	t.connected = true

	if cfg.PurgeBuffers {
		t.drainLocked(100 * time.Millisecond)
	}
	return nil
}

// Reopen closes the current port (if any) and reopens it. Sahara → Firehose
// transitions always reopen: the host closes the port, waits ~1s for the
// silent mode switch, then reopens with buffer purge (spec §4.2 step 4).
func (t *Transport) Reopen(settle time.Duration, purgeBuffers bool) error {
	t.mu.Lock()
	port := t.port
	cfg := t.cfg
	t.mu.Unlock()

	if port != nil {
		_ = port.Close()
	}
	if settle > 0 {
		time.Sleep(settle)
	}
	cfg.PurgeBuffers = purgeBuffers
	return t.Open(cfg)
}

// Close releases the underlying port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connected = false
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	return err
}

// IsConnected reports whether the transport believes the port is open. This
// is a cheap check meant to be safe from another goroutine (spec §4.1).
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

// ReadExact reads exactly n bytes, bounded by timeout (falling back to the
// transport's configured ReadTimeout when timeout is zero).
func (t *Transport) ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error) {
	t.mu.Lock()
	port := t.port
	if timeout == 0 {
		timeout = t.cfg.ReadTimeout
	}
	t.mu.Unlock()

	if port == nil {
		return nil, t.fail(edlerr.Disconnected("transport.ReadExact"))
	}
	if err := ctx.Err(); err != nil {
		return nil, edlerr.Cancelled("transport.ReadExact")
	}
	if timeout > 0 {
		if err := port.SetReadTimeout(timeout); err != nil {
			return nil, t.fail(edlerr.IoError("transport.ReadExact", err))
		}
	}

	buf := make([]byte, n)
	if _, err := io.ReadFull(port, buf); err != nil {
		return nil, t.fail(classifyReadError(err))
	}
	return buf, nil
}

// WriteAll writes the entire buffer with a single Write call on the port;
// it does not flush.
func (t *Transport) WriteAll(ctx context.Context, data []byte) error {
	t.mu.Lock()
	port := t.port
	t.mu.Unlock()

	if port == nil {
		return t.fail(edlerr.Disconnected("transport.WriteAll"))
	}
	if err := ctx.Err(); err != nil {
		return edlerr.Cancelled("transport.WriteAll")
	}
	if _, err := port.Write(data); err != nil {
		return t.fail(edlerr.IoError("transport.WriteAll", err))
	}
	return nil
}

// Drain reads and discards whatever arrives within the given window. Used
// on Firehose entry (purge_buffers=true) and between protocol phases.
func (t *Transport) Drain(window time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.drainLocked(window)
}

func (t *Transport) drainLocked(window time.Duration) {
	if t.port == nil {
		return
	}
	_ = t.port.SetReadTimeout(20 * time.Millisecond)
	deadline := time.Now().Add(window)
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := t.port.Read(buf)
		if n == 0 && err != nil {
			break
		}
	}
}

func (t *Transport) fail(err error) error {
	t.mu.Lock()
	wasConnected := t.connected
	if edlerr.IsCancelled(err) == false && isDisconnectClass(err) {
		t.connected = false
	}
	handler := t.onDisconnect
	t.mu.Unlock()

	if wasConnected && isDisconnectClass(err) && handler != nil {
		handler(err)
	}
	return err
}

func isDisconnectClass(err error) bool {
	var ee *edlerr.Error
	if as, ok := err.(*edlerr.Error); ok {
		ee = as
	} else {
		return false
	}
	return ee.Category == edlerr.CategoryTransport && !errors.Is(err, edlerr.ErrTimeout)
}

func classifyReadError(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return edlerr.Disconnected("transport.ReadExact")
	}
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return edlerr.Timeout("transport.ReadExact")
	}
	return edlerr.IoError("transport.ReadExact", err)
}
