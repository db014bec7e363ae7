package transport

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

// fakePort is an in-memory Port backed by separate read/write buffers.
type fakePort struct {
	readBuf  *bytes.Buffer
	writeBuf *bytes.Buffer
	closed   bool
}

func newFakePort(preloaded []byte) *fakePort {
	return &fakePort{readBuf: bytes.NewBuffer(preloaded), writeBuf: &bytes.Buffer{}}
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.closed {
		return 0, errors.New("closed")
	}
	if p.readBuf.Len() == 0 {
		return 0, &timeoutError{}
	}
	return p.readBuf.Read(b)
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.closed {
		return 0, errors.New("closed")
	}
	return p.writeBuf.Write(b)
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func (p *fakePort) SetReadTimeout(d time.Duration) error { return nil }

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

type fakeOpener struct {
	port *fakePort
	err  error
}

func (o *fakeOpener) Open(portName string, baud int) (Port, error) {
	if o.err != nil {
		return nil, o.err
	}
	return o.port, nil
}

func TestTransport_ReadExactAndWriteAll(t *testing.T) {
	port := newFakePort([]byte("hello"))
	tr := New(&fakeOpener{port: port})
	if err := tr.Open(Config{PortName: "fake", ReadTimeout: time.Second}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got, err := tr.ReadExact(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("ReadExact failed: %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("ReadExact = %q, want %q", got, "hello")
	}

	if err := tr.WriteAll(context.Background(), []byte("world")); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if port.writeBuf.String() != "world" {
		t.Errorf("write buffer = %q, want %q", port.writeBuf.String(), "world")
	}
}

func TestTransport_ReadExactTimeout(t *testing.T) {
	port := newFakePort(nil)
	tr := New(&fakeOpener{port: port})
	_ = tr.Open(Config{PortName: "fake"})

	_, err := tr.ReadExact(context.Background(), 4, time.Millisecond)
	if !errors.Is(err, edlerr.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestTransport_DisconnectHandlerFiresOnce(t *testing.T) {
	port := newFakePort(nil)
	port.closed = true // Read always errors with a non-timeout error
	tr := New(&fakeOpener{port: port})
	_ = tr.Open(Config{PortName: "fake"})

	var fired int
	tr.OnDisconnect(func(err error) { fired++ })

	if _, err := tr.ReadExact(context.Background(), 1, time.Millisecond); err == nil {
		t.Fatal("expected error")
	}
	if tr.IsConnected() {
		t.Fatal("expected transport to mark itself disconnected")
	}
	if fired != 1 {
		t.Fatalf("expected disconnect handler to fire exactly once, fired %d times", fired)
	}

	// A second failing read must not be connected already, so the handler
	// should not fire again (wasConnected guard).
	if _, err := tr.ReadExact(context.Background(), 1, time.Millisecond); err == nil {
		t.Fatal("expected error")
	}
	if fired != 1 {
		t.Fatalf("disconnect handler fired again: %d", fired)
	}
}

func TestTransport_CancelledContext(t *testing.T) {
	port := newFakePort([]byte("x"))
	tr := New(&fakeOpener{port: port})
	_ = tr.Open(Config{PortName: "fake"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.ReadExact(ctx, 1, time.Second)
	if !errors.Is(err, edlerr.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
