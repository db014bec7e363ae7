package codec

import (
	"context"
	"testing"
	"time"
)

type fakeIO struct {
	chunks [][]byte
	pos    int
	writes [][]byte
}

func (f *fakeIO) ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error) {
	if f.pos >= len(f.chunks) {
		return nil, context.DeadlineExceeded
	}
	c := f.chunks[f.pos]
	f.pos++
	return c, nil
}

func (f *fakeIO) WriteAll(ctx context.Context, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.writes = append(f.writes, cp)
	return nil
}

func TestCommandBuilder_FormatsAttributes(t *testing.T) {
	cmd := NewCommand("configure").
		Str("MemoryName", "ufs").
		Uint("MaxPayloadSizeToTargetInBytes", 1048576).
		Bool("verbose", false)
	got := cmd.String()
	want := `<configure MemoryName="ufs" MaxPayloadSizeToTargetInBytes="1048576" verbose="0" />`
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestCommandBuilder_EscapesQuotes(t *testing.T) {
	cmd := NewCommand("erase").Str("PartitionName", `evil" value`)
	got := cmd.String()
	if got == `<erase PartitionName="evil" value" />` {
		t.Fatalf("attribute not escaped: %q", got)
	}
}

func TestCommandBuilder_NegativeSector(t *testing.T) {
	cmd := NewCommand("write").Sector("start_sector", -1)
	got := cmd.String()
	want := `<write start_sector="NUM_DISK_SECTORS-1" />`
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestReceiveUntilTerminal_AckWithLogs(t *testing.T) {
	io := &fakeIO{chunks: [][]byte{
		[]byte(`<?xml version="1.0" ?><data><log value="INFO: erasing" /><response value="ACK" rawmode="false" /></data>`),
	}}
	c := New(io, time.Second)
	resp, err := c.ReceiveUntilTerminal(context.Background())
	if err != nil {
		t.Fatalf("ReceiveUntilTerminal failed: %v", err)
	}
	if resp.Outcome != Ok {
		t.Errorf("Outcome = %v, want Ok", resp.Outcome)
	}
	if len(resp.LogLines) != 1 || resp.LogLines[0] != "INFO: erasing" {
		t.Errorf("LogLines = %v, want [\"INFO: erasing\"]", resp.LogLines)
	}
}

func TestReceiveUntilTerminal_Nak(t *testing.T) {
	io := &fakeIO{chunks: [][]byte{
		[]byte(`<data><response value="NAK" /></data>`),
	}}
	c := New(io, time.Second)
	resp, err := c.ReceiveUntilTerminal(context.Background())
	if err != nil {
		t.Fatalf("ReceiveUntilTerminal failed: %v", err)
	}
	if resp.Outcome != DeviceRejected {
		t.Errorf("Outcome = %v, want DeviceRejected", resp.Outcome)
	}
}

func TestReceiveUntilTerminal_TruncatedXMLStillParses(t *testing.T) {
	io := &fakeIO{chunks: [][]byte{
		[]byte(`<response value="ACK"`),
	}}
	c := New(io, time.Second)
	resp, err := c.ReceiveUntilTerminal(context.Background())
	if err != nil {
		t.Fatalf("ReceiveUntilTerminal failed: %v", err)
	}
	if resp.Outcome != Ok {
		t.Errorf("Outcome = %v, want Ok", resp.Outcome)
	}
}

func TestReceiveUntilTerminal_Timeout(t *testing.T) {
	io := &fakeIO{}
	c := New(io, time.Millisecond)
	_, err := c.ReceiveUntilTerminal(context.Background())
	if err == nil {
		t.Fatal("expected timeout error")
	}
}
