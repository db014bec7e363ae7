package auth

import (
	"context"
	"testing"

	"github.com/edlflash/edlctl/pkg/firehose/codec"
)

type fakeConn struct {
	responses []codec.Response
	pos       int
	sent      []string
}

func (f *fakeConn) SendXML(ctx context.Context, xml string) error {
	f.sent = append(f.sent, xml)
	return nil
}

func (f *fakeConn) SendBytes(ctx context.Context, data []byte) error { return nil }

func (f *fakeConn) ReceiveUntilTerminal(ctx context.Context) (codec.Response, error) {
	if f.pos >= len(f.responses) {
		return codec.Response{}, context.DeadlineExceeded
	}
	r := f.responses[f.pos]
	f.pos++
	return r, nil
}

func TestVIPProvider_FullSequence(t *testing.T) {
	conn := &fakeConn{responses: []codec.Response{
		{Outcome: codec.Ok}, // digest ack
		{Outcome: codec.Ok}, // signature ack
		{Outcome: codec.Ok}, // finalize ack
	}}
	p := NewVIPProvider([]byte("digest-bytes"), [256]byte{})
	result, err := p.Authenticate(context.Background(), conn)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result != Authenticated {
		t.Errorf("result = %v, want Authenticated", result)
	}
	if len(conn.sent) != 3 {
		t.Fatalf("expected 3 XML sends, got %d", len(conn.sent))
	}
}

func TestVIPProvider_DigestRejected(t *testing.T) {
	conn := &fakeConn{responses: []codec.Response{
		{Outcome: codec.DeviceRejected},
	}}
	p := NewVIPProvider([]byte("digest-bytes"), [256]byte{})
	result, err := p.Authenticate(context.Background(), conn)
	if result != Rejected {
		t.Errorf("result = %v, want Rejected", result)
	}
	if err == nil {
		t.Fatal("expected rejection error")
	}
}

func TestMiAuthProvider_FallsBackToChallenge(t *testing.T) {
	conn := &fakeConn{responses: []codec.Response{
		{Outcome: codec.DeviceRejected},                                  // first embedded sig fails
		{Outcome: codec.Ok, Raw: `<response value="DEADBEEF" />`}, // challenge token (hex)
	}}
	var captured string
	p := NewMiAuthProvider([][256]byte{{}}, func(token string) { captured = token })
	result, err := p.Authenticate(context.Background(), conn)
	if result != Rejected {
		t.Errorf("result = %v, want Rejected", result)
	}
	if _, ok := err.(*ChallengeRequired); !ok {
		t.Fatalf("expected *ChallengeRequired, got %T: %v", err, err)
	}
	if captured == "" {
		t.Fatal("expected challenge callback to fire")
	}
}

func TestMiAuthProvider_EmbeddedSignatureSucceeds(t *testing.T) {
	conn := &fakeConn{responses: []codec.Response{
		{Outcome: codec.Ok},
	}}
	p := NewMiAuthProvider([][256]byte{{}}, nil)
	result, err := p.Authenticate(context.Background(), conn)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result != Authenticated {
		t.Errorf("result = %v, want Authenticated", result)
	}
}

func TestDemaciaProvider(t *testing.T) {
	conn := &fakeConn{responses: []codec.Response{{Outcome: codec.Ok}}}
	p := NewDemaciaProvider()
	result, err := p.Authenticate(context.Background(), conn)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if result != Authenticated {
		t.Errorf("result = %v, want Authenticated", result)
	}
}

func TestAuthenticator_TriesProvidersInOrder(t *testing.T) {
	vipConn := &fakeConn{responses: []codec.Response{{Outcome: codec.DeviceRejected}}}
	demaciaConn := &fakeConn{responses: []codec.Response{{Outcome: codec.Ok}}}

	// Authenticator only calls conn methods through the provider, so we
	// exercise each provider directly against its own fake to assert
	// independent outcomes, then confirm chain semantics with a combined
	// conn that succeeds on the second provider's turn.
	if _, err := NewVIPProvider(nil, [256]byte{}).Authenticate(context.Background(), vipConn); err == nil {
		t.Fatal("expected vip rejection")
	}
	if r, err := NewDemaciaProvider().Authenticate(context.Background(), demaciaConn); err != nil || r != Authenticated {
		t.Fatalf("expected demacia to authenticate, got %v, %v", r, err)
	}

	combined := &fakeConn{responses: []codec.Response{
		{Outcome: codec.DeviceRejected}, // vip digest rejected
		{Outcome: codec.Ok},             // demacia accepted
	}}
	a := NewAuthenticator(NewVIPProvider(nil, [256]byte{}), NewDemaciaProvider())
	r, name, err := a.Authenticate(context.Background(), combined)
	if err != nil || r != Authenticated || name != "demacia" {
		t.Fatalf("expected chain to authenticate via demacia, got %v, %q, %v", r, name, err)
	}
}
