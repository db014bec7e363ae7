package auth

import (
	"context"
	"fmt"

	"github.com/edlflash/edlctl/pkg/firehose/codec"
)

// VIPProvider implements the OPLUS/Realme VIP authentication sub-protocol:
// a digest is sent, then a 256-byte RSA-2048 signature over it, then a
// finalizing configure-like handshake (spec §4.4).
type VIPProvider struct {
	Digest    []byte
	Signature [256]byte
}

func NewVIPProvider(digest []byte, signature [256]byte) *VIPProvider {
	return &VIPProvider{Digest: digest, Signature: signature}
}

func (p *VIPProvider) Name() string { return "vip" }

func (p *VIPProvider) Authenticate(ctx context.Context, conn Conn) (Result, error) {
	digestCmd := codec.NewCommand("sig").
		Str("TargetName", "digest").
		Int("size_in_bytes", int64(len(p.Digest)))
	if err := conn.SendXML(ctx, digestCmd.String()); err != nil {
		return Unauthenticated, err
	}
	if err := conn.SendBytes(ctx, p.Digest); err != nil {
		return Unauthenticated, err
	}
	resp, err := conn.ReceiveUntilTerminal(ctx)
	if err != nil {
		return Unauthenticated, err
	}
	if resp.Outcome != codec.Ok {
		return Rejected, fmt.Errorf("vip digest rejected")
	}

	sigCmd := codec.NewCommand("sig").
		Str("TargetName", "sig").
		Int("size_in_bytes", int64(len(p.Signature)))
	if err := conn.SendXML(ctx, sigCmd.String()); err != nil {
		return Unauthenticated, err
	}
	if err := conn.SendBytes(ctx, p.Signature[:]); err != nil {
		return Unauthenticated, err
	}
	resp, err = conn.ReceiveUntilTerminal(ctx)
	if err != nil {
		return Unauthenticated, err
	}
	if resp.Outcome != codec.Ok {
		return Rejected, fmt.Errorf("vip signature rejected")
	}

	finalizeCmd := codec.NewCommand("configure").Str("MemoryName", "ufs").Bool("verbose", false)
	if err := conn.SendXML(ctx, finalizeCmd.String()); err != nil {
		return Unauthenticated, err
	}
	resp, err = conn.ReceiveUntilTerminal(ctx)
	if err != nil {
		return Unauthenticated, err
	}
	if resp.Outcome != codec.Ok {
		return Rejected, fmt.Errorf("vip finalize rejected")
	}
	return Authenticated, nil
}
