package auth

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/edlflash/edlctl/pkg/firehose/codec"
)

// MiAuthProvider implements Xiaomi's MiAuth sub-protocol: try each
// embedded 256-byte signature in turn; if all fail, request a challenge
// token for external signing (spec §4.4).
type MiAuthProvider struct {
	Signatures [][256]byte
	// Challenge receives the decoded/encoded token when no embedded
	// signature is accepted, so the caller can have it signed externally.
	// Left nil if the caller has no use for it.
	Challenge func(token string)
}

func NewMiAuthProvider(signatures [][256]byte, onChallenge func(token string)) *MiAuthProvider {
	return &MiAuthProvider{Signatures: signatures, Challenge: onChallenge}
}

func (p *MiAuthProvider) Name() string { return "miauth" }

func (p *MiAuthProvider) Authenticate(ctx context.Context, conn Conn) (Result, error) {
	for _, sig := range p.Signatures {
		cmd := codec.NewCommand("sig").Str("TargetName", "sig").Int("size_in_bytes", 256)
		if err := conn.SendXML(ctx, cmd.String()); err != nil {
			return Unauthenticated, err
		}
		if err := conn.SendBytes(ctx, sig[:]); err != nil {
			return Unauthenticated, err
		}
		resp, err := conn.ReceiveUntilTerminal(ctx)
		if err != nil {
			return Unauthenticated, err
		}
		if resp.Outcome == codec.Ok {
			return Authenticated, nil
		}
	}

	reqCmd := codec.NewCommand("sig").Str("TargetName", "req")
	if err := conn.SendXML(ctx, reqCmd.String()); err != nil {
		return Unauthenticated, err
	}
	resp, err := conn.ReceiveUntilTerminal(ctx)
	if err != nil {
		return Unauthenticated, err
	}
	token := scanValueAttr(resp.Raw)
	if token == "" {
		return Rejected, fmt.Errorf("miauth: no challenge token in response")
	}

	encoded := normalizeChallengeToken(token)
	if p.Challenge != nil {
		p.Challenge(encoded)
	}
	return Rejected, &ChallengeRequired{Token: encoded}
}

// normalizeChallengeToken applies the MiAuth token convention: a token
// already prefixed "VQ" is Base64; otherwise it is hex and must be
// hex-decoded then re-encoded as Base64 for external signing (spec §4.4).
func normalizeChallengeToken(token string) string {
	if strings.HasPrefix(token, "VQ") {
		return token
	}
	raw, err := hex.DecodeString(token)
	if err != nil {
		return token
	}
	return base64.StdEncoding.EncodeToString(raw)
}

func scanValueAttr(raw string) string {
	const needle = `value="`
	idx := strings.Index(raw, needle)
	if idx == -1 {
		return ""
	}
	rest := raw[idx+len(needle):]
	end := strings.IndexByte(rest, '"')
	if end == -1 {
		return ""
	}
	return rest[:end]
}
