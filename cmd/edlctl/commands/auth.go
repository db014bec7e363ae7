package commands

import (
	"fmt"
	"os"

	"github.com/edlflash/edlctl/pkg/config"
	"github.com/edlflash/edlctl/pkg/firehose/auth"
)

// buildAuthenticator constructs the vendor authentication strategy named
// by o.AuthMode (spec §4.4 "Authentication subroutines"). MiAuth and
// Demacia need no pre-supplied secrets (they drive an external-signing
// challenge or a fixed handshake); VIP needs a digest and a 256-byte
// signature read from disk.
func buildAuthenticator(o *config.Options) (*auth.Authenticator, error) {
	switch o.AuthMode {
	case "vip":
		digest, err := os.ReadFile(o.DigestPath)
		if err != nil {
			return nil, fmt.Errorf("reading digest_path: %w", err)
		}
		sigBytes, err := os.ReadFile(o.SignaturePath)
		if err != nil {
			return nil, fmt.Errorf("reading signature_path: %w", err)
		}
		if len(sigBytes) != 256 {
			return nil, fmt.Errorf("signature_path must contain exactly 256 bytes, got %d", len(sigBytes))
		}
		var signature [256]byte
		copy(signature[:], sigBytes)
		return auth.NewAuthenticator(auth.NewVIPProvider(digest, signature)), nil

	case "xiaomi":
		// MiAuth is Xiaomi's challenge/response sub-protocol; the
		// external signer is wired through onChallenge, which this CLI
		// front-end doesn't implement (spec §1: "signature
		// generation... consumed, not produced") — it prints the
		// challenge token for an operator to sign out-of-band.
		return auth.NewAuthenticator(auth.NewMiAuthProvider(nil, printChallengeToken)), nil

	case "oneplus":
		// OnePlus uses Demacia's fixed handshake, not MiAuth.
		return auth.NewAuthenticator(auth.NewDemaciaProvider()), nil

	default:
		return auth.NewAuthenticator(auth.NewDemaciaProvider()), nil
	}
}

func printChallengeToken(token string) {
	fmt.Fprintf(os.Stderr, "auth challenge requires external signing, token: %s\n", token)
}
