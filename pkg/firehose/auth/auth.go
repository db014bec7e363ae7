// Package auth implements the Firehose vendor-specific authentication
// subroutines: VIP (OPLUS/Realme), MiAuth (Xiaomi), and Demacia (OnePlus)
// (spec §4.4). Each is an AuthProvider tried once per session before any
// privileged command is issued; rejection is never fatal.
package auth

import (
	"context"

	"github.com/edlflash/edlctl/pkg/edlerr"
	"github.com/edlflash/edlctl/pkg/firehose/codec"
)

// Conn is the subset of *client.Client an AuthProvider needs to drive its
// exchange. Kept as an interface so auth providers don't import the client
// package (which would create an import cycle, since client.Client may one
// day hold an Authenticator).
type Conn interface {
	SendXML(ctx context.Context, xml string) error
	SendBytes(ctx context.Context, data []byte) error
	ReceiveUntilTerminal(ctx context.Context) (codec.Response, error)
}

// Result is the outcome of an authentication attempt (spec §4.4 state
// machine: Unauthenticated -> (attempt) -> {Authenticated, Rejected}).
type Result int

const (
	Unauthenticated Result = iota
	Authenticated
	Rejected
)

// ChallengeRequired is returned by MiAuth when no embedded signature was
// accepted and a challenge token needs external signing.
type ChallengeRequired struct {
	Token string
}

func (e *ChallengeRequired) Error() string { return "auth challenge requires external signing" }

// Provider is a single vendor authentication strategy.
type Provider interface {
	// Name identifies the provider for logging, e.g. "vip", "miauth", "demacia".
	Name() string
	// Authenticate runs this provider's exchange. A non-nil error comes with
	// Rejected when the device refused the exchange (including
	// *ChallengeRequired) and with Unauthenticated when the exchange could
	// not be completed; neither is fatal to the session (spec §4.4:
	// "Rejected is not fatal; privileged operations simply fail later with
	// DeviceRejected").
	Authenticate(ctx context.Context, conn Conn) (Result, error)
}

// Authenticator tries each configured Provider in order, stopping at the
// first one that authenticates successfully. Grounded on the chain-of-
// providers shape used elsewhere in the corpus for pluggable auth
// mechanisms, adapted here to vendor Firehose strategies instead of
// network-auth mechanisms.
type Authenticator struct {
	providers []Provider
}

func NewAuthenticator(providers ...Provider) *Authenticator {
	return &Authenticator{providers: providers}
}

// Authenticate tries each provider in order. It returns the first
// Authenticated result, or Unauthenticated if every provider rejects or
// errors — never an error itself, since auth failure is not fatal to the
// session.
func (a *Authenticator) Authenticate(ctx context.Context, conn Conn) (Result, string, error) {
	for _, p := range a.providers {
		result, err := p.Authenticate(ctx, conn)
		if err != nil {
			if edlerr.IsCancelled(err) {
				return Unauthenticated, "", err
			}
			continue
		}
		if result == Authenticated {
			return Authenticated, p.Name(), nil
		}
	}
	return Unauthenticated, "", nil
}
