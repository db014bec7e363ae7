package auth

import (
	"context"
	"fmt"

	"github.com/edlflash/edlctl/pkg/firehose/codec"
)

// DemaciaProvider implements OnePlus's Demacia sub-protocol: a fixed
// post-configure command sequence requiring no external secrets. An ACK
// unlocks privileged commands (spec §4.4).
type DemaciaProvider struct{}

func NewDemaciaProvider() *DemaciaProvider { return &DemaciaProvider{} }

func (p *DemaciaProvider) Name() string { return "demacia" }

func (p *DemaciaProvider) Authenticate(ctx context.Context, conn Conn) (Result, error) {
	cmd := codec.NewCommand("setbootablestoragedrive").Str("value", "demacia")
	if err := conn.SendXML(ctx, cmd.String()); err != nil {
		return Unauthenticated, err
	}
	resp, err := conn.ReceiveUntilTerminal(ctx)
	if err != nil {
		return Unauthenticated, err
	}
	if resp.Outcome != codec.Ok {
		return Rejected, fmt.Errorf("demacia sequence rejected")
	}
	return Authenticated, nil
}
