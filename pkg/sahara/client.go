// Package sahara implements the Sahara handshake and second-stage
// programmer upload: the binary request/response state machine a Qualcomm
// boot ROM speaks before the Firehose programmer is running (spec §4.2).
package sahara

import (
	"context"
	"time"

	"github.com/edlflash/edlctl/internal/logger"
	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
)

// Reader is the minimal capability Client needs from the transport layer —
// a read_exact/write_all pair bound to a timeout. pkg/transport.Transport
// satisfies this; tests substitute a fake.
type Reader interface {
	ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error)
	WriteAll(ctx context.Context, data []byte) error
}

// ProgressFunc is called as the programmer image is uploaded, reporting
// cumulative bytes sent against the total image size (spec §4.2).
type ProgressFunc func(uploaded, total uint64)

// Client drives the Sahara state machine over a Reader.
type Client struct {
	io          Reader
	readTimeout time.Duration
}

// NewClient binds a Client to the given transport reader.
func NewClient(io Reader, readTimeout time.Duration) *Client {
	return &Client{io: io, readTimeout: readTimeout}
}

func (c *Client) readFrame(ctx context.Context) (Frame, error) {
	header, err := c.io.ReadExact(ctx, MinFrameLength, c.readTimeout)
	if err != nil {
		return Frame{}, err
	}
	cmd, length, err := DecodeHeader(header)
	if err != nil {
		return Frame{}, err
	}
	if length == MinFrameLength {
		return Frame{Command: cmd, Length: length}, nil
	}
	payload, err := c.io.ReadExact(ctx, int(length-MinFrameLength), c.readTimeout)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Command: cmd, Length: length, Payload: payload}, nil
}

func (c *Client) writeFrame(ctx context.Context, cmd Command, payload []byte) error {
	return c.io.WriteAll(ctx, Frame{Command: cmd, Payload: payload}.Encode())
}

// HandshakeGetIdentity runs the identity-only Sahara path: read HELLO, reply
// with COMMAND mode, switch to memory-debug, read the chip-identity block,
// then RESET the device back to an idle state (spec §4.2 step 2, scenario
// S1). It does not upload a programmer.
func (c *Client) HandshakeGetIdentity(ctx context.Context) (device.ChipIdentity, error) {
	hello, err := c.readHello(ctx)
	if err != nil {
		return device.ChipIdentity{}, err
	}

	if err := c.writeFrame(ctx, CmdHelloResponse, EncodeHelloResponse(hello.Version, hello.VersionMin, hello.MaxCmdLength, ModeCommand)); err != nil {
		return device.ChipIdentity{}, err
	}

	if err := c.writeFrame(ctx, CmdSwitchMode, EncodeSwitchMode(ModeMemoryDebug)); err != nil {
		return device.ChipIdentity{}, err
	}

	debugFrame, err := c.readFrame(ctx)
	if err != nil {
		return device.ChipIdentity{}, err
	}
	if debugFrame.Command != CmdMemoryDebug {
		return device.ChipIdentity{}, edlerr.UnexpectedCommand("sahara.HandshakeGetIdentity", uint32(debugFrame.Command), uint32(CmdMemoryDebug))
	}
	debugInfo, err := DecodeMemoryDebug(debugFrame.Payload)
	if err != nil {
		return device.ChipIdentity{}, err
	}

	if err := c.writeFrame(ctx, CmdMemoryRead64, EncodeMemoryRead64(debugInfo.TableAddress, debugInfo.TableLength)); err != nil {
		return device.ChipIdentity{}, err
	}

	raw, err := c.io.ReadExact(ctx, int(debugInfo.TableLength), c.readTimeout)
	if err != nil {
		return device.ChipIdentity{}, err
	}
	identity, err := ParseIdentityBlock(raw, hello.Version)
	if err != nil {
		return device.ChipIdentity{}, err
	}

	if err := c.writeFrame(ctx, CmdReset, nil); err != nil {
		return device.ChipIdentity{}, err
	}
	logger.InfoCtx(ctx, "sahara identity captured", "msm_id", identity.MsmID, "sahara_version", identity.SaharaVersion)

	return identity, nil
}

// UploadProgrammer runs the programmer-upload Sahara path: read HELLO,
// reply IMAGE_TX_PENDING, then loop answering READ_DATA requests with
// slices of image until END_IMAGE_TRANSFER arrives (spec §4.2 steps 2-3,
// scenario S2). progress may be nil.
func (c *Client) UploadProgrammer(ctx context.Context, image []byte, progress ProgressFunc) error {
	hello, err := c.readHello(ctx)
	if err != nil {
		return err
	}

	if err := c.writeFrame(ctx, CmdHelloResponse, EncodeHelloResponse(hello.Version, hello.VersionMin, hello.MaxCmdLength, ModeImageTXPending)); err != nil {
		return err
	}

	total := uint64(len(image))
	var uploaded uint64

	for {
		if err := ctx.Err(); err != nil {
			return edlerr.Cancelled("sahara.UploadProgrammer")
		}

		frame, err := c.readFrame(ctx)
		if err != nil {
			return err
		}

		switch frame.Command {
		case CmdReadData:
			req, err := DecodeReadData(frame.Payload)
			if err != nil {
				return err
			}
			end := uint64(req.Offset) + uint64(req.Size)
			if end > total {
				return edlerr.SizeExceedsCapacity("sahara.UploadProgrammer", end, total)
			}
			slice := image[req.Offset:end]
			if err := c.io.WriteAll(ctx, slice); err != nil {
				return err
			}
			uploaded = end
			if progress != nil {
				progress(uploaded, total)
			}

		case CmdEndImageTransfer:
			status, err := DecodeEndImageTransfer(frame.Payload)
			if err != nil {
				return err
			}
			if status.Status != ImageTransferSuccess {
				return edlerr.MalformedFrame("sahara.UploadProgrammer", "device reported upload failure")
			}
			logger.InfoCtx(ctx, "sahara programmer upload complete", "total_bytes", total)
			return nil

		default:
			return edlerr.UnexpectedCommand("sahara.UploadProgrammer", uint32(frame.Command), uint32(CmdReadData))
		}
	}
}

// TryReset implements the stuck-Sahara recovery procedure (spec §4.2): send
// RESET; if that fails, fall back to SWITCH_MODE(command)+DONE to force the
// loader back to an idle state.
func (c *Client) TryReset(ctx context.Context) error {
	if err := c.writeFrame(ctx, CmdReset, nil); err == nil {
		return nil
	}
	if err := c.writeFrame(ctx, CmdSwitchMode, EncodeSwitchMode(ModeCommand)); err != nil {
		return err
	}
	return c.writeFrame(ctx, CmdDone, nil)
}

func (c *Client) readHello(ctx context.Context) (HelloPayload, error) {
	frame, err := c.readFrame(ctx)
	if err != nil {
		return HelloPayload{}, err
	}
	if frame.Command != CmdHello {
		return HelloPayload{}, edlerr.UnexpectedCommand("sahara.readHello", uint32(frame.Command), uint32(CmdHello))
	}
	return DecodeHello(frame.Payload)
}
