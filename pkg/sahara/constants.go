package sahara

// Command identifies a Sahara protocol command. All multi-byte fields in
// the Sahara wire format are little-endian (spec §4.2, §6).
type Command uint32

const (
	CmdHello              Command = 0x01 // Device -> Host: advertises protocol version
	CmdHelloResponse      Command = 0x02 // Host -> Device: chosen mode
	CmdReadData           Command = 0x03 // Device -> Host: requests a programmer-image slice
	CmdEndImageTransfer   Command = 0x04 // Device -> Host: success/failure of upload
	CmdDone               Command = 0x05 // Host -> Device
	CmdDoneResponse       Command = 0x06
	CmdReset              Command = 0x07 // Host -> Device
	CmdResetResponse      Command = 0x08
	CmdMemoryDebug        Command = 0x09 // Device -> Host: identity-in-memory path
	CmdMemoryRead         Command = 0x0A
	CmdCommandReady       Command = 0x0B // Device -> Host
	CmdSwitchMode         Command = 0x0D // Host -> Device
	CmdReadDataResponse   Command = 0x0E // Host -> Device: binary follows
	CmdMemoryRead64       Command = 0x18
)

// Mode selects what the device should do after HELLO_RESPONSE.
type Mode uint32

const (
	ModeImageTXPending Mode = 0x00 // upload a programmer image
	ModeImageTXComplete Mode = 0x01
	ModeMemoryDebug    Mode = 0x02
	ModeCommand        Mode = 0x03 // identity-only / cloud-match path
)

// EndImageStatus is carried in the END_IMAGE_TRANSFER frame.
type EndImageStatus uint32

const (
	ImageTransferSuccess EndImageStatus = 0x00
)

// HelloFrameLength is the fixed length of a Sahara HELLO frame on the wire
// (48 bytes: the 8-byte command/length header plus a 40-byte payload, for
// protocol v2+). Some v1 devices send a shorter frame; the
// decoder tolerates both by reading only what the declared Length promises.
const HelloFrameLength = 0x30

// MinFrameLength is the smallest legal frame: an 8-byte header with no
// payload.
const MinFrameLength = 8
