package sahara

import (
	"encoding/binary"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

// Frame is the generic Sahara wire frame: { command: u32, length: u32,
// payload[length-8] }, all little-endian, no separate framing byte (spec
// §4.2, §6).
type Frame struct {
	Command Command
	Length  uint32
	Payload []byte
}

// Encode serializes the frame to its wire representation. Length is
// recomputed from len(Payload)+8 so callers never have to keep it in sync
// by hand.
func (f Frame) Encode() []byte {
	length := uint32(len(f.Payload)) + 8
	buf := make([]byte, length)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(f.Command))
	binary.LittleEndian.PutUint32(buf[4:8], length)
	copy(buf[8:], f.Payload)
	return buf
}

// DecodeFrame parses a complete frame (header + payload) already read off
// the wire. Callers read the 8-byte header first to learn Length, then read
// the remaining Length-8 bytes and pass the concatenation here — or call
// DecodeHeader/payload separately, which is what Client does since the
// payload size isn't known until the header is parsed.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < MinFrameLength {
		return Frame{}, edlerr.TruncatedStructure("sahara.DecodeFrame")
	}
	cmd := Command(binary.LittleEndian.Uint32(raw[0:4]))
	length := binary.LittleEndian.Uint32(raw[4:8])
	if int(length) != len(raw) {
		return Frame{}, edlerr.MalformedFrame("sahara.DecodeFrame", "length field does not match frame size")
	}
	payload := make([]byte, length-8)
	copy(payload, raw[8:])
	return Frame{Command: cmd, Length: length, Payload: payload}, nil
}

// DecodeHeader parses just the 8-byte command/length header, before the
// payload has been read off the wire.
func DecodeHeader(raw []byte) (cmd Command, length uint32, err error) {
	if len(raw) < MinFrameLength {
		return 0, 0, edlerr.TruncatedStructure("sahara.DecodeHeader")
	}
	cmd = Command(binary.LittleEndian.Uint32(raw[0:4]))
	length = binary.LittleEndian.Uint32(raw[4:8])
	if length < MinFrameLength {
		return 0, 0, edlerr.MalformedFrame("sahara.DecodeHeader", "length field smaller than header")
	}
	return cmd, length, nil
}

// HelloPayload is the device-sent HELLO frame's payload.
type HelloPayload struct {
	Version       uint32
	VersionMin    uint32
	MaxCmdLength  uint32
	Mode          uint32
	Reserved      [6]uint32
}

func DecodeHello(payload []byte) (HelloPayload, error) {
	if len(payload) < 24 {
		return HelloPayload{}, edlerr.TruncatedStructure("sahara.DecodeHello")
	}
	h := HelloPayload{
		Version:      binary.LittleEndian.Uint32(payload[0:4]),
		VersionMin:   binary.LittleEndian.Uint32(payload[4:8]),
		MaxCmdLength: binary.LittleEndian.Uint32(payload[8:12]),
		Mode:         binary.LittleEndian.Uint32(payload[12:16]),
	}
	return h, nil
}

// EncodeHelloResponse builds the HELLO_RESPONSE payload: echoes the
// device's version/min-version/cmd-length, and states the chosen mode.
func EncodeHelloResponse(version, versionMin, maxCmdLength uint32, mode Mode) []byte {
	buf := make([]byte, 48)
	binary.LittleEndian.PutUint32(buf[0:4], version)
	binary.LittleEndian.PutUint32(buf[4:8], versionMin)
	binary.LittleEndian.PutUint32(buf[8:12], maxCmdLength)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(mode))
	// buf[16:48] is reserved/status fields the device ignores on this path.
	return buf
}

// ReadDataPayload is the device-sent READ_DATA frame's payload: it asks the
// host to send `Size` bytes of the programmer image starting at `Offset`.
type ReadDataPayload struct {
	ImageID uint32
	Offset  uint32
	Size    uint32
}

func DecodeReadData(payload []byte) (ReadDataPayload, error) {
	if len(payload) < 12 {
		return ReadDataPayload{}, edlerr.TruncatedStructure("sahara.DecodeReadData")
	}
	return ReadDataPayload{
		ImageID: binary.LittleEndian.Uint32(payload[0:4]),
		Offset:  binary.LittleEndian.Uint32(payload[4:8]),
		Size:    binary.LittleEndian.Uint32(payload[8:12]),
	}, nil
}

// EndImageTransferPayload is the device-sent END_IMAGE_TRANSFER frame's
// payload: carries the final success/failure status of the upload.
type EndImageTransferPayload struct {
	ImageID uint32
	Status  EndImageStatus
}

func DecodeEndImageTransfer(payload []byte) (EndImageTransferPayload, error) {
	if len(payload) < 8 {
		return EndImageTransferPayload{}, edlerr.TruncatedStructure("sahara.DecodeEndImageTransfer")
	}
	return EndImageTransferPayload{
		ImageID: binary.LittleEndian.Uint32(payload[0:4]),
		Status:  EndImageStatus(binary.LittleEndian.Uint32(payload[4:8])),
	}, nil
}

// EncodeSwitchMode builds the SWITCH_MODE payload.
func EncodeSwitchMode(mode Mode) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(mode))
	return buf
}

// MemoryDebugPayload is the device-sent MEMORY_DEBUG frame's payload: the
// address/size of the chip-identity block to read via MEMORY_READ_64.
type MemoryDebugPayload struct {
	TableAddress uint64
	TableLength  uint64
}

func DecodeMemoryDebug(payload []byte) (MemoryDebugPayload, error) {
	if len(payload) < 16 {
		return MemoryDebugPayload{}, edlerr.TruncatedStructure("sahara.DecodeMemoryDebug")
	}
	return MemoryDebugPayload{
		TableAddress: binary.LittleEndian.Uint64(payload[0:8]),
		TableLength:  binary.LittleEndian.Uint64(payload[8:16]),
	}, nil
}

// EncodeMemoryRead64 requests a read of `length` bytes starting at `addr`.
func EncodeMemoryRead64(addr, length uint64) []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], addr)
	binary.LittleEndian.PutUint64(buf[8:16], length)
	return buf
}
