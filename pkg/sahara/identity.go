package sahara

import (
	"encoding/binary"
	"encoding/hex"

	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
)

// identityBlockSize is the length in bytes of the chip-identity record read
// from the address/length the device advertises in its MEMORY_DEBUG frame.
//
// Layout: serial(4) | msm_id(4) | oem_id(2) | model_id(2) | hw_id(8) | pk_hash(32)
const identityBlockSize = 4 + 4 + 2 + 2 + 8 + 32

// ParseIdentityBlock decodes the raw bytes read via MEMORY_READ_64 from the
// device-advertised identity table into a ChipIdentity. saharaVersion comes
// from the HELLO frame, not the identity block itself.
func ParseIdentityBlock(raw []byte, saharaVersion uint32) (device.ChipIdentity, error) {
	if len(raw) < identityBlockSize {
		return device.ChipIdentity{}, edlerr.TruncatedStructure("sahara.ParseIdentityBlock")
	}
	id := device.ChipIdentity{
		Serial:        binary.LittleEndian.Uint32(raw[0:4]),
		MsmID:         binary.LittleEndian.Uint32(raw[4:8]),
		OemID:         binary.LittleEndian.Uint16(raw[8:10]),
		ModelID:       binary.LittleEndian.Uint16(raw[10:12]),
		HwIDHex:       hex.EncodeToString(raw[12:20]),
		PkHashHex:     hex.EncodeToString(raw[20:52]),
		SaharaVersion: saharaVersion,
	}
	return id, nil
}
