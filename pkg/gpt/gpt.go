// Package gpt parses GUID Partition Tables read through the Firehose
// client, one LUN at a time (spec §4.5).
package gpt

import (
	"context"
	"encoding/binary"
	"sort"
	"unicode/utf16"

	"github.com/google/uuid"

	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
)

const (
	headerSignature = "EFI PART"
	headerSize      = 92
)

// SectorReader reads count sectors starting at start from the given LUN.
// pkg/firehose/client.Client.ReadSectors satisfies this.
type SectorReader interface {
	ReadSectors(ctx context.Context, lun int, start uint64, count uint64, stealth bool) ([]byte, error)
}

// header is the subset of the GPT header this reader needs.
type header struct {
	entriesLBA   uint64
	numEntries   uint32
	entrySize    uint32
}

// ReadLUN reads and parses the GPT on a single LUN, returning its
// partitions ordered by first LBA. A missing/invalid signature is not an
// error — it means the LUN has no GPT (spec §4.5 step 1: "Absent → skip
// LUN") — and is reported via the bool return, not an error.
func ReadLUN(ctx context.Context, sr SectorReader, lun int, sectorSize uint32) ([]device.Partition, bool, error) {
	headerSector, err := sr.ReadSectors(ctx, lun, 1, 1, false)
	if err != nil {
		return nil, false, err
	}
	if len(headerSector) < headerSize || string(headerSector[0:8]) != headerSignature {
		return nil, false, nil
	}

	hdr := header{
		entriesLBA: binary.LittleEndian.Uint64(headerSector[72:80]),
		numEntries: binary.LittleEndian.Uint32(headerSector[80:84]),
		entrySize:  binary.LittleEndian.Uint32(headerSector[84:88]),
	}
	if hdr.entrySize == 0 || hdr.numEntries == 0 {
		return nil, false, nil
	}

	entryBytes := uint64(hdr.numEntries) * uint64(hdr.entrySize)
	entrySectors := (entryBytes + uint64(sectorSize) - 1) / uint64(sectorSize)
	entryData, err := sr.ReadSectors(ctx, lun, hdr.entriesLBA, entrySectors, false)
	if err != nil {
		return nil, false, err
	}

	var partitions []device.Partition
	for i := uint32(0); i < hdr.numEntries; i++ {
		off := uint64(i) * uint64(hdr.entrySize)
		if off+128 > uint64(len(entryData)) {
			break
		}
		entry := entryData[off : off+uint64(hdr.entrySize)]
		typeGUID := entry[0:16]
		if isZeroGUID(typeGUID) {
			continue
		}
		firstLBA := binary.LittleEndian.Uint64(entry[32:40])
		lastLBA := binary.LittleEndian.Uint64(entry[40:48])
		attrs := binary.LittleEndian.Uint64(entry[48:56])
		name := decodeUTF16Name(entry[56:128])

		partitions = append(partitions, device.Partition{
			Name:        name,
			LUN:         uint8(lun),
			StartSector: firstLBA,
			NumSectors:  lastLBA - firstLBA + 1,
			SectorSize:  sectorSize,
			TypeGUID:    mixedEndianGUID(typeGUID),
			GUID:        mixedEndianGUID(entry[16:32]),
			HasGUID:     true,
			Attrs:       attrs,
		})
	}
	sort.SliceStable(partitions, func(i, j int) bool {
		return partitions[i].StartSector < partitions[j].StartSector
	})
	return partitions, true, nil
}

// ReadAll reads every LUN from 0..maxLUNs-1 and returns the combined flat
// partition catalog ordered by (LUN, first LBA) (spec §4.5: "Output: flat
// list ordered by (LUN, first LBA). Duplicate names across LUNs/slots are
// retained").
func ReadAll(ctx context.Context, sr SectorReader, maxLUNs int, sectorSize uint32) ([]device.Partition, error) {
	var all []device.Partition
	for lun := 0; lun < maxLUNs; lun++ {
		parts, ok, err := ReadLUN(ctx, sr, lun, sectorSize)
		if err != nil {
			if edlerr.IsCancelled(err) {
				return nil, err
			}
			continue
		}
		if !ok {
			continue
		}
		all = append(all, parts...)
	}
	return all, nil
}

// mixedEndianGUID converts a GPT on-disk GUID (first three fields stored
// little-endian, last two stored as an opaque big-endian byte string) into
// a standard RFC 4122 uuid.UUID.
func mixedEndianGUID(b []byte) uuid.UUID {
	var out uuid.UUID
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:16], b[8:16])
	return out
}

func isZeroGUID(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// decodeUTF16Name decodes a fixed-width UTF-16LE GPT partition name,
// stopping at the first NUL code unit (spec §4.5, §6: "UTF-16LE names
// (36 chars max)").
func decodeUTF16Name(raw []byte) string {
	units := make([]uint16, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		u := binary.LittleEndian.Uint16(raw[i : i+2])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
