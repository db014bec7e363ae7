// Package lp parses Android's logical-partition ("super") metadata: the
// geometry block, header, and partition/extent/group tables describing
// how logical partitions map onto the physical super partition (spec
// §4.6).
package lp

import (
	"encoding/binary"

	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
)

const (
	geometryOffset = 4096
	geometrySize   = 4096
	geometryMagic  = 0x616c4467 // "gDla"

	headerMagic       = 0x41680530
	headerMagicVendor = 0x414c5030 // "0PLA"

	tableDescriptorOffset = 0x50
	maxTablesSize         = 256 * 1024
	maxMetadataRead       = 1 * 1024 * 1024

	partitionNameLen = 36
)

// headerOffsetCandidates accommodates 512 vs 4096-byte geometries and
// older builds (spec §4.6 step 2).
var headerOffsetCandidates = []int64{8192, 12288, 4096, 16384}

// RandomAccessReader reads size bytes starting at offset from the super
// partition (or whatever backing store the caller has opened onto it).
type RandomAccessReader interface {
	ReadAt(offset int64, size int) ([]byte, error)
}

// Geometry is the fixed-location block validating the metadata layout
// (spec §4.6 step 1).
type Geometry struct {
	MetadataMaxSize  uint32
	MetadataSlotCount uint32
}

// ReadGeometry reads and validates the geometry block at byte offset 4096.
func ReadGeometry(r RandomAccessReader) (Geometry, error) {
	raw, err := r.ReadAt(geometryOffset, geometrySize)
	if err != nil {
		return Geometry{}, edlerr.Wrap(edlerr.CategoryParse, "lp.ReadGeometry", "short read", err)
	}
	if len(raw) < 20 {
		return Geometry{}, edlerr.TruncatedStructure("lp.ReadGeometry")
	}
	magic := binary.LittleEndian.Uint32(raw[0:4])
	if magic != geometryMagic {
		return Geometry{}, edlerr.BadMagic("lp.ReadGeometry", uint64(magic), geometryMagic)
	}
	return Geometry{
		MetadataMaxSize:   binary.LittleEndian.Uint32(raw[8:12]),
		MetadataSlotCount: binary.LittleEndian.Uint32(raw[12:16]),
	}, nil
}

// tableDescriptor is (offset, count, entry_size) for one of the three
// sub-tables (spec §4.6 step 5).
type tableDescriptor struct {
	offset    uint32
	count     uint32
	entrySize uint32
}

type header struct {
	headerSize uint32
	tablesSize uint32
	partitions tableDescriptor
	extents    tableDescriptor
	groups     tableDescriptor
}

// findHeader probes headerOffsetCandidates in order and returns the first
// whose magic matches either the standard or vendor variant (spec §4.6
// step 2).
func findHeader(r RandomAccessReader) (header, int64, error) {
	for _, candidate := range headerOffsetCandidates {
		raw, err := r.ReadAt(candidate, 4096)
		if err != nil || len(raw) < 4 {
			continue
		}
		magic := binary.LittleEndian.Uint32(raw[0:4])
		if magic != headerMagic && magic != headerMagicVendor {
			continue
		}
		hdr, err := parseHeaderFields(raw)
		if err != nil {
			continue
		}
		return hdr, candidate, nil
	}
	return header{}, 0, edlerr.BadMagic("lp.findHeader", 0, headerMagic)
}

// parseHeaderFields reads header_size and tables_size, retrying at the
// alternate legacy word offset when the primary reading is absurd (spec
// §4.6 step 3: "Sanity-bound tables_size ≤ 256 KiB; on absurd values retry
// with the alternate word offset").
func parseHeaderFields(raw []byte) (header, error) {
	if len(raw) < 0x60 {
		return header{}, edlerr.TruncatedStructure("lp.parseHeaderFields")
	}
	headerSize := binary.LittleEndian.Uint32(raw[8:12])
	tablesSize := binary.LittleEndian.Uint32(raw[16:20])
	if tablesSize == 0 || tablesSize > maxTablesSize {
		tablesSize = binary.LittleEndian.Uint32(raw[24:28])
	}
	if tablesSize == 0 || tablesSize > maxTablesSize {
		return header{}, edlerr.UnsupportedVariant("lp.parseHeaderFields", "tables_size out of bounds at both offsets")
	}

	descOff := tableDescriptorOffset
	hdr := header{
		headerSize: headerSize,
		tablesSize: tablesSize,
		partitions: readTableDescriptor(raw, descOff),
		extents:    readTableDescriptor(raw, descOff+12),
		groups:     readTableDescriptor(raw, descOff+24),
	}
	return hdr, nil
}

func readTableDescriptor(raw []byte, off int) tableDescriptor {
	return tableDescriptor{
		offset:    binary.LittleEndian.Uint32(raw[off : off+4]),
		count:     binary.LittleEndian.Uint32(raw[off+4 : off+8]),
		entrySize: binary.LittleEndian.Uint32(raw[off+8 : off+12]),
	}
}

// extentEntry is a single LP extent: a run of num_sectors_512 sectors
// starting at target_data_512 (spec §4.6 step 6).
type extentEntry struct {
	numSectors512   uint64
	targetData512   uint64
}

// rawPartitionEntry is a single LP partition record (spec §4.6 step 7).
type rawPartitionEntry struct {
	name            string
	attrs           uint32
	firstExtentIdx  uint32
	numExtents      uint32
}

// ReadCatalog runs the full parse: geometry, header, tables, partitions,
// and translates each partition's first extent into an absolute sector on
// the physical device (spec §4.6). superStartSector and deviceSectorSize
// perform the 512-to-native translation in step 8. On any structural
// failure this returns an empty catalog and the error — it never partial-
// parses (spec §4.6 "Failure modes").
func ReadCatalog(r RandomAccessReader, superStartSector uint64, deviceSectorSize uint32) ([]device.LpPartition, error) {
	if _, err := ReadGeometry(r); err != nil {
		return nil, err
	}
	hdr, headerOffset, err := findHeader(r)
	if err != nil {
		return nil, err
	}

	totalLen := uint64(hdr.headerSize) + uint64(hdr.tablesSize)
	if totalLen > maxMetadataRead {
		totalLen = maxMetadataRead
	}
	tables, err := r.ReadAt(headerOffset, int(totalLen))
	if err != nil {
		return nil, edlerr.Wrap(edlerr.CategoryParse, "lp.ReadCatalog", "short metadata read", err)
	}

	extents, err := parseExtents(tables, int(hdr.headerSize), hdr.extents)
	if err != nil {
		return nil, err
	}
	partitions, err := parsePartitions(tables, int(hdr.headerSize), hdr.partitions)
	if err != nil {
		return nil, err
	}

	var out []device.LpPartition
	for _, p := range partitions {
		if p.numExtents == 0 || int(p.firstExtentIdx) >= len(extents) {
			continue
		}
		ext := extents[p.firstExtentIdx]
		absolute := superStartSector + (ext.targetData512*512)/uint64(deviceSectorSize)

		var sizeSectors uint64
		for i := uint32(0); i < p.numExtents; i++ {
			idx := p.firstExtentIdx + i
			if int(idx) >= len(extents) {
				break
			}
			sizeSectors += (extents[idx].numSectors512 * 512) / uint64(deviceSectorSize)
		}

		out = append(out, device.LpPartition{
			Name:              p.name,
			Attrs:             p.attrs,
			RelativeSector512: ext.targetData512,
			AbsoluteSector:    absolute,
			SizeSectors:       sizeSectors,
			SizeBytes:         sizeSectors * uint64(deviceSectorSize),
		})
	}
	return out, nil
}

func parseExtents(tables []byte, headerSize int, desc tableDescriptor) ([]extentEntry, error) {
	entries := make([]extentEntry, 0, desc.count)
	base := headerSize + int(desc.offset)
	for i := uint32(0); i < desc.count; i++ {
		off := base + int(i*desc.entrySize)
		if off+16 > len(tables) {
			return nil, edlerr.TruncatedStructure("lp.parseExtents")
		}
		entries = append(entries, extentEntry{
			numSectors512: binary.LittleEndian.Uint64(tables[off : off+8]),
			targetData512: binary.LittleEndian.Uint64(tables[off+8 : off+16]),
		})
	}
	return entries, nil
}

func parsePartitions(tables []byte, headerSize int, desc tableDescriptor) ([]rawPartitionEntry, error) {
	entries := make([]rawPartitionEntry, 0, desc.count)
	base := headerSize + int(desc.offset)
	for i := uint32(0); i < desc.count; i++ {
		off := base + int(i*desc.entrySize)
		if off+int(desc.entrySize) > len(tables) || desc.entrySize < partitionNameLen+16 {
			return nil, edlerr.TruncatedStructure("lp.parsePartitions")
		}
		nameRaw := tables[off : off+partitionNameLen]
		entries = append(entries, rawPartitionEntry{
			name:           cString(nameRaw),
			attrs:          binary.LittleEndian.Uint32(tables[off+36 : off+40]),
			firstExtentIdx: binary.LittleEndian.Uint32(tables[off+40 : off+44]),
			numExtents:     binary.LittleEndian.Uint32(tables[off+44 : off+48]),
		})
	}
	return entries, nil
}

func cString(raw []byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw)
}
