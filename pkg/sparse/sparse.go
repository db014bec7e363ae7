// Package sparse reads the Android sparse image format: a header plus a
// sequence of chunks (RAW/FILL/DONT_CARE/CRC32) that together describe an
// expanded image without storing its don't-care regions on disk (spec
// §4.4 flash_from_source).
package sparse

import (
	"encoding/binary"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

const (
	magic      = 0xed26ff3a
	headerSize = 28
	chunkHeaderSize = 12
)

// ChunkKind identifies one of the four sparse chunk types.
type ChunkKind uint16

const (
	ChunkRaw      ChunkKind = 0xCAC1
	ChunkFill     ChunkKind = 0xCAC2
	ChunkDontCare ChunkKind = 0xCAC3
	ChunkCRC32    ChunkKind = 0xCAC4
)

// Chunk is one parsed sparse-image chunk.
type Chunk struct {
	Kind ChunkKind
	// ExpandedSize is the number of bytes this chunk represents in the
	// expanded (unsparsed) image, always a multiple of the image's block
	// size.
	ExpandedSize uint64
	// Data holds the raw payload for a RAW chunk, or the 4-byte fill
	// pattern for a FILL chunk. Empty for DONT_CARE and CRC32.
	Data []byte
}

// Expand materializes a FILL chunk's pattern across its full expanded
// size. RAW chunks already hold their expanded bytes in Data.
func (c Chunk) Expand() []byte {
	if c.Kind == ChunkRaw {
		return c.Data
	}
	if c.Kind != ChunkFill || len(c.Data) < 4 {
		return nil
	}
	out := make([]byte, c.ExpandedSize)
	for i := uint64(0); i < c.ExpandedSize; i += 4 {
		copy(out[i:], c.Data[:4])
	}
	return out
}

// Image is a parsed sparse image: ordered chunks plus the block size used
// to interpret chunk_sz fields.
type Image struct {
	BlockSize uint32
	Chunks    []Chunk
}

// ExpandedSize returns the total size of the image once all chunks are
// expanded (the size the destination partition must accommodate).
func (img Image) ExpandedSize() uint64 {
	var total uint64
	for _, c := range img.Chunks {
		total += c.ExpandedSize
	}
	return total
}

// Parse reads a complete sparse image already resident in memory and
// splits it into chunks without expanding DONT_CARE regions (spec §4.4:
// "streams the expanded content on the fly").
func Parse(raw []byte) (Image, error) {
	if len(raw) < headerSize {
		return Image{}, edlerr.TruncatedStructure("sparse.Parse")
	}
	gotMagic := binary.LittleEndian.Uint32(raw[0:4])
	if gotMagic != magic {
		return Image{}, edlerr.BadMagic("sparse.Parse", uint64(gotMagic), magic)
	}
	fileHdrSz := binary.LittleEndian.Uint16(raw[8:10])
	chunkHdrSz := binary.LittleEndian.Uint16(raw[10:12])
	blkSz := binary.LittleEndian.Uint32(raw[12:16])
	totalChunks := binary.LittleEndian.Uint32(raw[20:24])

	if int(fileHdrSz) < headerSize || int(chunkHdrSz) < chunkHeaderSize {
		return Image{}, edlerr.UnsupportedVariant("sparse.Parse", "unexpected header size")
	}

	img := Image{BlockSize: blkSz}
	offset := int(fileHdrSz)

	for i := uint32(0); i < totalChunks; i++ {
		if offset+chunkHeaderSize > len(raw) {
			return Image{}, edlerr.TruncatedStructure("sparse.Parse")
		}
		kind := ChunkKind(binary.LittleEndian.Uint16(raw[offset : offset+2]))
		chunkSzBlocks := binary.LittleEndian.Uint32(raw[offset+4 : offset+8])
		totalSz := binary.LittleEndian.Uint32(raw[offset+8 : offset+12])
		bodyStart := offset + chunkHeaderSize
		bodyLen := int(totalSz) - chunkHeaderSize
		if bodyLen < 0 || bodyStart+bodyLen > len(raw) {
			return Image{}, edlerr.TruncatedStructure("sparse.Parse")
		}
		body := raw[bodyStart : bodyStart+bodyLen]
		expanded := uint64(chunkSzBlocks) * uint64(blkSz)

		chunk := Chunk{Kind: kind, ExpandedSize: expanded}
		switch kind {
		case ChunkRaw:
			chunk.Data = body
		case ChunkFill:
			if len(body) < 4 {
				return Image{}, edlerr.TruncatedStructure("sparse.Parse")
			}
			chunk.Data = body[:4]
		case ChunkDontCare, ChunkCRC32:
			// No payload beyond the chunk header's own fields.
		default:
			return Image{}, edlerr.UnsupportedVariant("sparse.Parse", "unknown chunk type")
		}

		img.Chunks = append(img.Chunks, chunk)
		offset = bodyStart + bodyLen
	}

	return img, nil
}

// IsSparse reports whether raw begins with the Android sparse magic.
func IsSparse(raw []byte) bool {
	if len(raw) < 4 {
		return false
	}
	return binary.LittleEndian.Uint32(raw[0:4]) == magic
}
