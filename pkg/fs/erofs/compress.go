package erofs

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

// contentKind tells decompressBestEffort what shape the decompressed bytes
// should have, so it can tell a correctly-sized-but-garbage candidate from
// a genuine decode (spec §4.7 step 5, condition ii).
type contentKind int

const (
	contentDirectory contentKind = iota
	contentText
)

// decompressBestEffort tries candidate LZ4 framings in order, since the
// exact block framing used by a given EROFS image's compressed layout
// varies by build (spec §4.7 step 5): (a) a raw LZ4 frame, (b) a 4-byte
// block header to skip, (c) an EROFS-specific per-cluster block format,
// (d) small scanning offsets from 1 to 32. A candidate wins only once it
// both produces at least wantSize bytes (condition i) and passes the
// content-shape heuristic for kind (condition ii).
func decompressBestEffort(raw []byte, wantSize int, kind contentKind) ([]byte, error) {
	if out, ok := tryLZ4Frame(raw, wantSize, kind); ok {
		return out, nil
	}
	if len(raw) > 4 {
		if out, ok := tryLZ4Frame(raw[4:], wantSize, kind); ok {
			return out, nil
		}
	}
	if out, ok := tryEROFSBlockFormat(raw, wantSize, kind); ok {
		return out, nil
	}
	for skip := 1; skip <= 32 && skip < len(raw); skip++ {
		if out, ok := tryLZ4Frame(raw[skip:], wantSize, kind); ok {
			return out, nil
		}
	}
	return nil, edlerr.UnsupportedVariant("erofs.decompressBestEffort", "no LZ4 framing produced a valid decode")
}

func tryLZ4Frame(raw []byte, wantSize int, kind contentKind) ([]byte, bool) {
	reader := lz4.NewReader(bytes.NewReader(raw))
	out, err := io.ReadAll(io.LimitReader(reader, int64(wantSize)))
	if err != nil || len(out) < wantSize {
		return nil, false
	}
	if !looksValid(out, kind) {
		return nil, false
	}
	return out, true
}

// tryEROFSBlockFormat treats raw as a sequence of (uint32 compressed_size,
// payload) per-cluster blocks, the layout EROFS uses for its own
// LZ4-compressed clusters rather than a generic LZ4 frame.
func tryEROFSBlockFormat(raw []byte, wantSize int, kind contentKind) ([]byte, bool) {
	if len(raw) < 4 {
		return nil, false
	}
	compressedLen := int(raw[0]) | int(raw[1])<<8 | int(raw[2])<<16 | int(raw[3])<<24
	if compressedLen <= 0 || 4+compressedLen > len(raw) {
		return nil, false
	}
	out := make([]byte, wantSize)
	n, err := lz4.UncompressBlock(raw[4:4+compressedLen], out)
	if err != nil || n < wantSize {
		return nil, false
	}
	if !looksValid(out, kind) {
		return nil, false
	}
	return out, true
}

// looksValid is condition (ii) from spec §4.7 step 5: a correctly-sized
// decode can still be garbage, so content is shape-checked before it's
// accepted. Directory data must start with a plausible dirent header
// table; text data must be mostly printable.
func looksValid(out []byte, kind contentKind) bool {
	switch kind {
	case contentDirectory:
		return looksLikeDirectory(out)
	default:
		return looksLikeText(out)
	}
}

func looksLikeDirectory(out []byte) bool {
	if len(out) < direntHeaderSize {
		return false
	}
	nameOff := binary.LittleEndian.Uint16(out[8:10])
	return nameOff%direntHeaderSize == 0 && int(nameOff) <= len(out)
}

func looksLikeText(out []byte) bool {
	n := len(out)
	if n > 256 {
		n = 256
	}
	if n == 0 {
		return true
	}
	printable := 0
	for _, b := range out[:n] {
		if (b >= 0x20 && b < 0x7f) || b == '\n' || b == '\r' || b == '\t' {
			printable++
		}
	}
	return float64(printable)/float64(n) >= 0.8
}
