// Package erofs walks a read-only EROFS (v1/v2) filesystem image far
// enough to locate build.prop in its usual locations, including inline and
// LZ4-compressed data layouts (spec §4.7).
package erofs

import (
	"encoding/binary"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

const (
	superblockOffset = 1024
	maxFileSize       = 64 * 1024
	direntHeaderSize  = 12

	layoutFlatPlain      = 0
	layoutCompressed1    = 1
	layoutFlatInline     = 2
	layoutCompressed2    = 3
)

var superblockMagic = [4]byte{0xE2, 0xE1, 0xF5, 0xE0}

// Reader reads size bytes at offset from the filesystem's byte 0 (spec
// §4.7).
type Reader interface {
	ReadAt(offset int64, size int) ([]byte, error)
}

type superblock struct {
	blockSizeBits uint8
	rootNid       uint64
	metaBlkAddr   uint32
}

func (sb superblock) blockSize() uint32 { return 1 << sb.blockSizeBits }

func readSuperblock(r Reader) (superblock, error) {
	raw, err := r.ReadAt(superblockOffset, 128)
	if err != nil {
		return superblock{}, edlerr.Wrap(edlerr.CategoryParse, "erofs.readSuperblock", "short read", err)
	}
	if len(raw) < 44 {
		return superblock{}, edlerr.TruncatedStructure("erofs.readSuperblock")
	}
	if raw[0] != superblockMagic[0] || raw[1] != superblockMagic[1] || raw[2] != superblockMagic[2] || raw[3] != superblockMagic[3] {
		return superblock{}, edlerr.BadMagic("erofs.readSuperblock", uint64(binary.LittleEndian.Uint32(raw[0:4])), uint64(binary.LittleEndian.Uint32(superblockMagic[:])))
	}
	return superblock{
		blockSizeBits: raw[12],
		metaBlkAddr:   binary.LittleEndian.Uint32(raw[16:20]),
		rootNid:       uint64(binary.LittleEndian.Uint32(raw[24:28])),
	}, nil
}

// inode is the subset of an EROFS inode this walker needs.
type inode struct {
	extended   bool
	dataLayout uint8
	size       uint64
	rawBlkAddr uint32
	nid        uint64
	inlineOff  int64 // byte offset just past the on-disk inode struct, where FLAT_INLINE data begins
}

func readInode(r Reader, sb superblock, nid uint64) (inode, error) {
	off := int64(sb.metaBlkAddr)*int64(sb.blockSize()) + int64(nid)*32
	raw, err := r.ReadAt(off, 64)
	if err != nil {
		return inode{}, edlerr.Wrap(edlerr.CategoryParse, "erofs.readInode", "short read", err)
	}
	if len(raw) < 32 {
		return inode{}, edlerr.TruncatedStructure("erofs.readInode")
	}
	format := binary.LittleEndian.Uint16(raw[0:2])
	extended := format&0x1 != 0
	dataLayout := uint8((format >> 1) & 0x7)

	in := inode{extended: extended, dataLayout: dataLayout, nid: nid}
	if extended {
		in.size = binary.LittleEndian.Uint64(raw[8:16])
		in.rawBlkAddr = binary.LittleEndian.Uint32(raw[48:52])
		in.inlineOff = off + 64
	} else {
		in.size = uint64(binary.LittleEndian.Uint32(raw[4:8]))
		in.rawBlkAddr = binary.LittleEndian.Uint32(raw[12:16])
		in.inlineOff = off + 32
	}
	return in, nil
}

type dirent struct {
	nid      uint64
	fileType uint8
	name     string
}

// readDirEntries parses fixed-12-byte dirent headers followed by name
// bytes, inferring each name's length from the next entry's nameoff (or
// the end of the directory data for the last entry) (spec §4.7 step 4).
func readDirEntries(r Reader, sb superblock, in inode) ([]dirent, error) {
	data, err := readInodeData(r, sb, in, contentDirectory)
	if err != nil {
		return nil, err
	}
	if len(data) < direntHeaderSize {
		return nil, edlerr.TruncatedStructure("erofs.readDirEntries")
	}
	firstNameOff := binary.LittleEndian.Uint16(data[8:10])
	numEntries := int(firstNameOff) / direntHeaderSize

	var entries []dirent
	for i := 0; i < numEntries; i++ {
		hdrOff := i * direntHeaderSize
		if hdrOff+direntHeaderSize > len(data) {
			break
		}
		nid := binary.LittleEndian.Uint64(data[hdrOff : hdrOff+8])
		nameOff := binary.LittleEndian.Uint16(data[hdrOff+8 : hdrOff+10])
		fileType := data[hdrOff+10]

		nameEnd := len(data)
		if i+1 < numEntries {
			nextOff := binary.LittleEndian.Uint16(data[hdrOff+direntHeaderSize+8 : hdrOff+direntHeaderSize+10])
			nameEnd = int(nextOff)
		}
		if int(nameOff) > len(data) || nameEnd > len(data) || int(nameOff) > nameEnd {
			continue
		}
		entries = append(entries, dirent{nid: nid, fileType: fileType, name: string(data[nameOff:nameEnd])})
	}
	return entries, nil
}

// readInodeData dispatches on data_layout (spec §4.7 step 3). kind tells a
// compressed layout's decoder what shape to expect the output to have.
func readInodeData(r Reader, sb superblock, in inode, kind contentKind) ([]byte, error) {
	size := in.size
	if size > maxFileSize {
		size = maxFileSize
	}
	switch in.dataLayout {
	case layoutFlatPlain:
		return r.ReadAt(int64(in.rawBlkAddr)*int64(sb.blockSize()), int(size))
	case layoutFlatInline:
		return r.ReadAt(in.inlineOff, int(size))
	case layoutCompressed1, layoutCompressed2:
		raw, err := r.ReadAt(int64(in.rawBlkAddr)*int64(sb.blockSize()), int(sb.blockSize())*4)
		if err != nil {
			return nil, err
		}
		return decompressBestEffort(raw, int(size), kind)
	default:
		return nil, edlerr.UnsupportedVariant("erofs.readInodeData", "unknown data layout")
	}
}

var candidatePaths = [][]string{
	{"build.prop"},
	{"system", "build.prop"},
	{"etc", "build.prop"},
}

// FindBuildProp tries each candidate path in order, returning (nil, false)
// if none exist (spec §4.7).
func FindBuildProp(r Reader) ([]byte, bool) {
	sb, err := readSuperblock(r)
	if err != nil {
		return nil, false
	}
	for _, path := range candidatePaths {
		data, ok := lookupPath(r, sb, path)
		if ok {
			return data, true
		}
	}
	return nil, false
}

func lookupPath(r Reader, sb superblock, path []string) ([]byte, bool) {
	currentNid := sb.rootNid
	for i, component := range path {
		in, err := readInode(r, sb, currentNid)
		if err != nil {
			return nil, false
		}
		entries, err := readDirEntries(r, sb, in)
		if err != nil {
			return nil, false
		}
		found := false
		for _, e := range entries {
			if e.name == component {
				currentNid = e.nid
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		if i == len(path)-1 {
			fileInode, err := readInode(r, sb, currentNid)
			if err != nil {
				return nil, false
			}
			data, err := readInodeData(r, sb, fileInode, contentText)
			if err != nil {
				return nil, false
			}
			return data, true
		}
	}
	return nil, false
}
