// Package ext4 walks a read-only EXT4 filesystem image far enough to
// locate a handful of known files — specifically build.prop in its usual
// locations — without mounting the filesystem (spec §4.7).
package ext4

import (
	"encoding/binary"

	"github.com/edlflash/edlctl/pkg/edlerr"
)

const (
	superblockOffset = 1024
	superblockMagic  = 0xEF53

	extIncompatExtents = 0x40
	extIncompat64Bit   = 0x80

	rootInode = 2

	extExtentsFl    = 0x00080000
	extentMagic     = 0xF30A
	maxExtentDepth  = 5
	maxFileSize     = 64 * 1024
)

// Reader reads size bytes at offset from the filesystem's byte 0, which is
// wherever the caller has positioned it (typically the start of a logical
// or physical partition) (spec §4.7).
type Reader interface {
	ReadAt(offset int64, size int) ([]byte, error)
}

type superblock struct {
	inodesCount     uint32
	blockSize       uint32
	inodeSize       uint16
	inodesPerGroup  uint32
	featuresIncompat uint32
	blocksCount     uint64
}

func readSuperblock(r Reader) (superblock, error) {
	raw, err := r.ReadAt(superblockOffset, 1024)
	if err != nil {
		return superblock{}, edlerr.Wrap(edlerr.CategoryParse, "ext4.readSuperblock", "short read", err)
	}
	if len(raw) < 0x5A {
		return superblock{}, edlerr.TruncatedStructure("ext4.readSuperblock")
	}
	magic := binary.LittleEndian.Uint16(raw[0x38:0x3A])
	if magic != superblockMagic {
		return superblock{}, edlerr.BadMagic("ext4.readSuperblock", uint64(magic), superblockMagic)
	}

	logBlockSize := binary.LittleEndian.Uint32(raw[0x18:0x1C])
	inodesPerGroup := binary.LittleEndian.Uint32(raw[0x28:0x2C])
	inodeSize := uint16(256)
	if len(raw) >= 0x58+2 {
		inodeSize = binary.LittleEndian.Uint16(raw[0x58:0x5A])
	}
	featuresIncompat := uint32(0)
	if len(raw) >= 0x60+4 {
		featuresIncompat = binary.LittleEndian.Uint32(raw[0x60:0x64])
	}

	return superblock{
		inodesCount:      binary.LittleEndian.Uint32(raw[0x0:0x4]),
		blockSize:        1024 << logBlockSize,
		inodeSize:        inodeSize,
		inodesPerGroup:   inodesPerGroup,
		featuresIncompat: featuresIncompat,
		blocksCount:      uint64(binary.LittleEndian.Uint32(raw[0x4:0x8])),
	}, nil
}

// has64Bit and hasExtents report the relevant EXT4_FEATURE_INCOMPAT bits.
func (sb superblock) hasExtents() bool { return sb.featuresIncompat&extIncompatExtents != 0 }
func (sb superblock) has64Bit() bool   { return sb.featuresIncompat&extIncompat64Bit != 0 }

// groupDescriptor is the subset of a block-group descriptor needed to
// locate a group's inode table.
type groupDescriptor struct {
	inodeTableBlock uint64
}

func readGroupDescriptor(r Reader, sb superblock, group uint32) (groupDescriptor, error) {
	// The GDT is the block immediately after the one containing the
	// superblock: block 2 when block_size is 1 KiB (superblock occupies
	// block 1, since block 0 is reserved for the bootloader), block 1
	// otherwise (superblock lives inside block 0).
	gdtBlock := uint64(1)
	if sb.blockSize == 1024 {
		gdtBlock = 2
	}
	descSize := 32
	if sb.has64Bit() {
		descSize = 64
	}
	off := int64(gdtBlock)*int64(sb.blockSize) + int64(group)*int64(descSize)
	raw, err := r.ReadAt(off, descSize)
	if err != nil {
		return groupDescriptor{}, edlerr.Wrap(edlerr.CategoryParse, "ext4.readGroupDescriptor", "short read", err)
	}
	if len(raw) < 12 {
		return groupDescriptor{}, edlerr.TruncatedStructure("ext4.readGroupDescriptor")
	}
	inodeTableLo := binary.LittleEndian.Uint32(raw[8:12])
	inodeTableHi := uint32(0)
	if descSize == 64 && len(raw) >= 0x2C {
		inodeTableHi = binary.LittleEndian.Uint32(raw[0x28:0x2C])
	}
	return groupDescriptor{inodeTableBlock: uint64(inodeTableHi)<<32 | uint64(inodeTableLo)}, nil
}

// inode is the subset of an ext4 inode this walker needs: mode, size, and
// the block-mapping region (either an extent tree or legacy direct
// pointers), both living at the same offset (i_block, inode offset 0x28).
type inode struct {
	mode    uint16
	size    uint64
	flags   uint32
	block   [60]byte // i_block: 15 direct/indirect pointers (legacy) or extent header+entries
}

func readInode(r Reader, sb superblock, group uint32, indexInGroup uint32) (inode, error) {
	gd, err := readGroupDescriptor(r, sb, group)
	if err != nil {
		return inode{}, err
	}
	off := int64(gd.inodeTableBlock)*int64(sb.blockSize) + int64(indexInGroup)*int64(sb.inodeSize)
	raw, err := r.ReadAt(off, int(sb.inodeSize))
	if err != nil {
		return inode{}, edlerr.Wrap(edlerr.CategoryParse, "ext4.readInode", "short read", err)
	}
	if len(raw) < 0x64 {
		return inode{}, edlerr.TruncatedStructure("ext4.readInode")
	}
	var in inode
	in.mode = binary.LittleEndian.Uint16(raw[0x0:0x2])
	sizeLo := binary.LittleEndian.Uint32(raw[0x4:0x8])
	in.flags = binary.LittleEndian.Uint32(raw[0x20:0x24])
	copy(in.block[:], raw[0x28:0x64])
	sizeHi := uint32(0)
	if len(raw) >= 0x6C {
		sizeHi = binary.LittleEndian.Uint32(raw[0x68:0x6C])
	}
	in.size = uint64(sizeHi)<<32 | uint64(sizeLo)
	return in, nil
}

func resolveInode(r Reader, sb superblock, ino uint32) (inode, error) {
	group := (ino - 1) / sb.inodesPerGroup
	indexInGroup := (ino - 1) % sb.inodesPerGroup
	return readInode(r, sb, group, indexInGroup)
}

// dirEntry is one linear directory entry (spec §4.7 step 5).
type dirEntry struct {
	inode uint32
	name  string
}

func readDirEntries(r Reader, sb superblock, in inode) ([]dirEntry, error) {
	blockData, err := readFileData(r, sb, in, in.size)
	if err != nil {
		return nil, err
	}
	var entries []dirEntry
	off := 0
	for off+8 <= len(blockData) {
		ino := binary.LittleEndian.Uint32(blockData[off : off+4])
		recLen := binary.LittleEndian.Uint16(blockData[off+4 : off+6])
		nameLen := blockData[off+6]
		if recLen < 8 || off+int(recLen) > len(blockData) {
			break
		}
		if ino != 0 {
			nameEnd := off + 8 + int(nameLen)
			if nameEnd <= len(blockData) {
				entries = append(entries, dirEntry{inode: ino, name: string(blockData[off+8 : nameEnd])})
			}
		}
		off += int(recLen)
	}
	return entries, nil
}

// readFileData returns up to maxFileSize bytes of a file's data, walking
// the extent tree when EXT4_EXTENTS_FL is set, or the legacy direct-block
// pointers otherwise (spec §4.7 step 6).
func readFileData(r Reader, sb superblock, in inode, size uint64) ([]byte, error) {
	if size > maxFileSize {
		size = maxFileSize
	}
	if in.flags&extExtentsFl != 0 {
		return readExtentData(r, sb, in.block[:], size, 0)
	}
	return readDirectBlockData(r, sb, in.block[:], size)
}

func readDirectBlockData(r Reader, sb superblock, iBlock []byte, size uint64) ([]byte, error) {
	var out []byte
	for i := 0; i < 12 && uint64(len(out)) < size; i++ {
		blockNum := binary.LittleEndian.Uint32(iBlock[i*4 : i*4+4])
		if blockNum == 0 {
			break
		}
		chunk, err := r.ReadAt(int64(blockNum)*int64(sb.blockSize), int(sb.blockSize))
		if err != nil {
			return nil, edlerr.Wrap(edlerr.CategoryParse, "ext4.readDirectBlockData", "short read", err)
		}
		out = append(out, chunk...)
	}
	if uint64(len(out)) > size {
		out = out[:size]
	}
	return out, nil
}

// readExtentData walks an extent tree header {magic 0xF30A, depth,
// entries}: depth 0 leaves carry {logical, length, phys_hi, phys_lo};
// depth > 0 are index nodes recursed into up to maxExtentDepth (spec §4.7
// step 6).
func readExtentData(r Reader, sb superblock, raw []byte, size uint64, depth int) ([]byte, error) {
	if depth > maxExtentDepth {
		return nil, edlerr.UnsupportedVariant("ext4.readExtentData", "extent tree too deep")
	}
	if len(raw) < 12 {
		return nil, edlerr.TruncatedStructure("ext4.readExtentData")
	}
	magic := binary.LittleEndian.Uint16(raw[0:2])
	if magic != extentMagic {
		return nil, edlerr.BadMagic("ext4.readExtentData", uint64(magic), extentMagic)
	}
	entries := binary.LittleEndian.Uint16(raw[2:4])
	treeDepth := binary.LittleEndian.Uint16(raw[6:8])

	var out []byte
	base := 12
	for i := uint16(0); i < entries; i++ {
		off := base + int(i)*12
		if off+12 > len(raw) {
			break
		}
		if treeDepth == 0 {
			length := binary.LittleEndian.Uint16(raw[off+4 : off+6])
			if length&0x8000 != 0 {
				continue // uninitialized extent, skip
			}
			physHi := binary.LittleEndian.Uint16(raw[off+6 : off+8])
			physLo := binary.LittleEndian.Uint32(raw[off+8 : off+12])
			physBlock := uint64(physHi)<<32 | uint64(physLo)
			for b := uint16(0); b < length && uint64(len(out)) < size; b++ {
				chunk, err := r.ReadAt(int64(physBlock+uint64(b))*int64(sb.blockSize), int(sb.blockSize))
				if err != nil {
					return nil, edlerr.Wrap(edlerr.CategoryParse, "ext4.readExtentData", "short read", err)
				}
				out = append(out, chunk...)
			}
		} else {
			childBlockLo := binary.LittleEndian.Uint32(raw[off+4 : off+8])
			childNode, err := r.ReadAt(int64(childBlockLo)*int64(sb.blockSize), int(sb.blockSize))
			if err != nil {
				return nil, edlerr.Wrap(edlerr.CategoryParse, "ext4.readExtentData", "short read", err)
			}
			childData, err := readExtentData(r, sb, childNode, size-uint64(len(out)), depth+1)
			if err != nil {
				return nil, err
			}
			out = append(out, childData...)
		}
		if uint64(len(out)) >= size {
			break
		}
	}
	if uint64(len(out)) > size {
		out = out[:size]
	}
	return out, nil
}

// candidatePaths is the ordered list of locations build.prop may live at
// (spec §4.7: "root /build.prop, /system/build.prop, /etc/build.prop").
var candidatePaths = [][]string{
	{"build.prop"},
	{"system", "build.prop"},
	{"etc", "build.prop"},
}

// FindBuildProp tries each candidate path in order and returns the first
// file found, or (nil, false) if none exist — a missing file is absence,
// not an error (spec §4.7: "tolerate short reads and malformed entries by
// returning None rather than aborting the session").
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
	currentIno := uint32(rootInode)
	for i, component := range path {
		in, err := resolveInode(r, sb, currentIno)
		if err != nil {
			return nil, false
		}
		isDir := in.mode&0xF000 == 0x4000
		if !isDir {
			return nil, false
		}
		entries, err := readDirEntries(r, sb, in)
		if err != nil {
			return nil, false
		}
		found := false
		for _, e := range entries {
			if e.name == component {
				currentIno = e.inode
				found = true
				break
			}
		}
		if !found {
			return nil, false
		}
		if i == len(path)-1 {
			fileInode, err := resolveInode(r, sb, currentIno)
			if err != nil {
				return nil, false
			}
			data, err := readFileData(r, sb, fileInode, fileInode.size)
			if err != nil {
				return nil, false
			}
			return data, true
		}
	}
	return nil, false
}
