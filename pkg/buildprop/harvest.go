// Package buildprop harvests device-identity key/value pairs out of
// live partitions: it walks the logical-partition catalog (or, absent
// one, standalone physical partitions), sniffs each candidate's
// filesystem, and falls back to a brute-force regex scan when no
// recognizable filesystem is found (spec §4.8).
package buildprop

import (
	"bytes"
	"context"
	"regexp"

	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
	"github.com/edlflash/edlctl/pkg/fs/erofs"
	"github.com/edlflash/edlctl/pkg/fs/ext4"
)

const (
	maxBruteForceScan  = 16 * 1024 * 1024
	bruteForceWindow   = 512 * 1024
	minPropsToStop     = 5
	signedBlobProbeCap = 4 * 1024 * 1024
	smallPartitionCap  = 2 * 1024 * 1024
)

// LpPriority is the order logical partitions are probed in (spec §4.8
// step 1). Callers building a Candidate list for a super-partitioned
// device should resolve these names in this order.
var LpPriority = []string{"system", "system_ext", "product", "vendor", "odm", "my_manifest"}

// PhysicalPriority extends LpPriority with legacy A-only partitions for
// devices with no super partition (spec §4.8 step 2).
var PhysicalPriority = append(append([]string{}, LpPriority...), "persist", "cust", "lenovocust")

// signedBlobPrefixes are ASCII markers some Xiaomi builds prepend before
// the real filesystem header (spec §4.8 step 3).
var signedBlobPrefixes = [][]byte{[]byte("S27_"), []byte("S72_")}

var signedBlobOffsetLadder = []int64{4096, 8192, 65536, 1048576, 2097152, 4194304}

// propLine matches "ro.*=value"-style properties inside raw, possibly
// NUL-laced partition bytes (spec §4.8, parsing rules).
var propLine = regexp.MustCompile(`(ro|display|persist)\.[A-Za-z0-9._-]+=[^\s\x00]+`)

// PartitionReader reads size bytes at a byte offset inside one resolved
// partition (LP-relative or physical — the caller is responsible for
// translating to an absolute device offset before handing this in).
type PartitionReader interface {
	ReadAt(offset int64, size int) ([]byte, error)
}

// Candidate is one partition the harvester may probe, already resolved
// to a reader scoped to that partition's own byte-0.
type Candidate struct {
	Name   string
	Reader PartitionReader
	Size   int64
}

// Harvest tries candidates in lpPriority/physicalPriority order (the
// caller supplies them pre-ordered and pre-resolved — this package only
// implements the per-candidate sniff/parse/fallback logic, where the first
// method that yields properties wins for that candidate). Every candidate
// that yields properties is merged under mergeProperties' policy, and the
// merged BuildProp is returned.
func Harvest(ctx context.Context, candidates []Candidate) (device.BuildProp, error) {
	merged := device.BuildProp{Properties: map[string]string{}}
	found := false

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return merged, edlerr.Cancelled("buildprop.Harvest")
		}
		props, ok := harvestOne(c)
		if !ok {
			continue
		}
		mergeProperties(&merged, props, c.Name)
		found = true
	}

	if !found {
		return merged, nil
	}
	deriveWellKnownFields(&merged)
	return merged, nil
}

// harvestOne sniffs one candidate partition's filesystem and extracts its
// build.prop, falling back to signed-blob offset probing and then
// brute-force regex scanning (spec §4.8 steps 1, 3, 4).
func harvestOne(c Candidate) (map[string]string, bool) {
	header, err := c.Reader.ReadAt(0, 4096)
	if err == nil {
		if data, ok := findInFilesystem(c.Reader, header); ok {
			return parsePropertyFile(data), true
		}
		if isSignedBlob(header) {
			if data, ok := probeSignedBlobLadder(c.Reader); ok {
				return parsePropertyFile(data), true
			}
		}
	}

	if c.Size > 0 && c.Size < smallPartitionCap {
		if props, ok := bruteForceScan(c.Reader, c.Size); ok {
			return props, true
		}
		return nil, false
	}
	if props, ok := bruteForceScan(c.Reader, maxBruteForceScan); ok {
		return props, true
	}
	return nil, false
}

func findInFilesystem(r PartitionReader, header []byte) ([]byte, bool) {
	adapter := &offsetReader{base: r}
	if looksLikeEROFS(header) {
		return erofs.FindBuildProp(adapter)
	}
	if looksLikeEXT4(header) {
		return ext4.FindBuildProp(adapter)
	}
	return nil, false
}

func looksLikeEROFS(header []byte) bool {
	return len(header) >= 1028 && header[1024] == 0xE2 && header[1025] == 0xE1 && header[1026] == 0xF5 && header[1027] == 0xE0
}

func looksLikeEXT4(header []byte) bool {
	return len(header) >= 1024+0x3A && header[1024+0x38] == 0x53 && header[1024+0x39] == 0xEF
}

func isSignedBlob(header []byte) bool {
	for _, prefix := range signedBlobPrefixes {
		if len(header) >= len(prefix) && bytes.Equal(header[:len(prefix)], prefix) {
			return true
		}
	}
	return false
}

// probeSignedBlobLadder re-bases the reader at each candidate offset and
// retries the filesystem sniff there (spec §4.8 step 3).
func probeSignedBlobLadder(r PartitionReader) ([]byte, bool) {
	for _, off := range signedBlobOffsetLadder {
		if off >= signedBlobProbeCap {
			continue
		}
		header, err := r.ReadAt(off, 4096)
		if err != nil {
			continue
		}
		rebased := &offsetReader{base: r, bias: off}
		if looksLikeEROFS(header) {
			if data, ok := erofs.FindBuildProp(rebased); ok {
				return data, true
			}
		}
		if looksLikeEXT4(header) {
			if data, ok := ext4.FindBuildProp(rebased); ok {
				return data, true
			}
		}
	}
	return nil, false
}

// bruteForceScan regex-scans raw partition bytes in fixed windows,
// stopping once enough distinct properties have been found (spec §4.8
// step 4).
func bruteForceScan(r PartitionReader, limit int64) (map[string]string, bool) {
	props := map[string]string{}
	for off := int64(0); off < limit; off += bruteForceWindow {
		window, err := r.ReadAt(off, bruteForceWindow)
		if err != nil {
			break
		}
		for _, m := range propLine.FindAll(window, -1) {
			k, v, ok := splitProperty(string(m))
			if ok {
				props[k] = v
			}
		}
		if len(props) >= minPropsToStop {
			return props, true
		}
	}
	if len(props) > 0 {
		return props, true
	}
	return nil, false
}

// offsetReader rebases a PartitionReader by a fixed byte bias, letting
// the signed-blob ladder and filesystem walkers share one partition
// reader under different "byte-0" assumptions.
type offsetReader struct {
	base PartitionReader
	bias int64
}

func (o *offsetReader) ReadAt(offset int64, size int) ([]byte, error) {
	return o.base.ReadAt(o.bias+offset, size)
}
