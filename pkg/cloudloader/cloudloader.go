// Package cloudloader gives the session a programmer-image fetch
// collaborator that can be swapped in behind an interface — the actual
// cloud HTTP client that identifies a device and downloads its matching
// programmer image is out of scope (spec §1); only the interface
// contract and a local-filesystem implementation live here.
package cloudloader

import (
	"context"
	"io"
	"os"

	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
)

// LoaderSource resolves a device's identity to a programmer image. A
// cloud-backed implementation would key off ChipIdentity fields (msm_id,
// oem_id, hw_id_hex) to pick the right loader; this package only defines
// the contract.
type LoaderSource interface {
	Fetch(ctx context.Context, identity device.ChipIdentity) (io.ReadCloser, error)
}

// LocalSource resolves a fixed local file regardless of identity. This is
// the default wiring: operators name the programmer image explicitly on
// the command line rather than relying on a cloud match.
type LocalSource struct {
	Path string
}

// NewLocalSource returns a LoaderSource backed by a single local file.
func NewLocalSource(path string) *LocalSource {
	return &LocalSource{Path: path}
}

// Fetch opens the configured local file, ignoring identity entirely.
func (s *LocalSource) Fetch(ctx context.Context, _ device.ChipIdentity) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, edlerr.Cancelled("cloudloader.LocalSource.Fetch")
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, edlerr.IoError("cloudloader.LocalSource.Fetch", err)
	}
	return f, nil
}

// DirectorySource resolves a programmer image inside a directory keyed
// by the chip's msm_id, for operators who keep a small local cache of
// loaders for the chips they service (e.g. "loaders/msm_0x9008.mbn").
type DirectorySource struct {
	Dir        string
	NameForMsm func(msmID uint32) string
}

// NewDirectorySource returns a LoaderSource backed by a directory of
// per-chip loader files. nameForMsm defaults to a hex-msm-id naming
// scheme if nil.
func NewDirectorySource(dir string, nameForMsm func(msmID uint32) string) *DirectorySource {
	if nameForMsm == nil {
		nameForMsm = defaultLoaderName
	}
	return &DirectorySource{Dir: dir, NameForMsm: nameForMsm}
}

func defaultLoaderName(msmID uint32) string {
	const hexDigits = "0123456789abcdef"
	name := make([]byte, 0, 10)
	name = append(name, "msm_0x"...)
	started := false
	for shift := 28; shift >= 0; shift -= 4 {
		nibble := (msmID >> uint(shift)) & 0xF
		if nibble != 0 || started || shift == 0 {
			name = append(name, hexDigits[nibble])
			started = true
		}
	}
	return string(name) + ".mbn"
}

// Fetch opens Dir/NameForMsm(identity.MsmID).
func (s *DirectorySource) Fetch(ctx context.Context, identity device.ChipIdentity) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, edlerr.Cancelled("cloudloader.DirectorySource.Fetch")
	}
	path := s.Dir + string(os.PathSeparator) + s.NameForMsm(identity.MsmID)
	f, err := os.Open(path)
	if err != nil {
		return nil, edlerr.IoError("cloudloader.DirectorySource.Fetch", err)
	}
	return f, nil
}
