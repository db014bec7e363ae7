// Package device holds the data model entities shared across protocol
// layers: ChipIdentity (latched from Sahara), StorageConfig (latched from
// Firehose configure), Partition/LpPartition catalogs, BuildProp, and the
// FlashTask describing a single flash operation.
package device

import "github.com/google/uuid"

// ChipIdentity is immutable once captured from the Sahara handshake. Derived
// fields (ChipName, Vendor) are populated by an external lookup table
// (out of scope — see spec §1) and left blank when none is supplied.
type ChipIdentity struct {
	Serial        uint32
	MsmID         uint32
	OemID         uint16
	ModelID       uint16
	HwIDHex       string
	PkHashHex     string
	SaharaVersion uint32

	// ChipName and Vendor are derived from an external device-database
	// lookup table (out of scope, spec §1); left empty unless a caller
	// populates them via WithLookup.
	ChipName string
	Vendor   string
}

// ChipLookup resolves a ChipIdentity's msm_id to a human-readable chip name
// and vendor. The real lookup table (populated from Qualcomm's public
// PID/MSM-ID lists) is an external, out-of-scope collaborator — this is
// only the interface contract.
type ChipLookup interface {
	Lookup(msmID uint32) (chipName, vendor string, ok bool)
}

// WithLookup returns a copy of id with ChipName/Vendor populated from the
// given lookup table, if it has an entry.
func (id ChipIdentity) WithLookup(l ChipLookup) ChipIdentity {
	if l == nil {
		return id
	}
	if name, vendor, ok := l.Lookup(id.MsmID); ok {
		id.ChipName = name
		id.Vendor = vendor
	}
	return id
}

// StorageType identifies the underlying flash technology.
type StorageType string

const (
	StorageUFS  StorageType = "ufs"
	StorageEMMC StorageType = "emmc"
)

// Slot identifies an A/B update slot, or the absence of slotting.
type Slot string

const (
	SlotA    Slot = "a"
	SlotB    Slot = "b"
	SlotNone Slot = ""
)

// StorageConfig is captured during Firehose <configure>/<getstorageinfo>.
// MaxPayloadSize is negotiated: the host proposes a value, the device
// replies with its own cap, and every subsequent transfer must respect the
// device's reply, not the host's proposal.
type StorageConfig struct {
	StorageType      StorageType
	SectorSize       uint32
	MaxPayloadSize   uint32
	CurrentSlot      Slot
	NumDiskSectors   uint64
}

// Partition is a single GPT partition entry. Uniqueness key is (LUN,
// StartSector); Name is NOT globally unique across LUNs/slots.
type Partition struct {
	Name        string
	LUN         uint8
	StartSector uint64
	NumSectors  uint64
	SectorSize  uint32
	TypeGUID    uuid.UUID
	GUID        uuid.UUID
	HasGUID     bool
	Attrs       uint64
}

// LpPartition is a logical partition resolved from the LP metadata table
// inside the super partition. RelativeSector512 is the offset in 512-byte
// units as stored on-disk; AbsoluteSector has already been translated to
// the device's native sector size.
type LpPartition struct {
	Name              string
	Attrs             uint32
	RelativeSector512 uint64
	AbsoluteSector    uint64
	SizeSectors       uint64
	SizeBytes         uint64
}

// BuildProp is a flattened key/value view of an Android build.prop file,
// plus a handful of well-known extracted fields populated by the harvester
// and aggregator.
type BuildProp struct {
	Properties map[string]string

	Brand           string
	Model           string
	AndroidVersion  string
	SecurityPatch   string
	BuildID         string
	Fingerprint     string
	Incremental     string
	DisplayID       string
	OtaVersion      string
	OtaVersionFull  string
	Codename        string
}

// Get returns a property value and whether it was present.
func (b *BuildProp) Get(key string) (string, bool) {
	if b == nil || b.Properties == nil {
		return "", false
	}
	v, ok := b.Properties[key]
	return v, ok
}

// Source identifies where a FlashTask's bytes come from.
type Source struct {
	// Exactly one of Path or Buffer should be set.
	Path   string
	Buffer []byte
	// Sparse indicates the source is Android-sparse-formatted; SizeBytes is
	// then the expanded size, not the on-disk file size.
	Sparse bool
}

// PartitionRef addresses a partition by LUN and name for a FlashTask.
type PartitionRef struct {
	LUN  uint8
	Name string
}

// NumDiskSectorsToken marks a FlashTask's StartSector as relative to
// end-of-disk: the magic token "NUM_DISK_SECTORS-N" transmitted literally
// to the device (spec §3, §4.4). Negative StartSector values use this
// convention: StartSector == -N.
const NumDiskSectorsToken = "NUM_DISK_SECTORS"

// FlashTask describes a single flash operation.
type FlashTask struct {
	Target      PartitionRef
	Source      Source
	StartSector int64
	SizeBytes   uint64
}

// IsEndRelative reports whether StartSector addresses N sectors before
// end-of-disk (GPT backup region) rather than an absolute sector.
func (t FlashTask) IsEndRelative() bool { return t.StartSector < 0 }
