package logger

import (
	"log/slog"
)

// Standard field keys for structured logging. Use these consistently across
// all log statements so aggregation/querying works across Sahara, Firehose,
// and filesystem-walker log lines.
const (
	// ========================================================================
	// Session & transport
	// ========================================================================
	KeySessionID = "session_id" // opaque session identifier
	KeyPort      = "port"       // serial port identifier
	KeyPhase     = "phase"      // "sahara" | "firehose"
	KeyBaud      = "baud"       // serial baud rate

	// ========================================================================
	// Sahara
	// ========================================================================
	KeySaharaCommand = "sahara_command" // Sahara command id
	KeySaharaVersion = "sahara_version" // negotiated protocol version
	KeyImageOffset   = "image_offset"   // READ_DATA requested offset
	KeyImageSize     = "image_size"     // READ_DATA requested size
	KeyBytesUploaded = "bytes_uploaded" // cumulative programmer bytes sent
	KeyTotalBytes    = "total_bytes"    // total programmer image size

	// ========================================================================
	// Firehose
	// ========================================================================
	KeyFirehoseCommand = "firehose_command" // <read>, <write>, <configure>, ...
	KeyLUN             = "lun"              // storage LUN index
	KeyStartSector     = "start_sector"     // sector-addressed op start
	KeyNumSectors      = "num_sectors"      // sector-addressed op length
	KeySectorSize      = "sector_size"      // device sector size in bytes
	KeyMaxPayload      = "max_payload"      // negotiated max payload size
	KeyStealth         = "stealth"          // VIP stealth framing in use
	KeyAuthMode        = "auth_mode"        // none | vip | oneplus | xiaomi

	// ========================================================================
	// Partitions & filesystem walkers
	// ========================================================================
	KeyPartition  = "partition"   // partition name
	KeyPath       = "path"        // path being resolved inside a filesystem
	KeySize       = "size"        // byte size
	KeyFSType     = "fs_type"     // erofs | ext4 | unknown
	KeyOffset     = "offset"      // byte offset into a reader

	// ========================================================================
	// Operation metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorCode  = "error_code"
	KeyAttempt    = "attempt"
)

func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func Port(port string) slog.Attr      { return slog.String(KeyPort, port) }
func Phase(phase string) slog.Attr    { return slog.String(KeyPhase, phase) }
func LUN(lun int) slog.Attr           { return slog.Int(KeyLUN, lun) }
func StartSector(s int64) slog.Attr   { return slog.Int64(KeyStartSector, s) }
func NumSectors(n uint64) slog.Attr   { return slog.Uint64(KeyNumSectors, n) }
func SectorSize(n uint32) slog.Attr   { return slog.Uint64(KeySectorSize, uint64(n)) }
func Partition(name string) slog.Attr { return slog.String(KeyPartition, name) }
func Path(path string) slog.Attr      { return slog.String(KeyPath, path) }
func ErrorAttr(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
