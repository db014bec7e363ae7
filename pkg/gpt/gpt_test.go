package gpt

import (
	"context"
	"encoding/binary"
	"testing"
)

type fakeSectorReader struct {
	bySector map[uint64][]byte
	sectorSz uint32
}

func (f *fakeSectorReader) ReadSectors(ctx context.Context, lun int, start uint64, count uint64, stealth bool) ([]byte, error) {
	out := make([]byte, 0, count*uint64(f.sectorSz))
	for i := uint64(0); i < count; i++ {
		out = append(out, f.bySector[start+i]...)
	}
	return out, nil
}

func buildHeaderSector(entriesLBA uint64, numEntries, entrySize uint32) []byte {
	sec := make([]byte, 512)
	copy(sec[0:8], headerSignature)
	binary.LittleEndian.PutUint64(sec[72:80], entriesLBA)
	binary.LittleEndian.PutUint32(sec[80:84], numEntries)
	binary.LittleEndian.PutUint32(sec[84:88], entrySize)
	return sec
}

func buildEntry(typeGUIDByte byte, firstLBA, lastLBA uint64, name string) []byte {
	e := make([]byte, 128)
	for i := 0; i < 16; i++ {
		e[i] = typeGUIDByte
	}
	for i := 16; i < 32; i++ {
		e[i] = 0xAB
	}
	binary.LittleEndian.PutUint64(e[32:40], firstLBA)
	binary.LittleEndian.PutUint64(e[40:48], lastLBA)
	for i, r := range name {
		binary.LittleEndian.PutUint16(e[56+i*2:58+i*2], uint16(r))
	}
	return e
}

func TestReadLUN_ParsesEntries(t *testing.T) {
	sr := &fakeSectorReader{sectorSz: 512, bySector: map[uint64][]byte{
		1: buildHeaderSector(2, 2, 128),
	}}
	entryData := append(buildEntry(0x11, 2048, 4095, "boot"), buildEntry(0x22, 4096, 8191, "system")...)
	// entries span 2*128=256 bytes, fits in 1 sector; pad to 512.
	sec := make([]byte, 512)
	copy(sec, entryData)
	sr.bySector[2] = sec

	parts, ok, err := ReadLUN(context.Background(), sr, 0, 512)
	if err != nil {
		t.Fatalf("ReadLUN failed: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true")
	}
	if len(parts) != 2 {
		t.Fatalf("got %d partitions, want 2", len(parts))
	}
	if parts[0].Name != "boot" || parts[1].Name != "system" {
		t.Errorf("names = %q, %q", parts[0].Name, parts[1].Name)
	}
	if parts[0].NumSectors != 4095-2048+1 {
		t.Errorf("NumSectors = %d, want %d", parts[0].NumSectors, 4095-2048+1)
	}
}

func TestReadLUN_SkipsEmptySlot(t *testing.T) {
	sr := &fakeSectorReader{sectorSz: 512, bySector: map[uint64][]byte{
		1: buildHeaderSector(2, 1, 128),
	}}
	sec := make([]byte, 512) // all-zero entry -> empty type GUID
	sr.bySector[2] = sec

	parts, ok, err := ReadLUN(context.Background(), sr, 0, 512)
	if err != nil {
		t.Fatalf("ReadLUN failed: %v", err)
	}
	if !ok {
		t.Fatal("expected ok=true (valid header, just empty entries)")
	}
	if len(parts) != 0 {
		t.Errorf("got %d partitions, want 0", len(parts))
	}
}

func TestReadLUN_AbsentSignatureSkipsLUN(t *testing.T) {
	sr := &fakeSectorReader{sectorSz: 512, bySector: map[uint64][]byte{
		1: make([]byte, 512),
	}}
	parts, ok, err := ReadLUN(context.Background(), sr, 1, 512)
	if err != nil {
		t.Fatalf("ReadLUN failed: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing GPT signature")
	}
	if parts != nil {
		t.Errorf("expected nil partitions, got %v", parts)
	}
}
