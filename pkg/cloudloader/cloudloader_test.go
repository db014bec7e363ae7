package cloudloader

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/edlflash/edlctl/pkg/device"
)

func TestLocalSource_Fetch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog_firehose.elf")
	if err := os.WriteFile(path, []byte("programmer image bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	src := NewLocalSource(path)
	rc, err := src.Fetch(context.Background(), device.ChipIdentity{MsmID: 0x9008})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "programmer image bytes" {
		t.Errorf("data = %q", data)
	}
}

func TestLocalSource_Fetch_MissingFile(t *testing.T) {
	src := NewLocalSource(filepath.Join(t.TempDir(), "missing.elf"))
	_, err := src.Fetch(context.Background(), device.ChipIdentity{})
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
}

func TestLocalSource_Fetch_CancelledContext(t *testing.T) {
	src := NewLocalSource("irrelevant")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Fetch(ctx, device.ChipIdentity{})
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestDirectorySource_Fetch_DefaultNaming(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "msm_0x9008.mbn"), []byte("loader"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := NewDirectorySource(dir, nil)
	rc, err := src.Fetch(context.Background(), device.ChipIdentity{MsmID: 0x9008})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "loader" {
		t.Errorf("data = %q", data)
	}
}

func TestDirectorySource_Fetch_CustomNaming(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "custom.bin"), []byte("loader2"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	src := NewDirectorySource(dir, func(uint32) string { return "custom.bin" })
	rc, err := src.Fetch(context.Background(), device.ChipIdentity{MsmID: 0x1234})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "loader2" {
		t.Errorf("data = %q", data)
	}
}
