package buildprop

import (
	"context"
	"testing"
)

// fakePartition is a PartitionReader backed by a single buffer.
type fakePartition struct {
	buf []byte
}

func (f *fakePartition) ReadAt(offset int64, size int) ([]byte, error) {
	if offset < 0 || int(offset) >= len(f.buf) {
		out := make([]byte, size)
		return out, nil
	}
	end := int(offset) + size
	if end > len(f.buf) {
		end = len(f.buf)
	}
	out := make([]byte, size)
	copy(out, f.buf[offset:end])
	return out, nil
}

func TestParsePropertyFile_CleanText(t *testing.T) {
	text := "# comment\nro.product.brand=Xiaomi\nro.product.model=23049PCD8G\n\nro.build.version.release=14\n"
	props := parsePropertyFile([]byte(text))
	if props["ro.product.brand"] != "Xiaomi" {
		t.Errorf("brand = %q", props["ro.product.brand"])
	}
	if props["ro.build.version.release"] != "14" {
		t.Errorf("release = %q", props["ro.build.version.release"])
	}
	if _, ok := props["# comment"]; ok {
		t.Error("comment line should not be parsed as a property")
	}
}

func TestParsePropertyFile_NulSwitchesToRegex(t *testing.T) {
	raw := append([]byte("garbage\x00\x00binary"), []byte("ro.product.brand=Realme\x00ro.product.model=RMX3888\x00")...)
	props := parsePropertyFile(raw)
	if props["ro.product.brand"] != "Realme" {
		t.Errorf("brand = %q", props["ro.product.brand"])
	}
	if props["ro.product.model"] != "RMX3888" {
		t.Errorf("model = %q", props["ro.product.model"])
	}
}

func TestHarvest_BruteForceFallback(t *testing.T) {
	raw := []byte("ro.product.brand=Xiaomi\x00ro.product.model=23049PCD8G\x00ro.build.version.release=14\x00ro.build.id=UKQ1\x00ro.build.fingerprint=Xiaomi/x/x:14/UKQ1/123:user/release-keys\x00")
	candidates := []Candidate{
		{Name: "system", Reader: &fakePartition{buf: raw}, Size: int64(len(raw))},
	}
	bp, err := Harvest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("Harvest failed: %v", err)
	}
	if bp.Brand != "Xiaomi" {
		t.Errorf("Brand = %q, want Xiaomi", bp.Brand)
	}
	if bp.Model != "23049PCD8G" {
		t.Errorf("Model = %q, want 23049PCD8G", bp.Model)
	}
	if bp.Codename != "x" {
		t.Errorf("Codename = %q, want derived from fingerprint", bp.Codename)
	}
}

func TestHarvest_VendorOverridesBrandOverSystem(t *testing.T) {
	systemRaw := []byte("ro.product.brand=generic\x00ro.product.model=generic\x00ro.build.version.release=14\x00ro.build.id=AAA\x00ro.build.fingerprint=a/b/c\x00")
	vendorRaw := []byte("ro.product.brand=Xiaomi\x00ro.product.vendor.model=23049PCD8G\x00ro.build.id=BBB\x00ro.build.fingerprint=d/e/f\x00")
	candidates := []Candidate{
		{Name: "system", Reader: &fakePartition{buf: systemRaw}, Size: int64(len(systemRaw))},
		{Name: "vendor", Reader: &fakePartition{buf: vendorRaw}, Size: int64(len(vendorRaw))},
	}
	bp, err := Harvest(context.Background(), candidates)
	if err != nil {
		t.Fatalf("Harvest failed: %v", err)
	}
	if bp.Brand != "Xiaomi" {
		t.Errorf("Brand = %q, want vendor to win (Xiaomi)", bp.Brand)
	}
	if bp.AndroidVersion != "14" {
		t.Errorf("AndroidVersion = %q, want system's 14 to survive", bp.AndroidVersion)
	}
}

func TestHarvest_NoCandidatesYieldsEmptyNotError(t *testing.T) {
	bp, err := Harvest(context.Background(), nil)
	if err != nil {
		t.Fatalf("Harvest failed: %v", err)
	}
	if len(bp.Properties) != 0 {
		t.Errorf("expected no properties, got %v", bp.Properties)
	}
}

func TestHarvest_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raw := []byte("ro.product.brand=Xiaomi\x00")
	_, err := Harvest(ctx, []Candidate{{Name: "system", Reader: &fakePartition{buf: raw}, Size: int64(len(raw))}})
	if err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}

func TestPreferLongerOrRegionTagged(t *testing.T) {
	field := "MIUI 14.0"
	preferLongerOrRegionTagged(&field, "MIUI 14.0 (CN01)")
	if field != "MIUI 14.0 (CN01)" {
		t.Errorf("field = %q, want region-tagged candidate to win", field)
	}
}
