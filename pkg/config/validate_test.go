package config

import "testing"

func validOptions() *Options {
	o := GetDefaultOptions()
	o.Port = "/dev/ttyUSB0"
	return o
}

func TestValidate_ValidOptionsPasses(t *testing.T) {
	if err := Validate(validOptions()); err != nil {
		t.Errorf("expected valid options to pass, got: %v", err)
	}
}

func TestValidate_MissingPortFails(t *testing.T) {
	o := validOptions()
	o.Port = ""
	if err := Validate(o); err == nil {
		t.Fatal("expected an error for a missing required port")
	}
}

func TestValidate_InvalidStorageTypeFails(t *testing.T) {
	o := validOptions()
	o.StorageType = "nvme"
	if err := Validate(o); err == nil {
		t.Fatal("expected an error for an unrecognized storage_type")
	}
}

func TestValidate_InvalidAuthModeFails(t *testing.T) {
	o := validOptions()
	o.AuthMode = "bogus"
	if err := Validate(o); err == nil {
		t.Fatal("expected an error for an unrecognized auth_mode")
	}
}

func TestValidate_VipAuthRequiresDigestAndSignaturePaths(t *testing.T) {
	o := validOptions()
	o.AuthMode = "vip"
	if err := Validate(o); err == nil {
		t.Fatal("expected an error when auth_mode=vip but digest/signature paths are unset")
	}

	o.DigestPath = "/tmp/digest.bin"
	o.SignaturePath = "/tmp/signature.bin"
	if err := Validate(o); err != nil {
		t.Errorf("expected vip auth with both paths set to validate, got: %v", err)
	}
}

func TestValidate_MaxLunsOutOfRangeFails(t *testing.T) {
	o := validOptions()
	o.MaxLuns = 9
	if err := Validate(o); err == nil {
		t.Fatal("expected an error for max_luns above 8")
	}

	o.MaxLuns = 0
	if err := Validate(o); err == nil {
		t.Fatal("expected an error for max_luns below 1")
	}
}

func TestValidate_InvalidLogLevelFails(t *testing.T) {
	o := validOptions()
	o.Logging.Level = "TRACE"
	if err := Validate(o); err == nil {
		t.Fatal("expected an error for an unrecognized logging level")
	}
}
