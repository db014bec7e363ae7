package device

import "strings"

// DeviceInfo is the normalized record combining chip identity, storage
// configuration, and harvested build properties into the shape a CLI
// front-end actually wants to print (spec §4.9 "Device-Info Aggregator").
type DeviceInfo struct {
	Identity ChipIdentity
	Storage  StorageConfig
	Build    BuildProp

	// DisplayName is the human-facing device name (derivation rule below).
	DisplayName string
}

// hyperOSAndroidVersion maps a "miui.ui.version.name" generation prefix to
// the Android version it ships on (spec §4.9: "If miui.ui.version.name
// starts with OS3. then infer android_version = 16.0, and likewise for
// lower HyperOS generations"). Only the generations named or implied by
// the spec are covered; an unrecognized prefix leaves AndroidVersion
// untouched.
var hyperOSAndroidVersion = map[string]string{
	"OS1.": "14.0",
	"OS2.": "15.0",
	"OS3.": "16.0",
}

// Aggregate combines a latched chip identity, negotiated storage config,
// and harvested build properties into a DeviceInfo, applying every
// derivation rule in spec §4.9.
func Aggregate(identity ChipIdentity, storage StorageConfig, build BuildProp) DeviceInfo {
	info := DeviceInfo{Identity: identity, Storage: storage, Build: build}

	if marketName, ok := build.Get("ro.product.marketname"); ok && marketName != "" {
		info.DisplayName = marketName
	} else {
		info.DisplayName = strings.TrimSpace(build.Brand + " " + build.Model)
	}

	if strings.Contains(build.DisplayID, "(") && strings.Contains(build.DisplayID, ")") {
		info.Build.OtaVersionFull = build.DisplayID
	}

	if uiVersion, ok := build.Get("miui.ui.version.name"); ok {
		for prefix, androidVersion := range hyperOSAndroidVersion {
			if strings.HasPrefix(uiVersion, prefix) {
				info.Build.AndroidVersion = androidVersion
				break
			}
		}
	}

	return info
}
