package buildprop

import (
	"bytes"
	"strings"

	"github.com/edlflash/edlctl/pkg/device"
)

// parsePropertyFile implements the line-oriented property parsing rules
// (spec §4.8 "Parsing rules for property files"). If the content contains
// NUL bytes — the signature of a raw partition extraction rather than a
// clean property-file read — it switches to regex extraction instead.
func parsePropertyFile(data []byte) map[string]string {
	if bytes.IndexByte(data, 0) >= 0 {
		props := map[string]string{}
		for _, m := range propLine.FindAll(data, -1) {
			if k, v, ok := splitProperty(string(m)); ok {
				props[k] = v
			}
		}
		return props
	}

	props := map[string]string{}
	for _, line := range strings.FieldsFunc(string(data), func(r rune) bool { return r == '\n' || r == '\r' }) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := splitProperty(line); ok {
			props[k] = v
		}
	}
	return props
}

// splitProperty splits on the first '=' and trims trailing control bytes
// from the value (spec §4.8 parsing rules).
func splitProperty(line string) (string, string, bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	key := strings.TrimSpace(line[:idx])
	value := strings.TrimRightFunc(line[idx+1:], func(r rune) bool { return r < 0x20 })
	if key == "" {
		return "", "", false
	}
	return key, value, true
}

// mergeProperties folds a partition's properties into the accumulated
// BuildProp under the merge policy (spec §4.8 "Merge policy"): vendor/odm
// beat product/system for brand/model, system wins for android-version,
// and whichever OTA-version string carries more information (longer, or
// has a region marker like "(CN01)") wins.
func mergeProperties(merged *device.BuildProp, props map[string]string, partitionName string) {
	for k, v := range props {
		merged.Properties[k] = v
	}

	isVendorLike := partitionName == "vendor" || partitionName == "odm"
	isSystem := partitionName == "system"

	if v, ok := pick(props, "ro.product.brand", "ro.product.vendor.brand"); ok {
		setIfBetter(&merged.Brand, v, isVendorLike)
	}
	if v, ok := pick(props, "ro.product.model", "ro.product.vendor.model"); ok {
		setIfBetter(&merged.Model, v, isVendorLike)
	}

	if v, ok := pick(props, "ro.build.version.release"); ok && (isSystem || merged.AndroidVersion == "") {
		merged.AndroidVersion = v
	}
	if v, ok := pick(props, "ro.build.version.security_patch"); ok && merged.SecurityPatch == "" {
		merged.SecurityPatch = v
	}
	if v, ok := pick(props, "ro.build.id"); ok && merged.BuildID == "" {
		merged.BuildID = v
	}
	if v, ok := pick(props, "ro.build.fingerprint"); ok && merged.Fingerprint == "" {
		merged.Fingerprint = v
	}
	if v, ok := pick(props, "ro.build.version.incremental"); ok && merged.Incremental == "" {
		merged.Incremental = v
	}

	if v, ok := pick(props, "ro.build.display.id"); ok {
		preferLongerOrRegionTagged(&merged.DisplayID, v)
	}
	if v, ok := pick(props, "ro.build.version.ota"); ok {
		preferLongerOrRegionTagged(&merged.OtaVersion, v)
	}
}

func pick(props map[string]string, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != "" {
			return v, true
		}
	}
	return "", false
}

func setIfBetter(field *string, v string, higherPriority bool) {
	if *field == "" || higherPriority {
		*field = v
	}
}

// preferLongerOrRegionTagged implements the "more information wins" rule
// for human-readable OTA/display version strings.
func preferLongerOrRegionTagged(field *string, candidate string) {
	if *field == "" {
		*field = candidate
		return
	}
	candidateHasRegion := strings.Contains(candidate, "(") && strings.Contains(candidate, ")")
	currentHasRegion := strings.Contains(*field, "(") && strings.Contains(*field, ")")
	if candidateHasRegion && !currentHasRegion {
		*field = candidate
		return
	}
	if candidateHasRegion == currentHasRegion && len(candidate) > len(*field) {
		*field = candidate
	}
}

// deriveWellKnownFields applies the device-info-aggregator-adjacent
// derivation rules that are really about build.prop itself rather than
// the final aggregate record: extracting Codename from Fingerprint when
// not otherwise present (spec §4.9, last bullet — this part of it belongs
// to the harvester since it only needs BuildProp, not ChipIdentity or
// StorageConfig).
func deriveWellKnownFields(b *device.BuildProp) {
	if b.Codename == "" && b.Fingerprint != "" {
		parts := strings.Split(b.Fingerprint, "/")
		if len(parts) > 1 {
			b.Codename = parts[1]
		}
	}
}
