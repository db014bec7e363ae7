package client

import (
	"context"
	"strconv"
	"strings"

	"github.com/edlflash/edlctl/pkg/edlerr"
	"github.com/edlflash/edlctl/pkg/firehose/codec"
)

// ApplyPatch runs the Firehose "patch" sub-protocol: each <patch .../>
// element in xmlText describes a byte-level modification of a specific
// sector range, applied in file order (spec §4.4 apply_patch).
func (c *Client) ApplyPatch(ctx context.Context, xmlText string) (int, error) {
	patches := extractPatchTags(xmlText)
	applied := 0
	for _, tag := range patches {
		if _, err := c.exchangeRaw(ctx, "firehose.ApplyPatch", tag); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

func (c *Client) exchangeRaw(ctx context.Context, op, xml string) (string, error) {
	if err := c.codec.SendXML(ctx, xml); err != nil {
		return "", err
	}
	resp, err := c.codec.ReceiveUntilTerminal(ctx)
	if err != nil {
		return "", err
	}
	if resp.Outcome != codec.Ok {
		return "", edlerr.DeviceNak(op, resp.Message)
	}
	return resp.Raw, nil
}

// extractPatchTags splits xmlText into its individual <patch .../>
// elements, tolerating surrounding whitespace and an enclosing <data>
// wrapper.
func extractPatchTags(xmlText string) []string {
	var tags []string
	idx := 0
	for {
		start := strings.Index(xmlText[idx:], "<patch")
		if start == -1 {
			break
		}
		start += idx
		end := strings.IndexByte(xmlText[start:], '>')
		if end == -1 {
			break
		}
		tags = append(tags, xmlText[start:start+end+1])
		idx = start + end + 1
	}
	return tags
}

// patchSectorRange parses the "start_sector" and "SizeInBytes" attributes
// of a single <patch .../> element, used by callers validating a patch
// targets an in-bounds region before applying it.
func patchSectorRange(tag string) (startSector int64, sizeBytes int64, ok bool) {
	startStr, hasStart := scanAttr(tag, "start_sector")
	sizeStr, hasSize := scanAttr(tag, "SizeInBytes")
	if !hasStart || !hasSize {
		return 0, 0, false
	}
	start, err1 := strconv.ParseInt(startStr, 10, 64)
	size, err2 := strconv.ParseInt(sizeStr, 10, 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return start, size, true
}
