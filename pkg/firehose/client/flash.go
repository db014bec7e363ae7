package client

import (
	"context"

	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/sparse"
)

// chunkSectors returns how many sectors fit in one max_payload_size
// command, given the negotiated sector size.
func (c *Client) chunkSectors() uint64 {
	if c.cfg.SectorSize == 0 {
		return 0
	}
	n := uint64(c.cfg.MaxPayloadSize) / uint64(c.cfg.SectorSize)
	if n == 0 {
		return 1
	}
	return n
}

// FlashFromSource orchestrates chunked writes of source onto the target
// partition, streaming Android-sparse sources on the fly without
// materializing the expanded image (spec §4.4 flash_from_source). Chunks
// are written in source order; a FlashTask list's own ordering is the
// caller's responsibility.
func (c *Client) FlashFromSource(ctx context.Context, target device.PartitionRef, startSector int64, src device.Source, progress ProgressFunc, stealth bool) error {
	if src.Sparse {
		return c.flashSparse(ctx, target, startSector, src, progress, stealth)
	}
	return c.flashRaw(ctx, target, startSector, src.Buffer, progress, stealth)
}

func (c *Client) flashRaw(ctx context.Context, target device.PartitionRef, startSector int64, data []byte, progress ProgressFunc, stealth bool) error {
	sectorSize := uint64(c.cfg.SectorSize)
	chunk := c.chunkSectors() * sectorSize
	total := uint64(len(data))
	var written uint64
	sector := startSector

	for written < total {
		end := written + chunk
		if end > total {
			end = total
		}
		slice := data[written:end]
		if err := c.WriteSectors(ctx, int(target.LUN), sector, slice, stealth); err != nil {
			return err
		}
		written = end
		if !isEndRelative(startSector) {
			sector += int64(uint64(len(slice)) / sectorSize)
		}
		if progress != nil {
			progress(written, total)
		}
	}
	return nil
}

// flashSparse expands an Android sparse image on the fly, writing RAW
// chunks and skipping DONT_CARE regions, so the full expanded image never
// needs to exist in memory (spec §4.4).
func (c *Client) flashSparse(ctx context.Context, target device.PartitionRef, startSector int64, src device.Source, progress ProgressFunc, stealth bool) error {
	sectorSize := uint64(c.cfg.SectorSize)
	img, err := sparse.Parse(src.Buffer)
	if err != nil {
		return err
	}

	total := img.ExpandedSize()
	var written uint64
	sector := startSector

	for _, chunk := range img.Chunks {
		sectors := chunk.ExpandedSize / sectorSize
		switch chunk.Kind {
		case sparse.ChunkRaw:
			if err := c.WriteSectors(ctx, int(target.LUN), sector, chunk.Data, stealth); err != nil {
				return err
			}
		case sparse.ChunkDontCare:
			// Skip: the destination already contains don't-care bytes or
			// will be left untouched, matching the sparse format's intent.
		case sparse.ChunkFill, sparse.ChunkCRC32:
			filled := chunk.Expand()
			if err := c.WriteSectors(ctx, int(target.LUN), sector, filled, stealth); err != nil {
				return err
			}
		}
		written += chunk.ExpandedSize
		if !isEndRelative(startSector) {
			sector += int64(sectors)
		}
		if progress != nil {
			progress(written, total)
		}
	}
	return nil
}

func isEndRelative(startSector int64) bool { return startSector < 0 }
