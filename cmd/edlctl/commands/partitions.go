package commands

import (
	"context"

	"github.com/edlflash/edlctl/pkg/buildprop"
	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
	fhclient "github.com/edlflash/edlctl/pkg/firehose/client"
	"github.com/edlflash/edlctl/pkg/gpt"
	"github.com/edlflash/edlctl/pkg/lp"
)

// defaultHarvestSectorSize is used when no storage config has been
// negotiated yet (Firehose configure always sets one in practice, but
// this keeps the partition helpers usable standalone).
const defaultHarvestSectorSize = 4096

// sectorPartitionReader adapts one GPT partition's (LUN, start sector)
// addressing to buildprop.PartitionReader's byte-offset contract, reading
// through the live Firehose connection.
type sectorPartitionReader struct {
	ctx        context.Context
	fc         *fhclient.Client
	lun        int
	startLBA   uint64
	sectorSize uint32
}

func (r *sectorPartitionReader) ReadAt(offset int64, size int) ([]byte, error) {
	sectorSize := uint64(r.sectorSize)
	firstSector := uint64(offset) / sectorSize
	lastByte := uint64(offset) + uint64(size)
	lastSector := (lastByte + sectorSize - 1) / sectorSize

	data, err := r.fc.ReadSectors(r.ctx, r.lun, r.startLBA+firstSector, lastSector-firstSector, false)
	if err != nil {
		return nil, err
	}

	relOffset := uint64(offset) - firstSector*sectorSize
	if relOffset+uint64(size) > uint64(len(data)) {
		return nil, edlerr.TruncatedStructure("sectorPartitionReader.ReadAt")
	}
	return data[relOffset : relOffset+uint64(size)], nil
}

// listPartitions enumerates every LUN's GPT up to maxLuns (spec §4.5).
func listPartitions(ctx context.Context, fc *fhclient.Client, maxLuns int, sectorSize uint32) ([]device.Partition, error) {
	return gpt.ReadAll(ctx, fc, maxLuns, sectorSize)
}

// buildPropCandidates resolves build.prop probe candidates against the
// live GPT catalog (spec §4.8 steps 1-2): if a "super" partition is
// present, its logical-partition catalog is parsed and LpPriority names
// are resolved within it; any PhysicalPriority names super doesn't cover
// (legacy A-only partitions) are then resolved directly against GPT. On
// devices with no super partition, every PhysicalPriority name is
// resolved directly against GPT. The currently-active slot's suffix is
// preferred throughout when the catalog is slotted.
func buildPropCandidates(ctx context.Context, fc *fhclient.Client, maxLuns int, sectorSize uint32, slot device.Slot) []buildprop.Candidate {
	parts, err := listPartitions(ctx, fc, maxLuns, sectorSize)
	if err != nil {
		return nil
	}

	byName := make(map[string]device.Partition, len(parts))
	for _, p := range parts {
		byName[p.Name] = p
	}

	var candidates []buildprop.Candidate
	resolved := make(map[string]bool, len(buildprop.LpPriority))

	if super, ok := resolveSlottedPartition(byName, "super", slot); ok {
		superReader := &sectorPartitionReader{
			ctx:        ctx,
			fc:         fc,
			lun:        int(super.LUN),
			startLBA:   super.StartSector,
			sectorSize: super.SectorSize,
		}
		if catalog, err := lp.ReadCatalog(superReader, super.StartSector, super.SectorSize); err == nil {
			byLpName := make(map[string]device.LpPartition, len(catalog))
			for _, p := range catalog {
				byLpName[p.Name] = p
			}
			for _, name := range buildprop.LpPriority {
				p, ok := resolveSlottedLpPartition(byLpName, name, slot)
				if !ok {
					continue
				}
				candidates = append(candidates, buildprop.Candidate{
					Name: p.Name,
					Reader: &sectorPartitionReader{
						ctx:        ctx,
						fc:         fc,
						lun:        int(super.LUN),
						startLBA:   p.AbsoluteSector,
						sectorSize: super.SectorSize,
					},
					Size: int64(p.SizeBytes),
				})
				resolved[name] = true
			}
		}
	}

	for _, name := range buildprop.PhysicalPriority {
		if resolved[name] {
			continue
		}
		p, ok := resolveSlottedPartition(byName, name, slot)
		if !ok {
			continue
		}
		candidates = append(candidates, buildprop.Candidate{
			Name: p.Name,
			Reader: &sectorPartitionReader{
				ctx:        ctx,
				fc:         fc,
				lun:        int(p.LUN),
				startLBA:   p.StartSector,
				sectorSize: p.SectorSize,
			},
			Size: int64(p.NumSectors) * int64(p.SectorSize),
		})
	}
	return candidates
}

// resolveSlottedPartition looks up name+"_"+slot first (A/B devices),
// falling back to the bare name (non-slotted devices).
func resolveSlottedPartition(byName map[string]device.Partition, name string, slot device.Slot) (device.Partition, bool) {
	if slot != device.SlotNone {
		if p, ok := byName[name+"_"+string(slot)]; ok {
			return p, true
		}
	}
	p, ok := byName[name]
	return p, ok
}

// resolveSlottedLpPartition is resolveSlottedPartition's counterpart for
// names resolved within a super partition's logical-partition catalog.
func resolveSlottedLpPartition(byName map[string]device.LpPartition, name string, slot device.Slot) (device.LpPartition, bool) {
	if slot != device.SlotNone {
		if p, ok := byName[name+"_"+string(slot)]; ok {
			return p, true
		}
	}
	p, ok := byName[name]
	return p, ok
}
