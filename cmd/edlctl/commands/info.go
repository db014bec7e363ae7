package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/edlflash/edlctl/internal/cli/output"
	"github.com/edlflash/edlctl/pkg/buildprop"
	"github.com/edlflash/edlctl/pkg/device"
)

var infoOutput string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Connect and print an aggregated device-info record",
	Long: `Connects to a device in EDL mode, harvests build.prop from the
system/vendor/product partitions, and prints the aggregated identity,
storage, and build-property record (spec §4.9).`,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().StringVarP(&infoOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runInfo(cmd *cobra.Command, args []string) error {
	o, err := loadOptions()
	if err != nil {
		return err
	}
	initLogging(o)

	format, err := output.ParseFormat(infoOutput)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cs, err := openReadySession(ctx, o)
	if err != nil {
		return err
	}
	defer cs.Session.Disconnect()

	build, err := harvestBuildProp(ctx, cs, o.MaxLuns)
	if err != nil {
		return err
	}

	info := device.Aggregate(cs.Identity, cs.Storage, build)

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, info)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, info)
	default:
		return printInfoTable(info)
	}
}

func printInfoTable(info device.DeviceInfo) error {
	pairs := [][2]string{
		{"Display Name", info.DisplayName},
		{"Chip", info.Identity.ChipName},
		{"Vendor", info.Identity.Vendor},
		{"MSM ID", hex32(info.Identity.MsmID)},
		{"Serial", hex32(info.Identity.Serial)},
		{"Storage Type", string(info.Storage.StorageType)},
		{"Current Slot", string(info.Storage.CurrentSlot)},
		{"Brand", info.Build.Brand},
		{"Model", info.Build.Model},
		{"Android Version", info.Build.AndroidVersion},
		{"Security Patch", info.Build.SecurityPatch},
		{"Fingerprint", info.Build.Fingerprint},
		{"Codename", info.Build.Codename},
		{"OTA Version", info.Build.OtaVersionFull},
	}
	return output.SimpleTable(os.Stdout, pairs)
}

func hex32(v uint32) string {
	const hexDigits = "0123456789abcdef"
	buf := [10]byte{'0', 'x'}
	for i := 0; i < 8; i++ {
		shift := uint(28 - i*4)
		buf[2+i] = hexDigits[(v>>shift)&0xF]
	}
	return string(buf[:])
}

// harvestBuildProp reads build.prop candidates from the partitions the
// harvester knows to check (spec §4.8), using the Firehose connection as
// the sectored reader the filesystem walkers need.
func harvestBuildProp(ctx context.Context, cs *connectedSession, maxLuns int) (device.BuildProp, error) {
	fc, ok := cs.Session.Firehose()
	if !ok {
		return device.BuildProp{}, nil
	}

	sectorSize := cs.Storage.SectorSize
	if sectorSize == 0 {
		sectorSize = defaultHarvestSectorSize
	}
	candidates := buildPropCandidates(ctx, fc, maxLuns, sectorSize, cs.Storage.CurrentSlot)
	return buildprop.Harvest(ctx, candidates)
}
