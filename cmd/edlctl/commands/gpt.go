package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edlflash/edlctl/internal/cli/output"
	"github.com/edlflash/edlctl/pkg/device"
)

var gptOutput string

var gptCmd = &cobra.Command{
	Use:   "gpt",
	Short: "Connect and dump the GPT partition catalog across all LUNs",
	Long: `Connects to a device in EDL mode and reads the GUID Partition Table
on every logical unit up to the configured max_luns, printing the
partition catalog (spec §4.5).`,
	RunE: runGPT,
}

func init() {
	gptCmd.Flags().StringVarP(&gptOutput, "output", "o", "table", "Output format (table|json|yaml)")
}

func runGPT(cmd *cobra.Command, args []string) error {
	o, err := loadOptions()
	if err != nil {
		return err
	}
	initLogging(o)

	format, err := output.ParseFormat(gptOutput)
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

	fc, ok := cs.Session.Firehose()
	if !ok {
		return fmt.Errorf("session is not in firehose mode")
	}

	sectorSize := cs.Storage.SectorSize
	if sectorSize == 0 {
		sectorSize = defaultHarvestSectorSize
	}

	parts, err := listPartitions(ctx, fc, o.MaxLuns, sectorSize)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, parts)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, parts)
	default:
		return output.PrintTable(os.Stdout, partitionTable(parts))
	}
}

type partitionTable []device.Partition

func (t partitionTable) Headers() []string {
	return []string{"LUN", "Name", "Start", "Sectors", "Size", "GUID"}
}

func (t partitionTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, p := range t {
		guid := ""
		if p.HasGUID {
			guid = p.GUID.String()
		}
		sizeBytes := p.NumSectors * uint64(p.SectorSize)
		rows = append(rows, []string{
			strconv.Itoa(int(p.LUN)),
			p.Name,
			strconv.FormatUint(p.StartSector, 10),
			strconv.FormatUint(p.NumSectors, 10),
			humanSize(sizeBytes),
			guid,
		})
	}
	return rows
}

func humanSize(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%dB", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
