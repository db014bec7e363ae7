package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/edlflash/edlctl/pkg/config"
	fhclient "github.com/edlflash/edlctl/pkg/firehose/client"
)

const shellPrompt = "\033[32medlctl>\033[0m "

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive partition/sector browser",
	Long: `Connects to a device in EDL mode and opens an interactive REPL for
browsing the partition catalog and reading raw sectors. Commands:

  ls              list partitions across all LUNs
  read LUN START COUNT   read COUNT sectors from LUN starting at START, hex-dump
  info            print the latched chip identity and storage config
  exit            disconnect and quit`,
	RunE: runShell,
}

func runShell(cmd *cobra.Command, args []string) error {
	o, err := loadOptions()
	if err != nil {
		return err
	}
	initLogging(o)

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

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	defer rl.Close()
	rl.CaptureExitSignal()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		if err := runShellCommand(ctx, cmd, cs, fc, o, strings.TrimSpace(line)); err != nil {
			if err == errShellExit {
				return nil
			}
			cmd.PrintErrln(err)
		}
	}
}

var errShellExit = fmt.Errorf("exit")

func runShellCommand(ctx context.Context, cmd *cobra.Command, cs *connectedSession, fc *fhclient.Client, o *config.Options, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch fields[0] {
	case "exit", "quit":
		return errShellExit

	case "info":
		cmd.Printf("msm_id=0x%08x serial=0x%08x storage=%s slot=%s\n",
			cs.Identity.MsmID, cs.Identity.Serial, cs.Storage.StorageType, cs.Storage.CurrentSlot)
		return nil

	case "ls":
		sectorSize := cs.Storage.SectorSize
		if sectorSize == 0 {
			sectorSize = defaultHarvestSectorSize
		}
		parts, err := listPartitions(ctx, fc, o.MaxLuns, sectorSize)
		if err != nil {
			return err
		}
		for _, p := range parts {
			cmd.Printf("lun=%d %-24s start=%d sectors=%d\n", p.LUN, p.Name, p.StartSector, p.NumSectors)
		}
		return nil

	case "read":
		if len(fields) != 4 {
			return fmt.Errorf("usage: read LUN START COUNT")
		}
		lun, err := strconv.Atoi(fields[1])
		if err != nil {
			return fmt.Errorf("invalid lun: %w", err)
		}
		start, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid start: %w", err)
		}
		count, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid count: %w", err)
		}
		data, err := fc.ReadSectors(ctx, lun, start, count, false)
		if err != nil {
			return err
		}
		cmd.Println(hexDump(data))
		return nil

	default:
		return fmt.Errorf("unknown command %q (try: ls, read, info, exit)", fields[0])
	}
}

func hexDump(data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]
		fmt.Fprintf(&b, "%08x  ", off)
		for i := 0; i < 16; i++ {
			if i < len(chunk) {
				fmt.Fprintf(&b, "%02x ", chunk[i])
			} else {
				b.WriteString("   ")
			}
		}
		b.WriteString(" ")
		for _, c := range chunk {
			if c >= 0x20 && c < 0x7f {
				b.WriteByte(c)
			} else {
				b.WriteByte('.')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
