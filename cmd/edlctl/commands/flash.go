package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/edlflash/edlctl/internal/logger"
	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
	"github.com/edlflash/edlctl/pkg/firehose/auth"
)

var (
	flashTarget      string
	flashSource      string
	flashStartSector int64
	flashSparse      bool
	flashStealth     bool
)

var successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

var flashCmd = &cobra.Command{
	Use:   "flash",
	Short: "Write a single image to a partition",
	Long: `Connects to a device in EDL mode and streams an image onto one
partition via flash_from_source (spec §4.4). --target is "lun:name", e.g.
"0:boot_a". --start-sector accepts a negative value to address N sectors
before end-of-disk (the GPT backup region), transmitted as the literal
NUM_DISK_SECTORS-N token.`,
	RunE: runFlash,
}

func init() {
	flashCmd.Flags().StringVar(&flashTarget, "target", "", "partition to flash, as lun:name (required)")
	flashCmd.Flags().StringVar(&flashSource, "source", "", "path to the image to write (required)")
	flashCmd.Flags().Int64Var(&flashStartSector, "start-sector", 0, "absolute start sector, or negative for NUM_DISK_SECTORS-N")
	flashCmd.Flags().BoolVar(&flashSparse, "sparse", false, "source is Android-sparse formatted")
	flashCmd.Flags().BoolVar(&flashStealth, "stealth", false, "wrap payload for stealth-mode transfer (requires prior authentication)")
	_ = flashCmd.MarkFlagRequired("target")
	_ = flashCmd.MarkFlagRequired("source")
}

func runFlash(cmd *cobra.Command, args []string) error {
	o, err := loadOptions()
	if err != nil {
		return err
	}
	initLogging(o)

	target, err := parsePartitionRef(flashTarget)
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

	authenticated := false
	if o.AuthMode != "" && o.AuthMode != "none" {
		authenticator, err := buildAuthenticator(o)
		if err != nil {
			return err
		}
		result, _, err := cs.Session.Authenticate(ctx, authenticator)
		if err != nil {
			return err
		}
		logger.Info("authentication complete", "result", result)
		authenticated = result == auth.Authenticated
	}

	if flashStealth && !authenticated {
		return edlerr.New(edlerr.CategorySemantic, "runFlash", "--stealth requires a successful authentication (set auth_mode)")
	}

	fc, ok := cs.Session.Firehose()
	if !ok {
		return fmt.Errorf("session is not in firehose mode")
	}

	buf, err := os.ReadFile(flashSource)
	if err != nil {
		return fmt.Errorf("reading source image: %w", err)
	}
	src := device.Source{Buffer: buf, Sparse: flashSparse}

	progress := func(transferred, total uint64) {
		cmd.Printf("\r%s  %d/%d bytes", successStyle.Render("flashing"), transferred, total)
	}

	if err := fc.FlashFromSource(ctx, target, flashStartSector, src, progress, flashStealth); err != nil {
		cmd.Println()
		return err
	}
	cmd.Println()
	cmd.Println(successStyle.Render("flash complete"))
	return nil
}

// parsePartitionRef parses "lun:name" into a device.PartitionRef.
func parsePartitionRef(s string) (device.PartitionRef, error) {
	lun, name, ok := strings.Cut(s, ":")
	if !ok || name == "" {
		return device.PartitionRef{}, edlerr.New(edlerr.CategorySemantic, "parsePartitionRef", "target must be in the form lun:name")
	}
	var lunNum int
	if _, err := fmt.Sscanf(lun, "%d", &lunNum); err != nil {
		return device.PartitionRef{}, edlerr.New(edlerr.CategorySemantic, "parsePartitionRef", "lun must be numeric")
	}
	return device.PartitionRef{LUN: uint8(lunNum), Name: name}, nil
}
