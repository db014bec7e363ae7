package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/edlflash/edlctl/internal/logger"
	"github.com/edlflash/edlctl/internal/serialport"
	"github.com/edlflash/edlctl/pkg/cloudloader"
	"github.com/edlflash/edlctl/pkg/config"
	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
	"github.com/edlflash/edlctl/pkg/session"
	"github.com/edlflash/edlctl/pkg/transport"
	"github.com/edlflash/edlctl/pkg/watchdog"
)

// baudRate is the fixed Sahara/Firehose line rate. The protocol itself
// negotiates nothing at this layer; every Qualcomm EDL target in practice
// speaks 115200 regardless of the underlying USB-CDC link speed.
const baudRate = 115200

// loadOptions loads the effective configuration, applying the root
// command's --port/--keep-open overrides on top of the config file.
func loadOptions() (*config.Options, error) {
	o, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if portFlag != "" {
		o.Port = portFlag
	}
	if keepOpenFlag {
		o.KeepPortOpen = true
	}
	if err := config.Validate(o); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return o, nil
}

func initLogging(o *config.Options) {
	logger.Init(logger.Config{
		Level:  o.Logging.Level,
		Format: o.Logging.Format,
		Output: o.Logging.Output,
	})
}

// connectedSession carries a session that has completed the Sahara
// handshake, uploaded the programmer, and negotiated Firehose storage
// configuration (i.e. it is in session.StateReady).
type connectedSession struct {
	Session  *session.Session
	Identity device.ChipIdentity
	Storage  device.StorageConfig
}

// openReadySession runs the full connect sequence (spec §4.1-§4.3):
// open the transport, perform the Sahara handshake, upload the
// programmer, reopen into Firehose, and negotiate storage.
func openReadySession(ctx context.Context, o *config.Options) (*connectedSession, error) {
	var wd *watchdog.Watchdog
	holder := &sessionHolder{}
	if o.IdlePeriod > 0 {
		// The watchdog needs its disconnector before the session exists;
		// sessionHolder breaks that cycle by deferring to whatever
		// session gets assigned to it below.
		wd = watchdog.New(o.IdlePeriod, holder)
	}

	tr := transport.New(serialport.Opener{})
	keepOpen := session.ReleaseBetweenCommands
	if o.KeepPortOpen {
		keepOpen = session.KeepOpen
	}

	sess := session.New(tr, o.ReadTimeout(), keepOpen, wd)
	holder.target = sess
	sess.RegisterExitHook()

	identity, err := sess.ConnectSahara(ctx, o.Port, baudRate)
	if err != nil {
		return nil, fmt.Errorf("sahara handshake failed: %w", err)
	}
	logger.Info("connected to device", logger.Port(o.Port), "msm_id", identity.MsmID, "serial", identity.Serial)

	image, err := fetchProgrammer(ctx, o, identity)
	if err != nil {
		return nil, err
	}

	if err := sess.UploadProgrammer(ctx, image, nil); err != nil {
		return nil, fmt.Errorf("programmer upload failed: %w", err)
	}

	storageType := device.StorageUFS
	if o.StorageType == string(device.StorageEMMC) {
		storageType = device.StorageEMMC
	}

	storage, err := sess.ConfigureFirehose(ctx, storageType, uint32(o.MaxPayloadSize.Uint64()))
	if err != nil {
		return nil, fmt.Errorf("firehose configure failed: %w", err)
	}

	return &connectedSession{Session: sess, Identity: identity, Storage: storage}, nil
}

// fetchProgrammer resolves the second-stage programmer image from either
// a fixed path or a cloudloader directory keyed by msm_id.
func fetchProgrammer(ctx context.Context, o *config.Options, identity device.ChipIdentity) ([]byte, error) {
	if o.ProgrammerPath == "" && o.CloudloaderDir == "" {
		return nil, edlerr.New(edlerr.CategorySemantic, "fetchProgrammer", "neither programmer_path nor cloudloader_dir is configured")
	}

	var src cloudloader.LoaderSource
	if o.CloudloaderDir != "" {
		src = cloudloader.NewDirectorySource(o.CloudloaderDir, nil)
	} else {
		src = cloudloader.NewLocalSource(o.ProgrammerPath)
	}

	rc, err := src.Fetch(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("loading programmer image: %w", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// sessionHolder implements watchdog.Disconnector on behalf of a session
// that doesn't exist yet when the watchdog is constructed.
// openReadySession points it at the session once session.New has built
// it; until then ForceDisconnect is a no-op.
type sessionHolder struct {
	target *session.Session
}

func (h *sessionHolder) ForceDisconnect(reason string) {
	if h.target != nil {
		h.target.ForceDisconnect(reason)
	}
}
