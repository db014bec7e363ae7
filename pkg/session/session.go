// Package session wires the transport, Sahara, and Firehose layers into
// the end-to-end connection lifecycle: Disconnected → Connecting →
// SaharaMode → FirehoseMode → Ready → {Error, Disconnected} (spec §3).
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dc0d/onexit"

	"github.com/edlflash/edlctl/internal/logger"
	"github.com/edlflash/edlctl/pkg/device"
	"github.com/edlflash/edlctl/pkg/edlerr"
	"github.com/edlflash/edlctl/pkg/firehose/auth"
	fhclient "github.com/edlflash/edlctl/pkg/firehose/client"
	"github.com/edlflash/edlctl/pkg/sahara"
	"github.com/edlflash/edlctl/pkg/transport"
	"github.com/edlflash/edlctl/pkg/watchdog"
)

// State is one of the session lifecycle states (spec §3 "Session"). It is
// an alias of device.SessionState so device, sahara, and firehose can all
// refer to the same vocabulary (and device.SessionState.CanTransition) as
// this package's own orchestration.
type State = device.SessionState

const (
	StateDisconnected = device.StateDisconnected
	StateConnecting   = device.StateConnecting
	StateSaharaMode   = device.StateSaharaMode
	StateFirehoseMode = device.StateFirehoseMode
	StateReady        = device.StateReady
	StateError        = device.StateError
)

// reopenSettle is the pause between closing the port after Sahara upload
// and reopening it in Firehose mode, during which the device silently
// switches modes (spec §4.2 step 4).
const reopenSettle = 1 * time.Second

// Transport is the capability Session needs from the transport layer: it
// is satisfied by *pkg/transport.Transport directly.
type Transport interface {
	Open(cfg transport.Config) error
	Reopen(settle time.Duration, purgeBuffers bool) error
	Close() error
	IsConnected() bool
	ReadExact(ctx context.Context, n int, timeout time.Duration) ([]byte, error)
	WriteAll(ctx context.Context, data []byte) error
}

// KeepOpenMode controls whether the session releases the port between
// commands (spec §5 "Port lifecycle").
type KeepOpenMode int

const (
	ReleaseBetweenCommands KeepOpenMode = iota
	KeepOpen
)

// Session is the top-level connection: it owns the transport and
// whichever of {Sahara, Firehose} is currently live, plus the latched
// chip identity and refreshed partition/storage catalogs (spec §3).
type Session struct {
	transport   Transport
	readTimeout time.Duration
	keepOpen    KeepOpenMode
	watchdog    *watchdog.Watchdog

	mu       sync.Mutex
	state    State
	identity *device.ChipIdentity
	storage  *device.StorageConfig

	sahara   *sahara.Client
	firehose *fhclient.Client

	onStateChange func(State)
}

// New constructs a Session bound to a transport. The watchdog, if
// non-nil, is started/stopped alongside the session's own lifecycle.
func New(t Transport, readTimeout time.Duration, keepOpen KeepOpenMode, wd *watchdog.Watchdog) *Session {
	return &Session{
		transport:   t,
		readTimeout: readTimeout,
		keepOpen:    keepOpen,
		watchdog:    wd,
		state:       StateDisconnected,
	}
}

// OnStateChange registers a callback invoked whenever the session's state
// transitions, for CLI/UI surfaces to reflect.
func (s *Session) OnStateChange(f func(State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = f
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	if !prev.CanTransition(st) {
		logger.Warn("session: unexpected state transition", "from", prev, "to", st)
	}
	s.state = st
	cb := s.onStateChange
	s.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the chip identity latched during Sahara handshake, if
// any. It remains accessible after the session closes until a new
// connection overwrites it (spec §3 invariants).
func (s *Session) Identity() (device.ChipIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return device.ChipIdentity{}, false
	}
	return *s.identity, true
}

// StorageConfig returns the negotiated storage configuration from the
// most recent Firehose configure, if any.
func (s *Session) StorageConfig() (device.StorageConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.storage == nil {
		return device.StorageConfig{}, false
	}
	return *s.storage, true
}

// ConnectSahara opens the transport for Sahara (no buffer purge, since
// the device's unsolicited Hello must be read) and performs the identity
// handshake (spec §4.1, §4.2).
func (s *Session) ConnectSahara(ctx context.Context, port string, baud int) (device.ChipIdentity, error) {
	s.setState(StateConnecting)

	if err := s.transport.Open(transport.Config{
		PortName:     port,
		Baud:         baud,
		PurgeBuffers: false,
		ReadTimeout:  s.readTimeout,
	}); err != nil {
		s.setState(StateError)
		return device.ChipIdentity{}, err
	}

	s.mu.Lock()
	s.sahara = sahara.NewClient(s.transport, s.readTimeout)
	s.mu.Unlock()
	s.setState(StateSaharaMode)

	if s.watchdog != nil {
		s.watchdog.Start(ctx)
	}

	identity, err := s.sahara.HandshakeGetIdentity(ctx)
	if err != nil {
		s.recordWatchdogOutcome(err)
		s.setState(StateError)
		return device.ChipIdentity{}, err
	}
	s.recordWatchdogOutcome(nil)

	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()
	return identity, nil
}

// UploadProgrammer uploads the second-stage image and reopens the
// transport into Firehose mode (spec §4.2 step 4).
func (s *Session) UploadProgrammer(ctx context.Context, image []byte, progress sahara.ProgressFunc) error {
	s.mu.Lock()
	sc := s.sahara
	s.mu.Unlock()
	if sc == nil {
		return edlerr.New(edlerr.CategorySemantic, "session.UploadProgrammer", "not connected to Sahara")
	}

	if err := sc.UploadProgrammer(ctx, image, progress); err != nil {
		s.recordWatchdogOutcome(err)
		s.setState(StateError)
		return err
	}
	s.recordWatchdogOutcome(nil)

	if err := s.transport.Reopen(reopenSettle, true); err != nil {
		s.setState(StateError)
		return edlerr.Wrap(edlerr.CategoryTransport, "session.UploadProgrammer", "reopen into firehose mode failed", err)
	}

	s.mu.Lock()
	s.firehose = fhclient.New(s.transport, s.readTimeout)
	s.mu.Unlock()
	s.setState(StateFirehoseMode)
	return nil
}

// ConfigureFirehose negotiates storage parameters and marks the session
// Ready once a StorageConfig is latched (spec §3 "Lifecycle").
// proposedMaxPayload is offered to the device as
// MaxPayloadSizeToTargetInBytes; zero uses the client's built-in default.
func (s *Session) ConfigureFirehose(ctx context.Context, storageType device.StorageType, proposedMaxPayload uint32) (device.StorageConfig, error) {
	s.mu.Lock()
	fc := s.firehose
	s.mu.Unlock()
	if fc == nil {
		return device.StorageConfig{}, edlerr.New(edlerr.CategorySemantic, "session.ConfigureFirehose", "not connected to Firehose")
	}

	cfg, err := fc.Configure(ctx, storageType, proposedMaxPayload)
	s.recordWatchdogOutcome(err)
	if err != nil {
		s.setState(StateError)
		return device.StorageConfig{}, err
	}

	s.mu.Lock()
	s.storage = &cfg
	s.mu.Unlock()
	s.setState(StateReady)
	return cfg, nil
}

// Authenticate runs the given vendor authenticator against the live
// Firehose connection (spec §4.4 "Authentication subroutines").
func (s *Session) Authenticate(ctx context.Context, authenticator *auth.Authenticator) (auth.Result, string, error) {
	s.mu.Lock()
	fc := s.firehose
	s.mu.Unlock()
	if fc == nil {
		return auth.Rejected, "", edlerr.New(edlerr.CategorySemantic, "session.Authenticate", "not connected to Firehose")
	}
	return authenticator.Authenticate(ctx, fc)
}

// Firehose exposes the underlying Firehose client for higher-level
// flashing/introspection operations once the session is Ready.
func (s *Session) Firehose() (*fhclient.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firehose, s.firehose != nil
}

// ReleaseForOtherTools closes the transport while preserving latched
// session state, for KeepOpenMode == ReleaseBetweenCommands (spec §5
// "Port lifecycle"). Session does not reopen the port by itself afterwards.
func (s *Session) ReleaseForOtherTools() error {
	if s.keepOpen == KeepOpen {
		return nil
	}
	return s.transport.Close()
}

// Disconnect tears the session down: it stops the watchdog, closes the
// transport and clears the live protocol clients. ForceDisconnect, the
// watchdog.Disconnector hook, does the same except stopping the watchdog.
func (s *Session) Disconnect() {
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	_ = s.transport.Close()
	s.mu.Lock()
	s.sahara = nil
	s.firehose = nil
	s.mu.Unlock()
	s.setState(StateDisconnected)
}

// ForceDisconnect implements watchdog.Disconnector.
func (s *Session) ForceDisconnect(reason string) {
	logger.Warn("session: forced disconnect", "reason", reason)
	_ = s.transport.Close()
	s.mu.Lock()
	s.sahara = nil
	s.firehose = nil
	s.mu.Unlock()
	s.setState(StateDisconnected)
}

// RegisterExitHook registers a process-exit hook that closes the session's
// transport if it is still connected, so a programmer upload or a batch flash in progress always
// releases the serial port even if the process is interrupted.
func (s *Session) RegisterExitHook() {
	onexit.Register(func() {
		if s.transport.IsConnected() {
			logger.Info("session: releasing port on exit")
			_ = s.transport.Close()
		}
	})
}

func (s *Session) recordWatchdogOutcome(err error) {
	if s.watchdog == nil {
		return
	}
	if err != nil && errors.Is(err, edlerr.ErrTimeout) {
		s.watchdog.RecordTimeout()
		return
	}
	s.watchdog.RecordSuccess()
}
