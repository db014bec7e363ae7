// Package config loads edlctl's single structured options object (spec §6)
// from environment variables and a config file, in that order of
// precedence (cmd/edlctl applies its --port and --keep-open flags on top),
// following the teacher's pkg/config viper/mapstructure
// loading pattern.
package config

import (
	"time"

	"github.com/edlflash/edlctl/internal/bytesize"
)

// Options is the top-level configuration object. Every field maps to one
// of spec §6's recognized configuration keys, plus the ambient Logging
// section carried regardless of the spec's feature Non-goals.
type Options struct {
	// Port is the OS-specific serial device identifier, e.g. "/dev/ttyUSB0"
	// or "COM3" (required).
	Port string `mapstructure:"port" validate:"required" yaml:"port"`

	// ProgrammerPath is the path to the second-stage Firehose programmer
	// image. Required for any command that uploads a programmer (flash,
	// info, gpt); not required for commands that only need Sahara's
	// identity-only handshake path.
	ProgrammerPath string `mapstructure:"programmer_path" yaml:"programmer_path,omitempty"`

	// StorageType selects the underlying flash technology Firehose
	// configure targets.
	StorageType string `mapstructure:"storage_type" validate:"omitempty,oneof=ufs emmc" yaml:"storage_type"`

	// AuthMode selects the vendor authentication strategy run after
	// Firehose configure.
	AuthMode string `mapstructure:"auth_mode" validate:"omitempty,oneof=none vip oneplus xiaomi" yaml:"auth_mode"`

	// DigestPath and SignaturePath are VIP authentication artifact paths,
	// required when AuthMode is "vip".
	DigestPath    string `mapstructure:"digest_path" validate:"required_if=AuthMode vip" yaml:"digest_path,omitempty"`
	SignaturePath string `mapstructure:"signature_path" validate:"required_if=AuthMode vip" yaml:"signature_path,omitempty"`

	// KeepPortOpen selects KeepOpenMode over ReleaseBetweenCommands for
	// the session's port lifecycle (spec §5 "Port lifecycle").
	KeepPortOpen bool `mapstructure:"keep_port_open" yaml:"keep_port_open"`

	// MaxLuns bounds the number of logical units probed when enumerating
	// partitions across LUNs.
	MaxLuns int `mapstructure:"max_luns" validate:"min=1,max=8" yaml:"max_luns"`

	// MaxPayloadSize is the payload size proposed to the device during
	// firehose configure (e.g. "1Mi", "512Ki"); zero uses the client's
	// built-in default. Accepts the same human-readable forms as any
	// other size in this config (spec §6 doesn't name a unit, so this
	// follows the teacher's own byte-size convention).
	MaxPayloadSize bytesize.ByteSize `mapstructure:"max_payload_size" yaml:"max_payload_size,omitempty"`

	// ReadTimeoutMs is the per-read transport timeout in milliseconds
	// (spec §5 "Timeouts": default 10 s).
	ReadTimeoutMs int `mapstructure:"read_timeout_ms" validate:"min=1" yaml:"read_timeout_ms"`

	// IdlePeriod configures the watchdog's idle-warning window (spec §5).
	// Zero disables idle warnings.
	IdlePeriod time.Duration `mapstructure:"idle_period" yaml:"idle_period,omitempty"`

	// CloudloaderDir, when non-empty, switches the programmer-image
	// source from a single fixed ProgrammerPath to a directory of
	// msm_id-keyed loaders (pkg/cloudloader.DirectorySource).
	CloudloaderDir string `mapstructure:"cloudloader_dir" yaml:"cloudloader_dir,omitempty"`

	// Logging controls log output behavior, carried as ambient stack
	// regardless of the spec's feature-level Non-goals.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// LoggingConfig controls internal/logger's behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format selects the log output format.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output is where logs are written: "stdout", "stderr", or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ReadTimeout returns ReadTimeoutMs as a time.Duration for direct use by
// pkg/transport and pkg/session.
func (o *Options) ReadTimeout() time.Duration {
	return time.Duration(o.ReadTimeoutMs) * time.Millisecond
}
