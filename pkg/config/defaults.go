package config

import "strings"

// ApplyDefaults fills in unspecified fields with spec §6's documented
// defaults, following the teacher's "zero values replaced, explicit
// values preserved" strategy.
func ApplyDefaults(o *Options) {
	applyLoggingDefaults(&o.Logging)

	if o.StorageType == "" {
		o.StorageType = "ufs"
	}
	if o.AuthMode == "" {
		o.AuthMode = "none"
	}
	if o.MaxLuns == 0 {
		o.MaxLuns = 6
	}
	if o.ReadTimeoutMs == 0 {
		o.ReadTimeoutMs = 10000
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// GetDefaultOptions returns an Options with every default applied and no
// port configured, for documentation generation and `edlctl config init`.
func GetDefaultOptions() *Options {
	o := &Options{}
	ApplyDefaults(o)
	return o
}
