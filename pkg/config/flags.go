package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Flags holds the process-wide feature toggles. Components read them on every call
// so a change takes effect without a restart.
type Flags struct {
	deIdentify   atomic.Bool
	auditLogging atomic.Bool
}

// NewFlags creates flags seeded from the loaded configuration
func NewFlags(cfg *Config) *Flags {
	f := &Flags{}
	f.deIdentify.Store(cfg.Solution.DeIdentify)
	f.auditLogging.Store(cfg.Audit.Enabled)
	return f
}

// DeIdentifyEnabled reports whether PII fields are tokenized around ledger calls
func (f *Flags) DeIdentifyEnabled() bool {
	return f.deIdentify.Load()
}

// AuditLoggingEnabled reports whether PHI access events are emitted
func (f *Flags) AuditLoggingEnabled() bool {
	return f.auditLogging.Load()
}

// SetDeIdentify updates the de-identification toggle
func (f *Flags) SetDeIdentify(enabled bool) {
	f.deIdentify.Store(enabled)
}

// SetAuditLogging updates the audit logging toggle
func (f *Flags) SetAuditLogging(enabled bool) {
	f.auditLogging.Store(enabled)
}

// WatchFlags re-reads the toggles whenever the config file changes.
// onChange, if not nil, is called after the flags are updated.
func WatchFlags(f *Flags, onChange func(deIdentify, auditLogging bool)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		f.SetDeIdentify(viper.GetBool("solution.de_identify"))
		f.SetAuditLogging(viper.GetBool("audit.enabled"))
		if onChange != nil {
			onChange(f.DeIdentifyEnabled(), f.AuditLoggingEnabled())
		}
	})
	viper.WatchConfig()
}
