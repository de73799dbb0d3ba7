// Package plugins registers the decision log backends selectable from
// configuration.
package plugins

import (
	"github.com/ridgeline-ems/ift-dispatch/config"
	"github.com/ridgeline-ems/ift-dispatch/core/dispatch/logging"
	"github.com/ridgeline-ems/ift-dispatch/core/factory"
)

// LogStores holds the log store factories keyed by backend name.
var LogStores = factory.NewRegistry[logging.LogStore]()

func init() {
	_ = LogStores.Register("jsonl", func(conf map[string]any) (logging.LogStore, error) {
		var lc config.LoggingConfig
		if err := factory.Decode(conf, &lc); err != nil {
			return nil, err
		}
		if lc.MaxSizeMB > 0 {
			return logging.NewRotatingJSONLStore(lc.Path, lc.MaxSizeMB, lc.MaxBackups, lc.MaxAgeDays)
		}
		return logging.NewJSONLStore(lc.Path)
	})
	_ = LogStores.Register("sqlite", func(conf map[string]any) (logging.LogStore, error) {
		var lc config.LoggingConfig
		if err := factory.Decode(conf, &lc); err != nil {
			return nil, err
		}
		return logging.NewSQLiteStore(lc.Path)
	})
}

// NewLogStore builds the store selected by cfg.Backend.
func NewLogStore(cfg config.LoggingConfig) (logging.LogStore, error) {
	return LogStores.Create(factory.ModuleConfig{
		Type: cfg.Backend,
		Conf: map[string]any{
			"path":         cfg.Path,
			"max_size_mb":  cfg.MaxSizeMB,
			"max_backups":  cfg.MaxBackups,
			"max_age_days": cfg.MaxAgeDays,
		},
	})
}
