// internal/workers/data-access/get-provider/config.go
package getprovider

import (
	"time"

	"licensure-workers/internal/common/config"
)

type Config struct {
	Timeout           time.Duration
	CacheTTL          time.Duration
	ReferenceTimezone string
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:           config.GetDuration(wc.Timeout),
		CacheTTL:          config.GetDuration(cfg.Database.Redis.CacheTTL),
		ReferenceTimezone: cfg.Selection.ReferenceTimezone,
	}
}
