// internal/workers/purchase/provision-privileges/config.go
package provisionprivileges

import (
	"time"

	"licensure-workers/internal/common/config"
)

type Config struct {
	Timeout        time.Duration
	EventBusName   string
	EventSource    string
	EventBatchSize int
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:        config.GetDuration(wc.Timeout),
		EventBusName:   cfg.Events.BusName,
		EventSource:    cfg.Events.Source,
		EventBatchSize: cfg.Events.BatchSize,
	}
}
