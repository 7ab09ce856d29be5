package ports

import "time"

type Policy struct {
	MaxWALSizeBytes int64         `yaml:"max_wal_size_bytes" validate:"gte=0"`
	MaxQueueLen     int           `yaml:"max_queue_len" validate:"gt=0"`
	MaxBatchSize    int           `yaml:"max_batch_size" validate:"gt=0"`
	IdleSleep       time.Duration `yaml:"idle_sleep" validate:"gt=0"`

	OnWALFull   string `yaml:"on_wal_full" validate:"oneof=block drop"`           // "block", "drop"
	OnQueueFull string `yaml:"on_queue_full" validate:"oneof=block drop reject"` // "reject", "block", "drop"
}
