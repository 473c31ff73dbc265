package ports

import "time"

type Policy struct {
	MaxQueueLen int           `mapstructure:"max_queue_len" yaml:"max_queue_len"`
	IdleSleep   time.Duration `mapstructure:"idle_sleep" yaml:"idle_sleep"`
	Workers     int           `mapstructure:"workers" yaml:"workers"`

	OnQueueFull string `mapstructure:"on_queue_full" yaml:"on_queue_full"` // "drop", "block"
}
