package ports

import "github.com/ghalamif/accelsentry/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	Observe(name string, v float64)

	SetGauge(name string, v float64)

	RecordDrop(b *domain.Burst, err error)
}

type Field struct {
	Key   string
	Value any
}
