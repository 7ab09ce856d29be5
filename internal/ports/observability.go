package ports

import "github.com/ghalamif/SlopeGuard/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordDLQ(id WALEntryID, f *domain.Frame, err error)
	RecordAssessment(s *domain.ScoredFrame)
	RecordAlert(a *domain.Alert)
}

type Field struct {
	Key   string
	Value any
}
