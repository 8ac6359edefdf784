// internal/journal/sink.go
package journal

import (
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/metrics"
	"github.com/shrimpsizemoose/omtenta/internal/models"
	"github.com/shrimpsizemoose/omtenta/internal/resit"
	"github.com/shrimpsizemoose/omtenta/internal/store"
)

// StoreSink persists every event as one journal row. The database
// assigns seq, so insert order is replay order.
type StoreSink struct {
	store store.JournalStore
}

func NewStoreSink(s store.JournalStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Record(event models.Event) error {
	if err := s.store.AppendEvent(&event); err != nil {
		metrics.JournalWriteFailures.Inc()
		return err
	}
	return nil
}

// MetricsSink feeds the prometheus counters. It never fails.
type MetricsSink struct{}

func (MetricsSink) Record(event models.Event) error {
	metrics.ResitEventsTotal.WithLabelValues(event.EventType).Inc()

	switch event.EventType {
	case models.EventAttemptRecorded:
		metrics.AttemptsRecordedTotal.WithLabelValues("initial").Inc()
		metrics.FinalGradeHistogram.Observe(float64(event.FinalGrade))
	case models.EventResitExecuted:
		metrics.AttemptsRecordedTotal.WithLabelValues("resit").Inc()
		metrics.FinalGradeHistogram.Observe(float64(event.FinalGrade))
	}
	return nil
}

// LogSink mirrors every event to the debug log.
type LogSink struct{}

func (LogSink) Record(event models.Event) error {
	logger.Debug.Printf("journal: %s subject=%s resit=%d actor=%s", event.EventType, event.Subject, event.ResitID, event.Actor)
	return nil
}

// MultiSink fans one event out to several sinks. Every sink sees the
// event even when an earlier one fails; the first error is reported.
type MultiSink struct {
	sinks []resit.Sink
}

func NewMultiSink(sinks ...resit.Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Record(event models.Event) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Record(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
