package journal

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shrimpsizemoose/omtenta/internal/models"
)

type recordingSink struct {
	events []models.Event
	err    error
}

func (s *recordingSink) Record(event models.Event) error {
	s.events = append(s.events, event)
	return s.err
}

func TestMultiSink_FansOutToEverySink(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	multi := NewMultiSink(first, second)

	event := models.Event{EventType: models.EventResitRequested, Subject: "anna.larsson", ResitID: 1}
	assert.NoError(t, multi.Record(event))

	assert.Len(t, first.events, 1)
	assert.Len(t, second.events, 1)
	assert.Equal(t, event, first.events[0])
}

func TestMultiSink_KeepsGoingPastFailures(t *testing.T) {
	broken := &recordingSink{err: errors.New("disk on fire")}
	alsoBroken := &recordingSink{err: errors.New("smoke everywhere")}
	healthy := &recordingSink{}
	multi := NewMultiSink(broken, alsoBroken, healthy)

	err := multi.Record(models.Event{EventType: models.EventResitApproved})

	// the healthy sink still got the event, and the first failure wins
	assert.Len(t, healthy.events, 1)
	assert.EqualError(t, err, "disk on fire")
}

func TestMetricsSink_NeverFails(t *testing.T) {
	sink := MetricsSink{}

	events := []models.Event{
		{EventType: models.EventAttemptRecorded, FinalGrade: 56},
		{EventType: models.EventResitRequested},
		{EventType: models.EventResitApproved, Approvals: 1},
		{EventType: models.EventResitResolved},
		{EventType: models.EventResitExecuted, FinalGrade: 76},
		{EventType: models.EventQuorumChanged, Approvals: 2},
		{EventType: "999_not_a_real_event"},
	}
	for _, event := range events {
		assert.NoError(t, sink.Record(event))
	}
}
