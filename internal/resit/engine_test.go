package resit

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shrimpsizemoose/omtenta/internal/ledger"
	"github.com/shrimpsizemoose/omtenta/internal/models"
)

type captureSink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *captureSink) Record(event models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) all() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

func (s *captureSink) countByType(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, event := range s.events {
		if event.EventType == eventType {
			n++
		}
	}
	return n
}

// testClock hands out strictly increasing unix timestamps.
func testClock() func() int64 {
	var now int64 = 1_700_000_000
	return func() int64 {
		now++
		return now
	}
}

func newTestEngine(t *testing.T, quorum int, opts ...Option) *Engine {
	t.Helper()

	roster := NewRoster("ministry")
	roster.AddTeacher("teacher.svensson")
	roster.AddApprover("approver.one")
	roster.AddApprover("approver.two")
	roster.AddApprover("approver.three")

	opts = append([]Option{WithClock(testClock())}, opts...)
	engine, err := New(ledger.New(), roster, quorum, opts...)
	require.NoError(t, err)
	return engine
}

func TestEngine_EndToEndResitFlow(t *testing.T) {
	sink := &captureSink{}
	engine := newTestEngine(t, 1, WithSink(sink))

	require.NoError(t, engine.SetMinApprovals("ministry", 2))

	index, attempt, err := engine.RecordAttempt("teacher.svensson", "anna.larsson", 50, 60, "ordinarie tenta")
	require.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.Equal(t, int64(56), attempt.FinalGrade)

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "sjuk under tentan")
	require.NoError(t, err)
	assert.Equal(t, int64(1), resitID)

	snap, err := engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Approvals)
	assert.Equal(t, "requested", snap.State())

	snap, err = engine.ApproveResit("approver.two", resitID)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Approvals)
	assert.Equal(t, "resolved", snap.State())
	assert.Equal(t, []string{"approver.one", "approver.two"}, snap.Approvers)

	index, attempt, err = engine.SubmitResitResult("teacher.svensson", resitID, 70, 80, "omtenta")
	require.NoError(t, err)
	assert.Equal(t, 1, index)
	assert.Equal(t, int64(76), attempt.FinalGrade)

	assert.Equal(t, 2, engine.AttemptCount("anna.larsson"))

	details, err := engine.ResitDetails(resitID)
	require.NoError(t, err)
	assert.Equal(t, "executed", details.State())

	// the first attempt is untouched by the whole flow
	first, err := engine.Attempt("anna.larsson", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(56), first.FinalGrade)
	assert.Equal(t, "ordinarie tenta", first.Note)

	_, err = engine.ApproveResit("approver.three", resitID)
	assert.ErrorIs(t, err, ErrInvalidState)

	types := make([]string, 0, len(sink.all()))
	for _, event := range sink.all() {
		types = append(types, event.EventType)
	}
	assert.Equal(t, []string{
		models.EventQuorumChanged,
		models.EventAttemptRecorded,
		models.EventResitRequested,
		models.EventResitApproved,
		models.EventResitApproved,
		models.EventResitResolved,
		models.EventResitExecuted,
	}, types)
}

func TestEngine_ApprovalBookkeeping(t *testing.T) {
	engine := newTestEngine(t, 3)

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "missade tentan")
	require.NoError(t, err)

	_, err = engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)

	t.Run("same approver cannot vote twice", func(t *testing.T) {
		_, err := engine.ApproveResit("approver.one", resitID)
		assert.ErrorIs(t, err, ErrInvalidState)

		details, err := engine.ResitDetails(resitID)
		require.NoError(t, err)
		assert.Equal(t, 1, details.Approvals) // второй голос не считается
		assert.Equal(t, []string{"approver.one"}, details.Approvers)
	})

	t.Run("authority counts as an approver", func(t *testing.T) {
		snap, err := engine.ApproveResit("ministry", resitID)
		require.NoError(t, err)
		assert.Equal(t, 2, snap.Approvals)
	})

	t.Run("outsider cannot vote", func(t *testing.T) {
		_, err := engine.ApproveResit("random.person", resitID)
		assert.ErrorIs(t, err, ErrNotAuthorized)
	})
}

func TestEngine_SubmitResultExactlyOnce(t *testing.T) {
	engine := newTestEngine(t, 1)

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "missade tentan")
	require.NoError(t, err)

	t.Run("cannot submit before resolution", func(t *testing.T) {
		_, _, err := engine.SubmitResitResult("teacher.svensson", resitID, 70, 80, "")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, 0, engine.AttemptCount("anna.larsson"))
	})

	_, err = engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)

	index, _, err := engine.SubmitResitResult("teacher.svensson", resitID, 70, 80, "")
	require.NoError(t, err)
	assert.Equal(t, 0, index)

	t.Run("second submission is rejected and appends nothing", func(t *testing.T) {
		before := engine.AttemptCount("anna.larsson")
		_, _, err := engine.SubmitResitResult("teacher.svensson", resitID, 90, 90, "")
		assert.ErrorIs(t, err, ErrInvalidState)
		assert.Equal(t, before, engine.AttemptCount("anna.larsson"))
	})
}

func TestEngine_OnePendingResitPerStudent(t *testing.T) {
	engine := newTestEngine(t, 1)

	resitID, err := engine.RequestResit("random.person", "anna.larsson", "anyone may ask")
	require.NoError(t, err)

	_, err = engine.RequestResit("anna.larsson", "anna.larsson", "asking again")
	assert.ErrorIs(t, err, ErrConflictingPending)

	// resolution alone does not free the slot, execution does
	_, err = engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)
	_, err = engine.RequestResit("anna.larsson", "anna.larsson", "still blocked")
	assert.ErrorIs(t, err, ErrConflictingPending)

	_, _, err = engine.SubmitResitResult("teacher.svensson", resitID, 70, 80, "")
	require.NoError(t, err)

	nextID, err := engine.RequestResit("anna.larsson", "anna.larsson", "new term, new luck")
	require.NoError(t, err)
	assert.Equal(t, resitID+1, nextID)

	// a different student is never blocked by anna's requests
	_, err = engine.RequestResit("bjorn.afzelius", "bjorn.afzelius", "own reasons")
	assert.NoError(t, err)
}

func TestEngine_SingleResitPolicy(t *testing.T) {
	engine := newTestEngine(t, 1, WithRepeatResits(false))

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "first and only")
	require.NoError(t, err)
	_, err = engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)
	_, _, err = engine.SubmitResitResult("teacher.svensson", resitID, 70, 80, "")
	require.NoError(t, err)

	_, err = engine.RequestResit("anna.larsson", "anna.larsson", "one more please")
	assert.ErrorIs(t, err, ErrConflictingPending)
}

func TestEngine_QuorumLoweringIsLazy(t *testing.T) {
	engine := newTestEngine(t, 3)

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "quorum games")
	require.NoError(t, err)

	_, err = engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)
	_, err = engine.ApproveResit("approver.two", resitID)
	require.NoError(t, err)

	require.NoError(t, engine.SetMinApprovals("ministry", 2))

	// two votes already satisfy the new threshold, but nothing
	// re-checks until the next approval lands
	details, err := engine.ResitDetails(resitID)
	require.NoError(t, err)
	assert.False(t, details.Resolved)

	snap, err := engine.ApproveResit("approver.three", resitID)
	require.NoError(t, err)
	assert.True(t, snap.Resolved)
	assert.Equal(t, 3, snap.Approvals)
}

func TestEngine_AuthorizationDenials(t *testing.T) {
	engine := newTestEngine(t, 1)

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "setup")
	require.NoError(t, err)
	_, err = engine.ApproveResit("approver.one", resitID)
	require.NoError(t, err)

	testCases := []struct {
		name string
		call func() error
	}{
		{
			name: "student cannot record attempts",
			call: func() error {
				_, _, err := engine.RecordAttempt("anna.larsson", "anna.larsson", 50, 60, "")
				return err
			},
		},
		{
			name: "teacher cannot approve",
			call: func() error {
				_, err := engine.ApproveResit("teacher.svensson", resitID)
				return err
			},
		},
		{
			name: "approver cannot submit results",
			call: func() error {
				_, _, err := engine.SubmitResitResult("approver.one", resitID, 70, 80, "")
				return err
			},
		},
		{
			name: "teacher cannot change the quorum",
			call: func() error {
				return engine.SetMinApprovals("teacher.svensson", 5)
			},
		},
		{
			name: "approver cannot grant roles",
			call: func() error {
				return engine.AddTeacher("approver.one", "new.teacher")
			},
		},
		{
			name: "teacher cannot grant approver",
			call: func() error {
				return engine.AddApprover("teacher.svensson", "new.approver")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), ErrNotAuthorized)
		})
	}

	t.Run("authority can do all of it", func(t *testing.T) {
		_, _, err := engine.RecordAttempt("ministry", "bjorn.afzelius", 40, 40, "")
		assert.NoError(t, err)
		assert.NoError(t, engine.AddTeacher("ministry", "new.teacher"))
		assert.NoError(t, engine.AddApprover("ministry", "new.approver"))
		assert.NoError(t, engine.SetMinApprovals("ministry", 2))

		_, _, err = engine.RecordAttempt("new.teacher", "bjorn.afzelius", 45, 45, "")
		assert.NoError(t, err)
	})
}

func TestEngine_ArgumentValidation(t *testing.T) {
	engine := newTestEngine(t, 1, WithTextLimits(100, 100))

	testCases := []struct {
		name string
		call func() error
	}{
		{
			name: "negative test score",
			call: func() error {
				_, _, err := engine.RecordAttempt("teacher.svensson", "anna.larsson", -1, 60, "")
				return err
			},
		},
		{
			name: "negative exam score",
			call: func() error {
				_, _, err := engine.RecordAttempt("teacher.svensson", "anna.larsson", 50, -60, "")
				return err
			},
		},
		{
			name: "empty student",
			call: func() error {
				_, _, err := engine.RecordAttempt("teacher.svensson", "", 50, 60, "")
				return err
			},
		},
		{
			name: "empty resit reason",
			call: func() error {
				_, err := engine.RequestResit("anna.larsson", "anna.larsson", "")
				return err
			},
		},
		{
			name: "oversized resit reason",
			call: func() error {
				_, err := engine.RequestResit("anna.larsson", "anna.larsson", strings.Repeat("x", 101))
				return err
			},
		},
		{
			name: "oversized note",
			call: func() error {
				_, _, err := engine.RecordAttempt("teacher.svensson", "anna.larsson", 50, 60, strings.Repeat("x", 101))
				return err
			},
		},
		{
			name: "zero quorum",
			call: func() error {
				return engine.SetMinApprovals("ministry", 0)
			},
		},
		{
			name: "empty grantee",
			call: func() error {
				return engine.AddApprover("ministry", "")
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), ErrInvalidArgument)
		})
	}

	t.Run("rejections leave no trace", func(t *testing.T) {
		assert.Equal(t, 0, engine.AttemptCount("anna.larsson"))
		assert.Equal(t, int64(0), engine.LatestResitID("anna.larsson"))
	})
}

func TestEngine_UnknownResit(t *testing.T) {
	engine := newTestEngine(t, 1)

	_, err := engine.ApproveResit("approver.one", 0) // 0 is the "does not exist" sentinel
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = engine.ApproveResit("approver.one", 42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = engine.SubmitResitResult("teacher.svensson", 42, 70, 80, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = engine.ResitDetails(42)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = engine.Attempt("anna.larsson", 0)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, int64(0), engine.LatestResitID("anna.larsson"))
	assert.Empty(t, engine.ResitsByStudent("anna.larsson"))
}

func TestEngine_ConcurrentApprovalsResolveOnce(t *testing.T) {
	sink := &captureSink{}

	roster := NewRoster("ministry")
	approvers := []string{
		"approver.01", "approver.02", "approver.03", "approver.04", "approver.05",
		"approver.06", "approver.07", "approver.08", "approver.09", "approver.10",
	}
	for _, approver := range approvers {
		roster.AddApprover(approver)
	}
	engine, err := New(ledger.New(), roster, 3, WithClock(testClock()), WithSink(sink))
	require.NoError(t, err)

	resitID, err := engine.RequestResit("anna.larsson", "anna.larsson", "race me")
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted, rejected int

	for _, approver := range approvers {
		wg.Add(1)
		go func(approver string) {
			defer wg.Done()
			_, err := engine.ApproveResit(approver, resitID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case assert.ErrorIs(t, err, ErrInvalidState):
				rejected++
			}
		}(approver)
	}
	wg.Wait()

	// the vote that lands third flips resolved, everyone after that
	// bounces off the resolved check
	assert.Equal(t, 3, accepted)
	assert.Equal(t, 7, rejected)
	assert.Equal(t, 1, sink.countByType(models.EventResitResolved))

	details, err := engine.ResitDetails(resitID)
	require.NoError(t, err)
	assert.True(t, details.Resolved)
	assert.Equal(t, 3, details.Approvals)
}

func TestEngine_ReplayRebuildsState(t *testing.T) {
	sink := &captureSink{}

	roster := NewRoster("ministry")
	original, err := New(ledger.New(), roster, 1, WithClock(testClock()), WithSink(sink))
	require.NoError(t, err)

	// drive a full lifecycle, roles granted through the engine so the
	// journal carries them
	require.NoError(t, original.AddTeacher("ministry", "teacher.svensson"))
	require.NoError(t, original.AddApprover("ministry", "approver.one"))
	require.NoError(t, original.AddApprover("ministry", "approver.two"))
	require.NoError(t, original.SetMinApprovals("ministry", 2))

	_, _, err = original.RecordAttempt("teacher.svensson", "anna.larsson", 50, 60, "ordinarie")
	require.NoError(t, err)

	firstResit, err := original.RequestResit("anna.larsson", "anna.larsson", "sjuk")
	require.NoError(t, err)
	_, err = original.ApproveResit("approver.one", firstResit)
	require.NoError(t, err)
	_, err = original.ApproveResit("approver.two", firstResit)
	require.NoError(t, err)
	_, _, err = original.SubmitResitResult("teacher.svensson", firstResit, 70, 80, "omtenta")
	require.NoError(t, err)

	// leave a second resit hanging mid-flight
	secondResit, err := original.RequestResit("anna.larsson", "anna.larsson", "en gång till")
	require.NoError(t, err)
	_, err = original.ApproveResit("approver.one", secondResit)
	require.NoError(t, err)

	// fresh process: empty roster and ledger, journal replayed in order
	replica, err := New(ledger.New(), NewRoster("ministry"), 1, WithClock(testClock()))
	require.NoError(t, err)
	for _, event := range sink.all() {
		replica.Restore(event)
	}

	assert.Equal(t, original.MinApprovals(), replica.MinApprovals())
	assert.Equal(t, original.AttemptCount("anna.larsson"), replica.AttemptCount("anna.larsson"))
	assert.Equal(t, original.Attempts("anna.larsson"), replica.Attempts("anna.larsson"))
	assert.Equal(t, original.ResitsByStudent("anna.larsson"), replica.ResitsByStudent("anna.larsson"))
	assert.Equal(t, original.LatestResitID("anna.larsson"), replica.LatestResitID("anna.larsson"))

	for _, id := range []int64{firstResit, secondResit} {
		want, err := original.ResitDetails(id)
		require.NoError(t, err)
		got, err := replica.ResitDetails(id)
		require.NoError(t, err)
		assert.Equal(t, want, got, "resit %d diverged after replay", id)
	}

	// replayed state keeps behaving: pending conflict survives, the
	// granted roles work, ids continue from where they stopped
	_, err = replica.RequestResit("anna.larsson", "anna.larsson", "blocked")
	assert.ErrorIs(t, err, ErrConflictingPending)

	snap, err := replica.ApproveResit("approver.two", secondResit)
	require.NoError(t, err)
	assert.True(t, snap.Resolved)

	_, _, err = replica.RecordAttempt("teacher.svensson", "bjorn.afzelius", 30, 30, "")
	assert.NoError(t, err)

	id, err := replica.RequestResit("bjorn.afzelius", "bjorn.afzelius", "id continuity")
	require.NoError(t, err)
	assert.Equal(t, secondResit+1, id)
}
