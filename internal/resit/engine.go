// internal/resit/engine.go
package resit

import (
	"fmt"
	"sync"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/ledger"
	"github.com/shrimpsizemoose/omtenta/internal/models"
)

// Capability names as they appear on role grant journal rows.
const (
	capTeacher  = "teacher"
	capApprover = "approver"
)

const defaultMaxTextLength = 500

// Sink receives one event per committed state transition. Implementations
// are called from inside the engine's critical section and should return
// quickly. A failing sink never fails the operation.
type Sink interface {
	Record(event models.Event) error
}

// request is the engine's mutable workflow record. Snapshots of it are
// handed out as models.ResitRequest.
type request struct {
	id        int64
	student   string
	reason    string
	timestamp int64
	resolved  bool
	executed  bool
	approvers map[string]bool
	order     []string // approver identities in approval order
}

func (r *request) snapshot() models.ResitRequest {
	approvers := make([]string, len(r.order))
	copy(approvers, r.order)
	return models.ResitRequest{
		ID:        r.id,
		Student:   r.student,
		Reason:    r.reason,
		Timestamp: r.timestamp,
		Resolved:  r.resolved,
		Executed:  r.executed,
		Approvals: len(r.approvers),
		Approvers: approvers,
	}
}

// Engine runs the resit approval workflow on top of the attempt ledger.
// One mutex serializes every mutation, so check-then-act sequences like
// "count approvals, compare to quorum, flip resolved" are atomic. All
// methods are safe for concurrent use.
type Engine struct {
	mu sync.RWMutex

	ledger *ledger.Ledger
	roster *Roster
	sink   Sink
	clock  func() int64

	minApprovals int
	repeatResits bool
	maxReasonLen int
	maxNoteLen   int

	nextID    int64
	requests  map[int64]*request
	byStudent map[string][]int64
	pending   map[string]bool
	completed map[string]bool // students with at least one executed resit
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithClock injects a deterministic unix-seconds clock (primarily for tests).
func WithClock(clock func() int64) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSink attaches the journal sink for emitted events.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithRepeatResits controls whether a student may open a new resit after
// a previous one executed. Enabled by default; disabling it makes every
// student's first executed resit their last.
func WithRepeatResits(allow bool) Option {
	return func(e *Engine) {
		e.repeatResits = allow
	}
}

// WithTextLimits bounds the reason and note free-text fields. Values
// below 1 keep the defaults.
func WithTextLimits(maxReason, maxNote int) Option {
	return func(e *Engine) {
		if maxReason > 0 {
			e.maxReasonLen = maxReason
		}
		if maxNote > 0 {
			e.maxNoteLen = maxNote
		}
	}
}

// New wires a workflow engine to the ledger and roster. minApprovals is
// the initial quorum threshold and must be at least 1.
func New(ldg *ledger.Ledger, roster *Roster, minApprovals int, opts ...Option) (*Engine, error) {
	if ldg == nil {
		return nil, fmt.Errorf("resit engine: ledger is required")
	}
	if roster == nil {
		return nil, fmt.Errorf("resit engine: roster is required")
	}
	if minApprovals < 1 {
		return nil, fmt.Errorf("resit engine: min approvals %d below 1: %w", minApprovals, ErrInvalidArgument)
	}
	engine := &Engine{
		ledger:       ldg,
		roster:       roster,
		clock:        func() int64 { return time.Now().Unix() },
		minApprovals: minApprovals,
		repeatResits: true,
		maxReasonLen: defaultMaxTextLength,
		maxNoteLen:   defaultMaxTextLength,
		nextID:       1,
		requests:     make(map[int64]*request),
		byStudent:    make(map[string][]int64),
		pending:      make(map[string]bool),
		completed:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine, nil
}

// RecordAttempt appends a regular graded attempt outside the resit flow.
// Only recorders (teachers and the authority) may call it. Returns the
// new attempt's index and the stored record.
func (e *Engine) RecordAttempt(actor, student string, testScore, examScore int64, note string) (int, models.Attempt, error) {
	if err := e.checkScores(testScore, examScore); err != nil {
		return 0, models.Attempt{}, err
	}
	if err := e.checkNote(note); err != nil {
		return 0, models.Attempt{}, err
	}
	if student == "" {
		return 0, models.Attempt{}, fmt.Errorf("student identity is empty: %w", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.roster.CanRecord(actor) {
		return 0, models.Attempt{}, fmt.Errorf("%s cannot record attempts: %w", actor, ErrNotAuthorized)
	}

	now := e.clock()
	index, attempt := e.ledger.Append(student, testScore, examScore, note, now)
	e.emit(models.Event{
		Timestamp:    now,
		EventType:    models.EventAttemptRecorded,
		Subject:      student,
		Actor:        actor,
		TestScore:    testScore,
		ExamScore:    examScore,
		FinalGrade:   attempt.FinalGrade,
		AttemptIndex: index,
		Note:         note,
	})
	return index, attempt, nil
}

// RequestResit opens a new resit workflow for the student and returns its
// id. Any identity may request on a student's behalf; the gate is the
// approval quorum, not the requester. A student can hold only one
// unfinished resit at a time.
func (e *Engine) RequestResit(requester, student, reason string) (int64, error) {
	if student == "" {
		return 0, fmt.Errorf("student identity is empty: %w", ErrInvalidArgument)
	}
	if reason == "" {
		return 0, fmt.Errorf("resit reason is empty: %w", ErrInvalidArgument)
	}
	if len(reason) > e.maxReasonLen {
		return 0, fmt.Errorf("resit reason exceeds %d chars: %w", e.maxReasonLen, ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pending[student] {
		return 0, fmt.Errorf("student %s already has an open resit: %w", student, ErrConflictingPending)
	}
	if !e.repeatResits && e.completed[student] {
		return 0, fmt.Errorf("student %s already used their resit: %w", student, ErrConflictingPending)
	}

	now := e.clock()
	id := e.nextID
	e.nextID++
	e.requests[id] = &request{
		id:        id,
		student:   student,
		reason:    reason,
		timestamp: now,
		approvers: make(map[string]bool),
	}
	e.byStudent[student] = append(e.byStudent[student], id)
	e.pending[student] = true

	e.emit(models.Event{
		Timestamp: now,
		EventType: models.EventResitRequested,
		Subject:   student,
		ResitID:   id,
		Actor:     requester,
		Note:      reason,
	})
	return id, nil
}

// ApproveResit records one approver's vote on an open resit. Each
// approver counts once; the vote that reaches the quorum resolves the
// request in the same step. Returns the post-approval snapshot.
func (e *Engine) ApproveResit(approver string, resitID int64) (models.ResitRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	req, ok := e.requests[resitID]
	if !ok {
		return models.ResitRequest{}, fmt.Errorf("resit %d: %w", resitID, ErrNotFound)
	}
	if !e.roster.CanApprove(approver) {
		return models.ResitRequest{}, fmt.Errorf("%s cannot approve resits: %w", approver, ErrNotAuthorized)
	}
	if req.resolved {
		return models.ResitRequest{}, fmt.Errorf("resit %d is already resolved: %w", resitID, ErrInvalidState)
	}
	if req.approvers[approver] {
		return models.ResitRequest{}, fmt.Errorf("%s already approved resit %d: %w", approver, resitID, ErrInvalidState)
	}

	now := e.clock()
	req.approvers[approver] = true
	req.order = append(req.order, approver)
	count := len(req.approvers)

	e.emit(models.Event{
		Timestamp: now,
		EventType: models.EventResitApproved,
		Subject:   req.student,
		ResitID:   resitID,
		Actor:     approver,
		Approvals: count,
	})

	// Quorum is only re-checked here, on an approval. Lowering the
	// threshold between votes does not resolve a request by itself.
	if count >= e.minApprovals {
		req.resolved = true
		e.emit(models.Event{
			Timestamp: now,
			EventType: models.EventResitResolved,
			Subject:   req.student,
			ResitID:   resitID,
			Approvals: count,
		})
	}
	return req.snapshot(), nil
}

// SubmitResitResult grades a resolved resit exactly once: appends the new
// attempt to the student's history, marks the resit executed, and frees
// the student to request again. Recorder capability required.
func (e *Engine) SubmitResitResult(actor string, resitID int64, testScore, examScore int64, note string) (int, models.Attempt, error) {
	if err := e.checkScores(testScore, examScore); err != nil {
		return 0, models.Attempt{}, err
	}
	if err := e.checkNote(note); err != nil {
		return 0, models.Attempt{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.roster.CanRecord(actor) {
		return 0, models.Attempt{}, fmt.Errorf("%s cannot record resit results: %w", actor, ErrNotAuthorized)
	}
	req, ok := e.requests[resitID]
	if !ok {
		return 0, models.Attempt{}, fmt.Errorf("resit %d: %w", resitID, ErrNotFound)
	}
	if !req.resolved {
		return 0, models.Attempt{}, fmt.Errorf("resit %d is not resolved yet: %w", resitID, ErrInvalidState)
	}
	if req.executed {
		return 0, models.Attempt{}, fmt.Errorf("resit %d was already executed: %w", resitID, ErrInvalidState)
	}

	now := e.clock()
	index, attempt := e.ledger.Append(req.student, testScore, examScore, note, now)
	req.executed = true
	delete(e.pending, req.student)
	e.completed[req.student] = true

	e.emit(models.Event{
		Timestamp:    now,
		EventType:    models.EventResitExecuted,
		Subject:      req.student,
		ResitID:      resitID,
		Actor:        actor,
		TestScore:    testScore,
		ExamScore:    examScore,
		FinalGrade:   attempt.FinalGrade,
		AttemptIndex: index,
		Note:         note,
	})
	return index, attempt, nil
}

// SetMinApprovals changes the quorum threshold. Authority only. Already
// resolved requests keep their status; open ones are measured against the
// new threshold on their next approval.
func (e *Engine) SetMinApprovals(actor string, threshold int) error {
	if threshold < 1 {
		return fmt.Errorf("quorum threshold %d below 1: %w", threshold, ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.roster.IsAuthority(actor) {
		return fmt.Errorf("%s cannot change the quorum: %w", actor, ErrNotAuthorized)
	}
	e.minApprovals = threshold

	e.emit(models.Event{
		Timestamp: e.clock(),
		EventType: models.EventQuorumChanged,
		Actor:     actor,
		Approvals: threshold,
	})
	return nil
}

// AddTeacher grants recorder capability to an identity. Authority only.
func (e *Engine) AddTeacher(actor, identity string) error {
	return e.grant(actor, identity, capTeacher)
}

// AddApprover grants approver capability to an identity. Authority only.
func (e *Engine) AddApprover(actor, identity string) error {
	return e.grant(actor, identity, capApprover)
}

func (e *Engine) grant(actor, identity, capability string) error {
	if identity == "" {
		return fmt.Errorf("grantee identity is empty: %w", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.roster.IsAuthority(actor) {
		return fmt.Errorf("%s cannot grant roles: %w", actor, ErrNotAuthorized)
	}
	switch capability {
	case capTeacher:
		e.roster.AddTeacher(identity)
	case capApprover:
		e.roster.AddApprover(identity)
	}

	e.emit(models.Event{
		Timestamp: e.clock(),
		EventType: models.EventRoleGranted,
		Subject:   identity,
		Actor:     actor,
		Note:      capability,
	})
	return nil
}

// MinApprovals returns the current quorum threshold.
func (e *Engine) MinApprovals() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.minApprovals
}

// IsAuthority reports whether identity is the configured authority.
func (e *Engine) IsAuthority(identity string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.roster.IsAuthority(identity)
}

// AttemptCount returns how many attempts the student has.
func (e *Engine) AttemptCount(student string) int {
	return e.ledger.Count(student)
}

// Attempt returns the student's attempt at the given history index.
func (e *Engine) Attempt(student string, index int) (models.Attempt, error) {
	attempt, ok := e.ledger.At(student, index)
	if !ok {
		return models.Attempt{}, fmt.Errorf("attempt %d for %s: %w", index, student, ErrNotFound)
	}
	return attempt, nil
}

// Attempts returns a copy of the student's full attempt history.
func (e *Engine) Attempts(student string) []models.Attempt {
	return e.ledger.History(student)
}

// ResitsByStudent returns the ids of every resit ever requested for the
// student, oldest first.
func (e *Engine) ResitsByStudent(student string) []int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.byStudent[student]
	out := make([]int64, len(ids))
	copy(out, ids)
	return out
}

// ResitDetails returns a snapshot of the resit with the given id.
func (e *Engine) ResitDetails(resitID int64) (models.ResitRequest, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	req, ok := e.requests[resitID]
	if !ok {
		return models.ResitRequest{}, fmt.Errorf("resit %d: %w", resitID, ErrNotFound)
	}
	return req.snapshot(), nil
}

// LatestResitID returns the most recently requested resit id for the
// student, or 0 when the student never had one.
func (e *Engine) LatestResitID(student string) int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ids := e.byStudent[student]
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1]
}

// Restore applies one journaled event to the in-memory state, exactly as
// recorded: no capability checks, no re-emission. Feed it the journal in
// seq order on boot and the engine continues where the process left off.
func (e *Engine) Restore(event models.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch event.EventType {
	case models.EventAttemptRecorded:
		e.ledger.Append(event.Subject, event.TestScore, event.ExamScore, event.Note, event.Timestamp)
	case models.EventResitRequested:
		e.requests[event.ResitID] = &request{
			id:        event.ResitID,
			student:   event.Subject,
			reason:    event.Note,
			timestamp: event.Timestamp,
			approvers: make(map[string]bool),
		}
		e.byStudent[event.Subject] = append(e.byStudent[event.Subject], event.ResitID)
		e.pending[event.Subject] = true
		if event.ResitID >= e.nextID {
			e.nextID = event.ResitID + 1
		}
	case models.EventResitApproved:
		if req, ok := e.requests[event.ResitID]; ok && !req.approvers[event.Actor] {
			req.approvers[event.Actor] = true
			req.order = append(req.order, event.Actor)
		}
	case models.EventResitResolved:
		if req, ok := e.requests[event.ResitID]; ok {
			req.resolved = true
		}
	case models.EventResitExecuted:
		e.ledger.Append(event.Subject, event.TestScore, event.ExamScore, event.Note, event.Timestamp)
		if req, ok := e.requests[event.ResitID]; ok {
			req.executed = true
		}
		delete(e.pending, event.Subject)
		e.completed[event.Subject] = true
	case models.EventQuorumChanged:
		if event.Approvals >= 1 {
			e.minApprovals = event.Approvals
		}
	case models.EventRoleGranted:
		switch event.Note {
		case capTeacher:
			e.roster.AddTeacher(event.Subject)
		case capApprover:
			e.roster.AddApprover(event.Subject)
		}
	default:
		logger.Debug.Printf("skipping unknown journal event type %q (seq %d)", event.EventType, event.Seq)
	}
}

func (e *Engine) emit(event models.Event) {
	if e.sink == nil {
		return
	}
	if err := e.sink.Record(event); err != nil {
		logger.Error.Printf("failed to journal %s event: %v", event.EventType, err)
	}
}

func (e *Engine) checkScores(testScore, examScore int64) error {
	if testScore < 0 || examScore < 0 {
		return fmt.Errorf("scores must be non-negative: %w", ErrInvalidArgument)
	}
	return nil
}

func (e *Engine) checkNote(note string) error {
	if len(note) > e.maxNoteLen {
		return fmt.Errorf("note exceeds %d chars: %w", e.maxNoteLen, ErrInvalidArgument)
	}
	return nil
}
