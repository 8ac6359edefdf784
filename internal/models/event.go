package models

// Journal event types, one per workflow state transition. The numeric
// prefix orders them by lifecycle stage, same scheme the API consumers
// sort on.
const (
	EventAttemptRecorded = "100_attempt_recorded"
	EventResitRequested  = "200_resit_requested"
	EventResitApproved   = "210_resit_approved"
	EventResitResolved   = "220_resit_resolved"
	EventResitExecuted   = "230_resit_executed"
	EventQuorumChanged   = "300_quorum_changed"
	EventRoleGranted     = "310_role_granted"
)

// Event is one row of the append-only journal. Columns are a flat union
// over all event types; unused ones stay at their zero value. Subject is
// the student for attempt/resit events and the grantee for role events.
// Note doubles as the resit reason on 200 rows and the capability name
// on 310 rows.
type Event struct {
	Seq          int64  `db:"seq" json:"seq"`
	Timestamp    int64  `db:"timestamp" json:"timestamp"`
	EventType    string `db:"event_type" json:"event_type"`
	Subject      string `db:"subject" json:"subject,omitempty"`
	ResitID      int64  `db:"resit_id" json:"resit_id,omitempty"`
	Actor        string `db:"actor" json:"actor,omitempty"`
	TestScore    int64  `db:"test_score" json:"test_score,omitempty"`
	ExamScore    int64  `db:"exam_score" json:"exam_score,omitempty"`
	FinalGrade   int64  `db:"final_grade" json:"final_grade,omitempty"`
	AttemptIndex int    `db:"attempt_index" json:"attempt_index,omitempty"`
	Approvals    int    `db:"approvals" json:"approvals,omitempty"`
	Note         string `db:"note" json:"note,omitempty"`
}

// GradeRow is the exporter's read model: a student's most recent final
// grade as derived from the journal.
type GradeRow struct {
	Student    string `db:"student" json:"student"`
	FinalGrade int64  `db:"final_grade" json:"final_grade"`
	Timestamp  int64  `db:"timestamp" json:"timestamp"`
}
