package models

import (
	"github.com/go-playground/validator/v10"
)

// Attempt is one immutable graded record in a student's history.
// Once appended it is never modified or removed; the slice index in the
// history is the stable attempt index referenced by events and lookups.
type Attempt struct {
	TestScore  int64  `db:"test_score" json:"test_score"`
	ExamScore  int64  `db:"exam_score" json:"exam_score"`
	FinalGrade int64  `db:"final_grade" json:"final_grade"`
	Timestamp  int64  `db:"timestamp" json:"timestamp"`
	Note       string `db:"note" json:"note"`
}

// AttemptSubmission is the request payload for recording an attempt,
// either the initial one or a resit result.
type AttemptSubmission struct {
	TestScore int64  `json:"test_score" validate:"gte=0"`
	ExamScore int64  `json:"exam_score" validate:"gte=0"`
	Note      string `json:"note"`
}

// ResitSubmission is the request payload for opening a resit.
type ResitSubmission struct {
	Reason string `json:"reason" validate:"required"`
}

func (a *AttemptSubmission) Validate() error {
	validate := validator.New()
	return validate.Struct(a)
}

func (r *ResitSubmission) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
