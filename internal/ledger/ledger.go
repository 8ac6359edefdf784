// internal/ledger/ledger.go
package ledger

import (
	"sync"

	"github.com/shrimpsizemoose/omtenta/internal/models"
)

// Weights of the two sub-scores in the final grade, in percent.
const (
	testWeight = 40
	examWeight = 60
)

// FinalGrade derives the final grade from the two sub-scores using
// integer (floor) division: (test*40 + exam*60) / 100. Scores are int64
// so the weighted sum cannot wrap for anything a request can carry.
func FinalGrade(testScore, examScore int64) int64 {
	return (testScore*testWeight + examScore*examWeight) / 100
}

// Ledger keeps the append-only attempt history of every student.
// Entries are immutable once appended; readers always get copies.
type Ledger struct {
	mu        sync.RWMutex
	histories map[string][]models.Attempt
}

func New() *Ledger {
	return &Ledger{
		histories: make(map[string][]models.Attempt),
	}
}

// Append records one graded attempt for the student and returns its
// index in the history (the length before the append) together with the
// stored record. The final grade is computed here, never by callers.
func (l *Ledger) Append(student string, testScore, examScore int64, note string, timestamp int64) (int, models.Attempt) {
	attempt := models.Attempt{
		TestScore:  testScore,
		ExamScore:  examScore,
		FinalGrade: FinalGrade(testScore, examScore),
		Timestamp:  timestamp,
		Note:       note,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	index := len(l.histories[student])
	l.histories[student] = append(l.histories[student], attempt)
	return index, attempt
}

// History returns a copy of the student's attempts in append order.
func (l *Ledger) History(student string) []models.Attempt {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.histories[student]
	out := make([]models.Attempt, len(history))
	copy(out, history)
	return out
}

// Count returns the number of attempts recorded for the student.
func (l *Ledger) Count(student string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.histories[student])
}

// At returns the attempt at the given index, reporting whether the
// index is within the student's history.
func (l *Ledger) At(student string, index int) (models.Attempt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.histories[student]
	if index < 0 || index >= len(history) {
		return models.Attempt{}, false
	}
	return history[index], true
}
