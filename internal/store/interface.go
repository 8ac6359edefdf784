package store

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/shrimpsizemoose/omtenta/internal/models"
)

// JournalStore persists the append-only workflow journal, one row per
// state transition. seq is assigned by the database and defines replay
// order.
type JournalStore interface {
	Close() error
	ApplyMigrations(dir string) error

	AppendEvent(event *models.Event) error
	ListEvents() ([]models.Event, error)
	ListStudentEvents(student string) ([]models.Event, error)
	ListResitEvents(resitID int64) ([]models.Event, error)

	GetLatestGrade(student string) (*models.GradeRow, error)
	FetchLatestGrades() ([]models.GradeRow, error)
}

// BaseStore provides common functionality for different DB implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) AppendEvent(event *models.Event) error {
	_, err := s.DB.NamedExec(`
		INSERT INTO journal (timestamp, event_type, subject, resit_id, actor,
		                     test_score, exam_score, final_grade, attempt_index, approvals, note)
		VALUES (:timestamp, :event_type, :subject, :resit_id, :actor,
		        :test_score, :exam_score, :final_grade, :attempt_index, :approvals, :note)
	`, event)
	if err != nil {
		return fmt.Errorf("failed to append journal event: %w", err)
	}
	return nil
}

func (s *BaseStore) ListEvents() ([]models.Event, error) {
	var events []models.Event
	err := s.DB.Select(&events, `
		SELECT seq, timestamp, event_type, subject, resit_id, actor,
		       test_score, exam_score, final_grade, attempt_index, approvals, note
		FROM journal
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal events: %w", err)
	}

	return events, nil
}

func (s *BaseStore) ListStudentEvents(student string) ([]models.Event, error) {
	var events []models.Event
	query := s.Converter(`
		SELECT seq, timestamp, event_type, subject, resit_id, actor,
		       test_score, exam_score, final_grade, attempt_index, approvals, note
		FROM journal
		WHERE subject = ?
		ORDER BY seq ASC
	`)

	err := s.DB.Select(&events, query, student)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal events for student: %w", err)
	}

	return events, nil
}

func (s *BaseStore) ListResitEvents(resitID int64) ([]models.Event, error) {
	var events []models.Event
	query := s.Converter(`
		SELECT seq, timestamp, event_type, subject, resit_id, actor,
		       test_score, exam_score, final_grade, attempt_index, approvals, note
		FROM journal
		WHERE resit_id = ?
		ORDER BY seq ASC
	`)

	err := s.DB.Select(&events, query, resitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list journal events for resit: %w", err)
	}

	return events, nil
}

// GetLatestGrade returns the student's most recent final grade, looking
// at both regular and resit attempts. Nil when the student has none.
func (s *BaseStore) GetLatestGrade(student string) (*models.GradeRow, error) {
	var row models.GradeRow
	query := s.Converter(`
		SELECT subject AS student, final_grade, timestamp
		FROM journal
		WHERE subject = ?
		AND event_type IN ('100_attempt_recorded', '230_resit_executed')
		ORDER BY seq DESC
		LIMIT 1
	`)

	err := s.DB.Get(&row, query, student)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest grade: %w", err)
	}
	return &row, nil
}
