package postgres

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/shrimpsizemoose/omtenta/internal/models"
	"github.com/shrimpsizemoose/omtenta/internal/store"
)

type PostgresStore struct {
	store.BaseStore
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			out := query
			for i := 1; strings.Contains(out, "?"); i++ {
				out = strings.Replace(out, "?", fmt.Sprintf("$%d", i), 1)
			}
			return out
		},
	}}

	return s, nil
}

func (s *PostgresStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, nil)
}

// FetchLatestGrades returns every student's most recent final grade.
func (s *PostgresStore) FetchLatestGrades() ([]models.GradeRow, error) {
	query := `
        SELECT DISTINCT ON (subject)
            subject AS student,
            final_grade,
            timestamp
        FROM journal
        WHERE event_type IN ('100_attempt_recorded', '230_resit_executed')
        ORDER BY subject, seq DESC
    `

	var rows []models.GradeRow
	err := s.DB.Select(&rows, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest grades: %w", err)
	}

	return rows, nil
}
