// internal/store/sqlite/store.go
package sqlite

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shrimpsizemoose/omtenta/internal/models"
	"github.com/shrimpsizemoose/omtenta/internal/store"
)

type SQLiteStore struct {
	store.BaseStore
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	// sqlite keeps a separate database per connection for :memory: DSNs,
	// and concurrent writers trip SQLITE_BUSY. One connection covers both.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &SQLiteStore{BaseStore: store.BaseStore{
		DB: db,
		Converter: func(query string) string {
			return query
		},
	}}

	return s, nil
}

func (s *SQLiteStore) ApplyMigrations(dir string) error {
	return s.BaseStore.ApplyMigrations(dir, translateToSQLite)
}

// translateToSQLite converts Postgres SQL to SQLite dialect
func translateToSQLite(sql string) string {
	replacements := map[string]string{
		"BIGSERIAL PRIMARY KEY": "INTEGER PRIMARY KEY AUTOINCREMENT",
		"BIGINT":                "INTEGER",
		"TRUE":                  "1",
		"FALSE":                 "0",
		"now()":                 "CURRENT_TIMESTAMP",
		"VARCHAR(32)":           "TEXT",
	}
	result := sql
	for from, to := range replacements {
		result = strings.ReplaceAll(result, from, to)
	}
	return result
}

// FetchLatestGrades returns every student's most recent final grade.
// SQLite has no DISTINCT ON, so the newest row per student comes from a
// max-seq join instead.
func (s *SQLiteStore) FetchLatestGrades() ([]models.GradeRow, error) {
	query := `
		WITH graded AS (
			SELECT seq, subject, final_grade, timestamp
			FROM journal
			WHERE event_type IN ('100_attempt_recorded', '230_resit_executed')
		)
		SELECT
			g.subject AS student,
			g.final_grade,
			g.timestamp
		FROM graded g
		JOIN (
			SELECT subject, MAX(seq) AS last_seq
			FROM graded
			GROUP BY subject
		) latest ON latest.subject = g.subject AND latest.last_seq = g.seq
		ORDER BY g.subject
	`

	var rows []models.GradeRow
	err := s.DB.Select(&rows, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest grades: %w", err)
	}

	return rows, nil
}
