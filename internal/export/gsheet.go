package export

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-co-op/gocron"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/app"
	"github.com/shrimpsizemoose/omtenta/internal/models"
	"github.com/shrimpsizemoose/omtenta/internal/store"
)

// GSheetExporter mirrors every student's latest final grade into Google
// Sheets on a cron schedule. The sheet is a read model only, nothing
// flows back into the journal.
type GSheetExporter struct {
	config    *app.Config
	store     store.JournalStore
	scheduler *gocron.Scheduler
}

func NewGSheetExporter(config *app.Config, journal store.JournalStore) (*GSheetExporter, error) {
	ctx := context.Background()
	scheduler := gocron.NewScheduler(time.UTC)

	exporter := &GSheetExporter{
		config:    config,
		store:     journal,
		scheduler: scheduler,
	}

	for i := range config.GSheet {
		cfg := &config.GSheet[i]

		svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets service: %w", err)
		}

		_, err = scheduler.Cron(cfg.Schedule).Do(func() {
			if err := exporter.Export(svc, cfg); err != nil {
				logger.Error.Printf("Export failed: %v", err)
			}
		})
		if err != nil {
			return nil, fmt.Errorf("failed to schedule export: %w", err)
		}
	}

	scheduler.StartAsync()
	return exporter, nil
}

func (e *GSheetExporter) Export(svc *sheets.Service, cfg *app.GSheetConfig) error {
	// Read student names first, their row positions anchor the grades
	readRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.StudentsRange)
	resp, err := svc.Spreadsheets.Values.Get(cfg.SheetID, readRange).Do()
	if err != nil {
		return fmt.Errorf("failed to read students: %w", err)
	}

	studentRows := make(map[string]int)
	for i, row := range resp.Values {
		if len(row) > 0 {
			student, ok := row[0].(string)
			if !ok {
				continue
			}
			studentRows[student] = cfg.StudentsStartRow + i
		}
	}

	grades, err := e.store.FetchLatestGrades()
	if err != nil {
		return fmt.Errorf("failed to fetch latest grades: %w", err)
	}

	byStudent := make(map[string]models.GradeRow, len(grades))
	for _, grade := range grades {
		byStudent[grade.Student] = grade
	}

	for student, row := range studentRows {
		grade, ok := byStudent[student]
		if !ok {
			continue
		}

		updateRange := fmt.Sprintf("%s!%s%d", cfg.SheetName, cfg.GradesColumn, row)
		_, err = svc.Spreadsheets.Values.Update(cfg.SheetID, updateRange,
			&sheets.ValueRange{Values: [][]interface{}{{grade.FinalGrade}}}).ValueInputOption("RAW").Do()
		if err != nil {
			return fmt.Errorf("failed to update cell for %s: %w", student, err)
		}
	}

	emoji := "✏️"
	if len(e.config.EmojiVariants) > 0 {
		emoji = e.config.EmojiVariants[rand.Intn(len(e.config.EmojiVariants))]
	}
	timestamp := fmt.Sprintf("UPD: %s %s", time.Now().Format("2 January 15:04"), emoji)

	updateRange := fmt.Sprintf("%s!%s", cfg.SheetName, cfg.TimestampRange)
	_, err = svc.Spreadsheets.Values.Update(cfg.SheetID, updateRange,
		&sheets.ValueRange{Values: [][]interface{}{{timestamp}}}).ValueInputOption("RAW").Do()

	return err
}
