package app

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/journal"
	"github.com/shrimpsizemoose/omtenta/internal/ledger"
	"github.com/shrimpsizemoose/omtenta/internal/models"
	"github.com/shrimpsizemoose/omtenta/internal/resit"
	"github.com/shrimpsizemoose/omtenta/internal/store"
)

// JournalRow is one audit row as served over the API: the raw event plus,
// on request, the event time rendered per display.timestamp_format.
type JournalRow struct {
	models.Event
	HumanDttm string `json:"human_dttm,omitempty"`
}

type Service struct {
	Config *Config
	Store  store.JournalStore
	Auth   *Auth
	Engine *resit.Engine
	Tokens *TokenManager
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	journalStore, err := NewStore(config.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	auth, err := NewAuth(config)
	if err != nil {
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	roster := resit.NewRoster(config.Roles.Authority)
	for _, teacher := range config.Roles.Teachers {
		roster.AddTeacher(teacher)
	}
	for _, approver := range config.Roles.Approvers {
		roster.AddApprover(approver)
	}

	sink := journal.NewMultiSink(
		journal.NewStoreSink(journalStore),
		journal.MetricsSink{},
		journal.LogSink{},
	)

	engine, err := resit.New(
		ledger.New(),
		roster,
		config.Workflow.MinApprovals,
		resit.WithSink(sink),
		resit.WithRepeatResits(!config.Workflow.SingleResit),
		resit.WithTextLimits(config.Workflow.MaxReasonLength, config.Workflow.MaxNoteLength),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init workflow engine: %w", err)
	}

	service := &Service{
		Config: config,
		Store:  journalStore,
		Auth:   auth,
		Engine: engine,
	}
	if config.Server.EnableAuth {
		service.Tokens = NewTokenManager(auth.redis)
	}

	return service, nil
}

// Restore replays the persisted journal into the engine, oldest row first.
// Call it once on boot, after migrations and before serving traffic.
func (s *Service) Restore() error {
	events, err := s.Store.ListEvents()
	if err != nil {
		return fmt.Errorf("failed to load journal: %w", err)
	}

	for _, event := range events {
		s.Engine.Restore(event)
	}

	logger.Info.Printf("Replayed %d journal events", len(events))
	return nil
}

// StudentJournal returns the student's audit rows in seq order.
func (s *Service) StudentJournal(student string, includeHumanDttm bool) ([]JournalRow, error) {
	events, err := s.Store.ListStudentEvents(student)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch journal: %w", err)
	}

	rows := make([]JournalRow, 0, len(events))
	for _, event := range events {
		row := JournalRow{Event: event}
		if includeHumanDttm {
			row.HumanDttm = time.Unix(event.Timestamp, 0).UTC().Format(s.Config.Display.TimestampFormat)
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Identity extracts the caller's identity from the configured header.
func (s *Service) Identity(r *http.Request) string {
	return r.Header.Get(s.Config.API.IdentityHeader)
}

func (s *Service) ValidateAuthAndIdentity(r *http.Request, identity string) error {
	if !s.Config.Server.EnableAuth {
		return nil
	}

	authHeader := r.Header.Get(s.Auth.tokenHeader)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return fmt.Errorf("Invalid authorization header format")
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")

	return s.Auth.ValidateToken(r.Context(), identity, token)
}

func (s *Service) ValidateHeaders(headers map[string][]string) bool {
	for _, required := range s.Config.API.RequiredHeaders {
		value := headers[http.CanonicalHeaderKey(required.Name)]
		if len(value) == 0 || !strings.EqualFold(value[0], required.Value) {
			return false
		}
	}
	return true
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if err := s.Auth.Close(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}
