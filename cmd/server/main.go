package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/app"
	"github.com/shrimpsizemoose/omtenta/internal/handlers"
)

func main() {
	service, err := app.NewService("config.toml")
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	if err := service.Store.ApplyMigrations(service.Config.Database.MigrationsDir); err != nil {
		logger.Error.Fatalf("Failed to apply migrations: %v", err)
	}

	if err := service.Restore(); err != nil {
		logger.Error.Fatalf("Failed to replay journal: %v", err)
	}

	attemptHandler := handlers.NewAttemptHandler(service)
	resitHandler := handlers.NewResitHandler(service)
	adminHandler := handlers.NewAdminHandler(service)

	http.HandleFunc("POST /api/v1/students/{student}/attempts", attemptHandler.HandleRecordAttempt)
	http.HandleFunc("GET /api/v1/students/{student}/attempts", attemptHandler.HandleListAttempts)
	http.HandleFunc("GET /api/v1/students/{student}/attempts/{index}", attemptHandler.HandleGetAttempt)

	http.HandleFunc("POST /api/v1/students/{student}/resits", resitHandler.HandleRequestResit)
	http.HandleFunc("GET /api/v1/students/{student}/resits", resitHandler.HandleListStudentResits)
	http.HandleFunc("GET /api/v1/students/{student}/journal", resitHandler.HandleStudentJournal)
	http.HandleFunc("POST /api/v1/resits/{id}/approve", resitHandler.HandleApproveResit)
	http.HandleFunc("POST /api/v1/resits/{id}/result", resitHandler.HandleSubmitResult)
	http.HandleFunc("GET /api/v1/resits/{id}", resitHandler.HandleResitDetails)

	http.HandleFunc("POST /api/v1/admin/quorum", adminHandler.HandleSetQuorum)
	http.HandleFunc("POST /api/v1/admin/teachers", adminHandler.HandleAddTeacher)
	http.HandleFunc("POST /api/v1/admin/approvers", adminHandler.HandleAddApprover)
	http.HandleFunc("POST /api/v1/admin/tokens", adminHandler.HandleIssueToken)

	http.Handle("/metrics", promhttp.Handler())

	logger.Info.Printf("Starting omtenta server on %s", service.Config.Server.Port)
	logger.Info.Printf("Authority identity: %s, quorum: %d", service.Config.Roles.Authority, service.Engine.MinApprovals())
	logger.Debug.Println("Requiring headers:")
	for _, h := range service.Config.API.RequiredHeaders {
		logger.Debug.Printf("  %s: %s", h.Name, h.Value)
	}
	if err := http.ListenAndServe(service.Config.Server.Port, nil); err != nil {
		logger.Error.Fatalf("Omtenta server failed: %v", err)
	}
}
