package handlers

import (
	"bytes"
	"io"
	"strconv"
	"time"

	"encoding/json"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/omtenta/internal/app"
	"github.com/shrimpsizemoose/omtenta/internal/metrics"
	"github.com/shrimpsizemoose/omtenta/internal/models"
)

type AttemptHandler struct {
	service *app.Service
}

func NewAttemptHandler(service *app.Service) *AttemptHandler {
	return &AttemptHandler{
		service: service,
	}
}

// HandleRecordAttempt appends a fresh graded attempt to the student's
// history. Recorder capability is enforced by the engine.
func (h *AttemptHandler) HandleRecordAttempt(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() {
		duration := time.Since(start).Seconds()
		metrics.APIRequestDuration.WithLabelValues(
			r.URL.Path,
			r.Method,
			"200",
		).Observe(duration)
	}()
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	student := r.PathValue("student")
	if student == "" {
		logger.Error.Printf("Failed to extract student from path: %s", r.URL.Path)
		http.Error(w, "Invalid student", http.StatusBadRequest)
		return
	}

	actor, ok := requireIdentity(h.service, w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error.Printf("Failed to read request body: %v", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	logger.Debug.Printf("Received request body: %s", string(body))

	r.Body = io.NopCloser(bytes.NewBuffer(body))

	var submission models.AttemptSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := submission.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	index, attempt, err := h.service.Engine.RecordAttempt(
		actor,
		student,
		submission.TestScore,
		submission.ExamScore,
		submission.Note,
	)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"attempt_index": index,
		"final_grade":   attempt.FinalGrade,
	}); err != nil {
		logger.Error.Printf("Failed to encode attempt response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *AttemptHandler) HandleListAttempts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	student := r.PathValue("student")
	if student == "" {
		logger.Error.Printf("Failed to extract student from path: %s", r.URL.Path)
		http.Error(w, "Invalid student", http.StatusBadRequest)
		return
	}

	attempts := h.service.Engine.Attempts(student)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"rows": attempts,
	}); err != nil {
		logger.Error.Printf("Failed to encode attempts: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *AttemptHandler) HandleGetAttempt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	student := r.PathValue("student")
	if student == "" {
		logger.Error.Printf("Failed to extract student from path: %s", r.URL.Path)
		http.Error(w, "Invalid student", http.StatusBadRequest)
		return
	}

	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		http.Error(w, "Invalid attempt index", http.StatusBadRequest)
		return
	}

	attempt, err := h.service.Engine.Attempt(student, index)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"attempt_index": index,
		"attempt":       attempt,
	}); err != nil {
		logger.Error.Printf("Failed to encode attempt: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
