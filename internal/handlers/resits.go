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

type ResitHandler struct {
	service *app.Service
}

func NewResitHandler(service *app.Service) *ResitHandler {
	return &ResitHandler{
		service: service,
	}
}

// HandleRequestResit opens a resit workflow for the student. Any
// authenticated identity may file one; the approval quorum is the gate.
func (h *ResitHandler) HandleRequestResit(w http.ResponseWriter, r *http.Request) {
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

	requester, ok := requireIdentity(h.service, w, r)
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

	var submission models.ResitSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := submission.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resitID, err := h.service.Engine.RequestResit(requester, student, submission.Reason)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"resit_id": resitID,
	}); err != nil {
		logger.Error.Printf("Failed to encode resit response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *ResitHandler) HandleListStudentResits(w http.ResponseWriter, r *http.Request) {
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

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"resit_ids":       h.service.Engine.ResitsByStudent(student),
		"latest_resit_id": h.service.Engine.LatestResitID(student),
	}); err != nil {
		logger.Error.Printf("Failed to encode resit list: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HandleStudentJournal serves the student's audit trail straight from the
// persisted journal, in seq order.
func (h *ResitHandler) HandleStudentJournal(w http.ResponseWriter, r *http.Request) {
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

	includeHumanDttm := r.URL.Query().Get("human_dttm") == "true"

	rows, err := h.service.StudentJournal(student, includeHumanDttm)
	if err != nil {
		logger.Error.Printf("Failed to fetch journal for %s: %v", student, err)
		http.Error(w, "Failed to fetch journal", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"rows": rows,
	}); err != nil {
		logger.Error.Printf("Failed to encode journal: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *ResitHandler) HandleApproveResit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusForbidden)
		return
	}

	approver, ok := requireIdentity(h.service, w, r)
	if !ok {
		return
	}

	resitID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid resit id", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Engine.ApproveResit(approver, resitID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"resit": snapshot,
		"state": snapshot.State(),
	}); err != nil {
		logger.Error.Printf("Failed to encode approval response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HandleSubmitResult grades a resolved resit. The new attempt lands in the
// same history as regular ones.
func (h *ResitHandler) HandleSubmitResult(w http.ResponseWriter, r *http.Request) {
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

	actor, ok := requireIdentity(h.service, w, r)
	if !ok {
		return
	}

	resitID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid resit id", http.StatusBadRequest)
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

	index, attempt, err := h.service.Engine.SubmitResitResult(
		actor,
		resitID,
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
		logger.Error.Printf("Failed to encode result response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

func (h *ResitHandler) HandleResitDetails(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !h.service.ValidateHeaders(r.Header) {
		http.Error(w, "these are not the droids you are looking for", http.StatusNotFound)
		return
	}

	resitID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid resit id", http.StatusBadRequest)
		return
	}

	snapshot, err := h.service.Engine.ResitDetails(resitID)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"resit": snapshot,
		"state": snapshot.State(),
	}); err != nil {
		logger.Error.Printf("Failed to encode resit details: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
