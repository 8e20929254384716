package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"proctorhub/internal/model"
	"proctorhub/internal/service"
	"proctorhub/internal/transport/rest/middleware"
)

// ViolationHandler exposes the ingestion side channel and the review
// read paths.
type ViolationHandler struct {
	violationSvc *service.ViolationService
}

func NewViolationHandler(violationSvc *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violationSvc: violationSvc}
}

// IngestRequest is a violation report from the candidate's detection
// hook.
type IngestRequest struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Snapshot    string `json:"frameSnapshot,omitempty"`
}

// Ingest handles POST /v1/exams/{examId}/violations. Reports arrive
// over plain HTTP so a context without an open room connection can
// still file them.
func (h *ViolationHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	examID := mux.Vars(r)["examId"]
	candidateID := middleware.GetCandidateID(r.Context())
	if middleware.GetExamID(r.Context()) != examID {
		writeError(w, http.StatusForbidden, "token not valid for this exam")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}
	severity, err := model.ParseSeverity(req.Severity)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.violationSvc.LogViolation(r.Context(), examID, candidateID, service.ViolationReport{
		Type:        req.Type,
		Severity:    severity,
		Description: req.Description,
		Snapshot:    req.Snapshot,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"violationCount":  session.ViolationCount,
		"highestSeverity": session.HighestSeverity,
	})
}

// Feed handles GET /v1/exams/{examId}/violations?limit=
func (h *ViolationHandler) Feed(w http.ResponseWriter, r *http.Request) {
	examID := mux.Vars(r)["examId"]
	if middleware.GetExamID(r.Context()) != examID {
		writeError(w, http.StatusForbidden, "token not valid for this exam")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	violations, err := h.violationSvc.Feed(r.Context(), examID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, violations)
}

// History handles GET /v1/exams/{examId}/candidates/{candidateId}/violations
func (h *ViolationHandler) History(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	examID, candidateID := vars["examId"], vars["candidateId"]
	if middleware.GetExamID(r.Context()) != examID {
		writeError(w, http.StatusForbidden, "token not valid for this exam")
		return
	}

	violations, err := h.violationSvc.History(r.Context(), examID, candidateID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, violations)
}
