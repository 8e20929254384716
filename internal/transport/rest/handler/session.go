package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"proctorhub/internal/service"
	"proctorhub/internal/transport/rest/middleware"
)

// SessionHandler exposes the session registry read path and the
// operator actions that must work without an open room connection.
type SessionHandler struct {
	sessionSvc *service.SessionService
}

func NewSessionHandler(sessionSvc *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionSvc: sessionSvc}
}

// List handles GET /v1/exams/{examId}/sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	examID := mux.Vars(r)["examId"]
	if middleware.GetExamID(r.Context()) != examID {
		writeError(w, http.StatusForbidden, "token not valid for this exam")
		return
	}

	sessions, err := h.sessionSvc.ListSessions(r.Context(), examID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// ExtendTimeRequest is the request body for a time grant.
type ExtendTimeRequest struct {
	Minutes int `json:"minutes"`
}

// ExtendTime handles POST /v1/exams/{examId}/candidates/{candidateId}/extend-time
func (h *SessionHandler) ExtendTime(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	examID, candidateID := vars["examId"], vars["candidateId"]
	if middleware.GetExamID(r.Context()) != examID {
		writeError(w, http.StatusForbidden, "token not valid for this exam")
		return
	}

	var req ExtendTimeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "minutes must be positive")
		return
	}

	session, err := h.sessionSvc.GrantExtraTime(r.Context(), examID, candidateID, req.Minutes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// TerminateRequest is the request body for a termination.
type TerminateRequest struct {
	Reason string `json:"reason"`
}

// Terminate handles POST /v1/exams/{examId}/candidates/{candidateId}/terminate
func (h *SessionHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	examID, candidateID := vars["examId"], vars["candidateId"]
	if middleware.GetExamID(r.Context()) != examID {
		writeError(w, http.StatusForbidden, "token not valid for this exam")
		return
	}

	var req TerminateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Reason = ""
	}

	session, err := h.sessionSvc.Terminate(r.Context(), examID, candidateID, req.Reason)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, session)
}
