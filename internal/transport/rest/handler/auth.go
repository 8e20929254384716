package handler

import (
	"encoding/json"
	"net/http"

	"proctorhub/internal/service"
)

// AuthHandler mints tokens for server-to-server and operator use. The
// upstream platform is expected to authenticate callers before this
// endpoint; in development it is gated by an API key.
type AuthHandler struct {
	authSvc *service.AuthService
	apiKey  string
}

func NewAuthHandler(authSvc *service.AuthService, apiKey string) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, apiKey: apiKey}
}

// TokenRequest is the request body for minting a token.
type TokenRequest struct {
	Role           string `json:"role"`
	SubjectID      string `json:"subjectId"`
	ExamID         string `json:"examId"`
	OrganizationID string `json:"organizationId"`
	Name           string `json:"candidateName,omitempty"`
	Email          string `json:"candidateEmail,omitempty"`
}

// Token handles POST /v1/auth/token
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	if h.apiKey != "" && r.Header.Get("X-Api-Key") != h.apiKey {
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	}

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.SubjectID == "" || req.ExamID == "" {
		writeError(w, http.StatusBadRequest, "subjectId and examId are required")
		return
	}

	var token string
	var err error
	switch req.Role {
	case service.RoleSupervisor:
		token, err = h.authSvc.GenerateSupervisorToken(req.SubjectID, req.ExamID, req.OrganizationID)
	case service.RoleCandidate:
		token, err = h.authSvc.GenerateCandidateToken(req.SubjectID, req.ExamID, req.OrganizationID, req.Name, req.Email)
	default:
		writeError(w, http.StatusBadRequest, "role must be supervisor or candidate")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
