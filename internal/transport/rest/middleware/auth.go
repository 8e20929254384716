package middleware

import (
	"context"
	"net/http"
	"strings"

	"proctorhub/internal/service"
)

type contextKey string

const (
	SupervisorIDKey contextKey = "supervisorId"
	CandidateIDKey  contextKey = "candidateId"
	ExamIDKey       contextKey = "examId"
)

// AuthMiddleware validates supervisor and candidate JWTs at the REST
// boundary.
type AuthMiddleware struct {
	authSvc *service.AuthService
}

func NewAuthMiddleware(authSvc *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{authSvc: authSvc}
}

// RequireSupervisor validates a supervisor JWT from the Authorization
// header.
func (m *AuthMiddleware) RequireSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.ValidateSupervisorToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, SupervisorIDKey, claims.SupervisorID)
		ctx = context.WithValue(ctx, ExamIDKey, claims.ExamID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireCandidate validates a candidate JWT from the Authorization
// header or, for WebSocket upgrades, the token query param.
func (m *AuthMiddleware) RequireCandidate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if token == "" {
			http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
			return
		}

		claims, err := m.authSvc.ValidateCandidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}

		ctx := r.Context()
		ctx = context.WithValue(ctx, CandidateIDKey, claims.CandidateID)
		ctx = context.WithValue(ctx, ExamIDKey, claims.ExamID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetSupervisorID extracts the supervisor ID from context.
func GetSupervisorID(ctx context.Context) string {
	if v := ctx.Value(SupervisorIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetCandidateID extracts the candidate ID from context.
func GetCandidateID(ctx context.Context) string {
	if v := ctx.Value(CandidateIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// GetExamID extracts the token's exam scope from context.
func GetExamID(ctx context.Context) string {
	if v := ctx.Value(ExamIDKey); v != nil {
		return v.(string)
	}
	return ""
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
