package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"proctorhub/internal/service"
	"proctorhub/internal/transport/rest/handler"
	"proctorhub/internal/transport/rest/middleware"
	"proctorhub/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	AuthService      *service.AuthService
	SessionService   *service.SessionService
	ViolationService *service.ViolationService
	WSHub            *ws.Hub
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	authHandler := handler.NewAuthHandler(c.AuthService, os.Getenv("TOKEN_API_KEY"))
	sessionHandler := handler.NewSessionHandler(c.SessionService)
	violationHandler := handler.NewViolationHandler(c.ViolationService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.SessionService, c.ViolationService)

	authMW := middleware.NewAuthMiddleware(c.AuthService)

	r.Use(corsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Token mint for server-to-server and operator use
	v1.HandleFunc("/auth/token", authHandler.Token).Methods("POST", "OPTIONS")

	// WebSocket routes (token in query param)
	v1.HandleFunc("/ws/exams/{examId}/supervisor", wsHandler.SupervisorWS).Methods("GET")
	v1.HandleFunc("/ws/exams/{examId}/candidate", wsHandler.CandidateWS).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Candidate routes: the violation ingestion side channel
	candidateRoutes := v1.NewRoute().Subrouter()
	candidateRoutes.Use(authMW.RequireCandidate)
	candidateRoutes.HandleFunc("/exams/{examId}/violations", violationHandler.Ingest).Methods("POST", "OPTIONS")

	// Supervisor routes: registry reads and operator actions
	supervisorRoutes := v1.NewRoute().Subrouter()
	supervisorRoutes.Use(authMW.RequireSupervisor)
	supervisorRoutes.HandleFunc("/exams/{examId}/sessions", sessionHandler.List).Methods("GET", "OPTIONS")
	supervisorRoutes.HandleFunc("/exams/{examId}/violations", violationHandler.Feed).Methods("GET", "OPTIONS")
	supervisorRoutes.HandleFunc("/exams/{examId}/candidates/{candidateId}/violations", violationHandler.History).Methods("GET", "OPTIONS")
	supervisorRoutes.HandleFunc("/exams/{examId}/candidates/{candidateId}/extend-time", sessionHandler.ExtendTime).Methods("POST", "OPTIONS")
	supervisorRoutes.HandleFunc("/exams/{examId}/candidates/{candidateId}/terminate", sessionHandler.Terminate).Methods("POST", "OPTIONS")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Api-Key")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
