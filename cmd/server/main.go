package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"proctorhub/internal/cache"
	"proctorhub/internal/repository"
	"proctorhub/internal/service"
	"proctorhub/internal/transport/rest"
	"proctorhub/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}

	// MongoDB connection
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
		log.Println("Warning: MONGO_URI not set, using default")
	}

	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "proctorhub"
	}
	db := mongoClient.Database(dbName)

	// Redis connection
	redisAddr := os.Getenv("REDIS_URI")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
		log.Println("Warning: REDIS_URI not set, using default")
	}
	if len(redisAddr) > 8 && redisAddr[:8] == "redis://" {
		redisAddr = redisAddr[8:]
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// WebSocket hub
	wsHub := ws.NewHub()
	log.Println("WebSocket hub started")

	// Repositories
	sessionRepo := repository.NewSessionRepo(db)
	violationRepo := repository.NewViolationRepo(db)

	// Caches
	sessionCache := cache.NewSessionCache(rdb)
	feedCache := cache.NewFeedCache(rdb)

	// Services
	authSvc := service.NewAuthService()
	sessionSvc := service.NewSessionService(sessionRepo, sessionCache)
	violationSvc := service.NewViolationService(violationRepo, sessionRepo, sessionCache, feedCache)

	// Inject broadcaster (wsHub implements service.Broadcaster)
	sessionSvc.SetBroadcaster(wsHub)
	violationSvc.SetBroadcaster(wsHub)

	container := &rest.Container{
		AuthService:      authSvc,
		SessionService:   sessionSvc,
		ViolationService: violationSvc,
		WSHub:            wsHub,
	}

	router := rest.NewRouter(container)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/token")
		log.Println("  POST /v1/exams/{examId}/violations")
		log.Println("  GET  /v1/exams/{examId}/sessions")
		log.Println("  GET  /v1/exams/{examId}/violations")
		log.Println("  GET  /v1/exams/{examId}/candidates/{candidateId}/violations")
		log.Println("  POST /v1/exams/{examId}/candidates/{candidateId}/extend-time")
		log.Println("  POST /v1/exams/{examId}/candidates/{candidateId}/terminate")
		log.Println("  WS   /v1/ws/exams/{examId}/supervisor")
		log.Println("  WS   /v1/ws/exams/{examId}/candidate")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
