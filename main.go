package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"speaking-service/internal/backend"
	"speaking-service/internal/db"
	"speaking-service/internal/event"
	"speaking-service/internal/handlers"
	"speaking-service/internal/lifecycle"
	"speaking-service/internal/recorder"
	"speaking-service/internal/repository"
	"speaking-service/internal/service"
	"speaking-service/internal/storage"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system env")
	}

	analysisURL := os.Getenv("ANALYSIS_API_URL")
	if analysisURL == "" {
		log.Fatal("ANALYSIS_API_URL is required")
	}
	submissionURL := os.Getenv("SUBMISSION_API_URL")
	if submissionURL == "" {
		submissionURL = analysisURL
	}

	// RabbitMQ event publisher
	rabbitURL := os.Getenv("RABBITMQ_URI")
	eventExchange := os.Getenv("RABBITMQ_EXCHANGE")
	var eventPublisher service.EventPublisher
	if rabbitURL != "" && eventExchange != "" {
		publisher, err := event.NewPublisher(rabbitURL, eventExchange)
		if err != nil {
			log.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer publisher.Close()
		eventPublisher = publisher
	} else {
		log.Println("RabbitMQ not configured, session events will not be published")
	}

	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		log.Fatal("MONGO_URI is required")
	}
	db.InitMongo(mongoURI)
	database := db.Client.Database("speaking_service")
	questionRepo := repository.NewQuestionRepository(database)

	// Session state goes to Mongo unless a local store file is configured.
	var snapshots service.SnapshotStore = repository.NewSnapshotRepository(database)
	var attempts service.AttemptStore = repository.NewAttemptRepository(database)
	if storeFile := os.Getenv("STORE_FILE"); storeFile != "" {
		store, err := storage.NewFileStore(storeFile)
		if err != nil {
			log.Fatalf("Failed to open store file: %v", err)
		}
		snapshots = store
		attempts = store
		log.Printf("Session state stored locally in %s", storeFile)
	}

	capture := recorder.NewRelayCapture()
	sessionService := service.NewSessionService(
		lifecycle.NewManager(nil),
		recorder.NewManager(capture),
		backend.NewAnalysisClient(analysisURL),
		backend.NewSubmissionClient(submissionURL),
		snapshots,
		attempts,
		questionRepo,
		eventPublisher,
	)
	sessionHandler := handlers.NewSessionHandler(sessionService, capture)
	questionHandler := handlers.NewQuestionHandler(service.NewQuestionService(questionRepo))

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With", "X-Student-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Public routes - Questions
	publicQuestion := r.Group("/public/speaking/question")
	{
		publicQuestion.GET("/", questionHandler.ListQuestions)
		publicQuestion.GET("/:id", questionHandler.GetQuestion)
	}

	protectedQuestion := r.Group("/protected/speaking/question")
	protectedQuestion.Use(requireStudentID())
	{
		protectedQuestion.POST("/", questionHandler.CreateQuestion)
	}

	setupSessionRoutes(r, sessionHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "6677"
	}
	r.Run(":" + port)
}

func setupSessionRoutes(r *gin.Engine, sessionHandler *handlers.SessionHandler) {
	protectedSession := r.Group("/protected/speaking/session")
	protectedSession.Use(requireStudentID())
	{
		// === CORE SESSION MANAGEMENT ===
		protectedSession.POST("/", sessionHandler.OpenSession)
		protectedSession.GET("/:id", sessionHandler.GetSession)
		protectedSession.GET("/:id/status", sessionHandler.GetSessionStatus)

		// === ATTEMPT LIFECYCLE ===
		protectedSession.POST("/:id/record", sessionHandler.StartRecording)
		protectedSession.POST("/:id/stop", sessionHandler.StopRecording)
		protectedSession.POST("/:id/retry", sessionHandler.Retry)
		protectedSession.POST("/:id/rerecord", sessionHandler.ReRecord)
		protectedSession.POST("/:id/resend", sessionHandler.Resend)
		protectedSession.POST("/:id/dismiss", sessionHandler.DismissError)
		protectedSession.POST("/:id/advance", sessionHandler.Advance)

		// === SESSION CONTROL ===
		protectedSession.POST("/:id/suspend", sessionHandler.Suspend)
		protectedSession.POST("/:id/complete", sessionHandler.Complete)

		// === HISTORY ===
		protectedSession.GET("/:id/attempts", sessionHandler.AttemptHistory)
	}

	publicSession := r.Group("/public/speaking/session")
	{
		// status only: no question content or feedback detail
		publicSession.GET("/:id/status", sessionHandler.GetSessionStatus)
	}
}

func requireStudentID() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("X-Student-ID") == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required",
				"code":  "MISSING_STUDENT_ID",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
