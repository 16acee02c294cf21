package main

import (
	"net/http"

	"wb-parser/internal/api"
	"wb-parser/internal/config"
	"wb-parser/internal/database"
	"wb-parser/internal/services/wildberries"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found")
	}

	// Initialize configuration
	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
		log.SetFormatter(&log.JSONFormatter{})
	}

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}

	// Initialize the Wildberries search client
	wbService := wildberries.NewService(cfg)

	// Initialize Gin router
	r := gin.Default()

	// CORS middleware: the frontend is served from a different origin
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, X-CSRFToken")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// API routes
	apiGroup := r.Group("/api")
	api.SetupRoutes(apiGroup, db, wbService)

	log.WithField("port", cfg.Port).Info("Server starting")
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
