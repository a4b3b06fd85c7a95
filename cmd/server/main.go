package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jay-Parmar/PokerPlannerBE/auth"
	"github.com/Jay-Parmar/PokerPlannerBE/config"
	"github.com/Jay-Parmar/PokerPlannerBE/db"
	"github.com/Jay-Parmar/PokerPlannerBE/handlers"
	"github.com/Jay-Parmar/PokerPlannerBE/session"
	"github.com/Jay-Parmar/PokerPlannerBE/tracker"
)

func main() {
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	tokens, err := auth.New(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTExpiry, nil)
	if err != nil {
		log.Fatalf("Failed to set up tokens: %v", err)
	}

	var gateway tracker.Gateway = tracker.Disabled{}
	if cfg.JiraURL != "" {
		jiraGateway, err := tracker.NewJira(cfg.JiraURL, cfg.JiraUsername, cfg.JiraToken, cfg.JiraEstimateField)
		if err != nil {
			log.Fatalf("Failed to set up tracker: %v", err)
		}
		gateway = jiraGateway
	} else {
		log.Println("Tracker not configured, estimate pushes will be skipped")
	}

	registry := session.NewRegistry(store, gateway, nil)

	// Set up periodic cleanup for orphaned sessions
	go func() {
		ticker := time.NewTicker(cfg.ReapInterval)
		defer ticker.Stop()

		for range ticker.C {
			if count := registry.Reap(); count > 0 {
				log.Printf("Reaped %d orphaned sessions", count)
			}
		}
	}()

	userHandler := handlers.NewUserHandler(store, tokens)
	boardHandler := handlers.NewBoardHandler(store, gateway)
	sessionHandler := handlers.NewSessionHandler(store, registry)

	// Create a new Gin router
	router := gin.Default()

	// Public routes
	router.POST("/api/users", userHandler.Register)
	router.POST("/api/login", userHandler.Login)

	// Authenticated API routes
	api := router.Group("/api", handlers.AuthRequired(tokens))
	{
		api.POST("/boards", boardHandler.CreateBoard)
		api.GET("/boards", boardHandler.ListBoards)

		boards := api.Group("/boards/:id")
		{
			boards.GET("", boardHandler.GetBoard)
			boards.POST("/members", boardHandler.AddMember)
			boards.GET("/members", boardHandler.ListMembers)
			boards.DELETE("/members/:userId", boardHandler.RemoveMember)
		}

		api.POST("/tickets/:ticketId/comments", boardHandler.CommentTicket)

		// WebSocket endpoint for live voting sessions
		api.GET("/sessions/:id", sessionHandler.Connect)
	}

	// Start the server
	log.Printf("Starting server on %s", cfg.Addr)
	if err := router.Run(cfg.Addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
