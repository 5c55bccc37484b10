package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/assetflow/backend/internal/application/services"
	"github.com/assetflow/backend/internal/bootstrap"
	"github.com/assetflow/backend/internal/infrastructure/database"
	"github.com/assetflow/backend/internal/interfaces/middleware"
	"github.com/assetflow/backend/internal/interfaces/rest"
)

func main() {
	// Load .env if present; real deployments set env vars directly
	if err := godotenv.Load(); err == nil {
		log.Println("📁 Loaded environment from .env")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	// Initialize database connection
	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	// Create tables, then seed the directory and demo workflows
	if err := bootstrap.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	if err := bootstrap.InitializeDirectory(db); err != nil {
		log.Fatalf("Failed to initialize directory: %v", err)
	}

	// Initialize service manager
	svcMgr := services.NewServiceManager(db)
	log.Println("🔧 Service manager initialized")

	if err := bootstrap.InitializeWorkflows(svcMgr); err != nil {
		log.Printf("⚠️  Warning: Failed to seed workflows: %v", err)
	}

	// Create Gin router
	router := gin.Default()

	// CORS middleware - Allow credentials from any origin
	router.Use(middleware.Cors())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	// Debug/pprof endpoints for goroutine debugging
	// Goroutine stacks: http://localhost:3001/debug/pprof/goroutine?debug=2
	debug := router.Group("/debug/pprof")
	{
		debug.GET("/", gin.WrapF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/debug/pprof/", http.StatusMovedPermanently)
		})))
		debug.GET("/goroutine", gin.WrapH(http.DefaultServeMux))
		debug.GET("/heap", gin.WrapH(http.DefaultServeMux))
		debug.GET("/profile", gin.WrapH(http.DefaultServeMux))
		debug.GET("/trace", gin.WrapH(http.DefaultServeMux))
	}

	// Initialize handlers
	authHandler := rest.NewAuthHandler(svcMgr.Auth)
	workflowHandler := rest.NewWorkflowHandler(svcMgr.Definitions)
	instanceHandler := rest.NewInstanceHandler(svcMgr.Engine)
	approvalHandler := rest.NewApprovalHandler(svcMgr.Approvals)
	notificationHandler := rest.NewNotificationHandler(svcMgr.Notification)

	// Initialize middleware
	requireAuth := middleware.RequireAuth(svcMgr.Auth)
	requireAdmin := middleware.RequireAdmin()

	// API routes
	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", requireAuth, authHandler.Logout)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		// Workflow definition management (reads open, writes admin-only)
		workflows := api.Group("/workflows")
		workflows.Use(requireAuth)
		{
			workflows.GET("", workflowHandler.List)
			workflows.GET("/check/:objectApiName", workflowHandler.CheckObject)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.GET("/:id/graph", workflowHandler.GetGraph)
			workflows.POST("", requireAdmin, workflowHandler.Create)
			workflows.PATCH("/:id", requireAdmin, workflowHandler.Update)
			workflows.POST("/validate", requireAdmin, workflowHandler.Validate)
			workflows.POST("/:id/activate", requireAdmin, workflowHandler.Activate)
			workflows.POST("/:id/deactivate", requireAdmin, workflowHandler.Deactivate)
		}

		// Workflow instances
		instances := api.Group("/instances")
		instances.Use(requireAuth)
		{
			instances.POST("", instanceHandler.Start)
			instances.GET("/:id", instanceHandler.Get)
			instances.GET("/:id/progress", instanceHandler.GetProgress)
			instances.POST("/:id/cancel", instanceHandler.Cancel)
		}

		// Approval worklist and decisions
		approvals := api.Group("/approvals")
		approvals.Use(requireAuth)
		{
			approvals.GET("/pending", approvalHandler.GetPending)
			approvals.GET("/:taskId", approvalHandler.GetTask)
			approvals.POST("/:taskId/approve", approvalHandler.Approve)
			approvals.POST("/:taskId/reject", approvalHandler.Reject)
			approvals.POST("/:taskId/return", approvalHandler.Return)
		}

		// Notification feed
		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("", notificationHandler.GetNotifications)
			notifications.GET("/summary", notificationHandler.GetSummary)
			notifications.POST("/:id/read", notificationHandler.MarkAsRead)
		}
	}

	// Start background workers
	if err := svcMgr.StartBackgroundWorkers(); err != nil {
		log.Fatalf("Failed to start background workers: %v", err)
	}

	// Start server
	log.Println("\n═══════════════════════════════════════════════════════════════════════════")
	log.Println("🚀 AssetFlow Workflow Backend Started Successfully")
	log.Println("═══════════════════════════════════════════════════════════════════════════")
	log.Printf("\n📍 Server:           http://localhost:%s", port)
	log.Printf("🔐 Auth API:         http://localhost:%s/api/auth", port)
	log.Printf("🗂  Workflow API:     http://localhost:%s/api/workflows", port)
	log.Printf("▶️  Instance API:     http://localhost:%s/api/instances", port)
	log.Printf("✅ Approval API:     http://localhost:%s/api/approvals", port)
	log.Printf("💚 Health check:     http://localhost:%s/health\n", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	svcMgr.StopBackgroundWorkers()
	log.Println("🛑 Background workers stopped")

	// Give in-flight requests 5 seconds to finish
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
