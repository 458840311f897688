// @title           Zarta Backend API
// @version         1.0.0
// @description     Backend API for AI-generated fashion photography. Turns a garment photo and a style-reference photo into a styled product image, with accounts, fractional credits and Stripe billing.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"log"
	"net/http"
	"net/url"

	"zarta-backend/docs"
	"zarta-backend/internal/billing"
	"zarta-backend/internal/config"
	"zarta-backend/internal/database"
	"zarta-backend/internal/fal"
	"zarta-backend/internal/gemini"
	"zarta-backend/internal/handlers"
	"zarta-backend/internal/middleware"
	"zarta-backend/internal/services"
	"zarta-backend/internal/supabase"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(cfg.BaseURL)
		if err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required: set it to your Supabase PostgreSQL connection string")
	}

	// Run migrations before taking traffic
	migrator, err := database.NewMigrator(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize migrator: %v", err)
	}
	if err := migrator.Run(); err != nil {
		migrator.Close()
		log.Fatalf("Migration failed: %v", err)
	}
	migrator.Close()
	log.Println("Migrations completed successfully")

	// Initialize Supabase clients
	supabaseClient, err := supabase.NewClient(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize Supabase client: %v", err)
	}

	storageClient, err := supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize storage client: %v", err)
	}

	dbClient, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database client: %v", err)
	}
	defer dbClient.Close()

	// AI providers; both degrade gracefully when unconfigured
	geminiClient := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel)
	falClient := fal.NewClient(cfg.FalBaseURL, cfg.FalModel, cfg.FalAPIKey)
	if cfg.FalAPIKey == "" {
		log.Println("Warning: FAL_API_KEY not set; generation requests will fail at submission")
	}

	// Billing
	billingClient := billing.NewClient(cfg)
	billingBridge := billing.NewBridge(billingClient, dbClient)
	if !billingClient.Configured() {
		log.Println("Warning: STRIPE_SECRET_KEY not set; billing endpoints are disabled")
	}

	generationService := services.NewGenerationService(dbClient, dbClient, geminiClient, falClient, storageClient)

	// Initialize handlers
	generateHandler := handlers.NewGenerateHandler(generationService)
	editHandler := handlers.NewEditHandler(generationService)
	projectsHandler := handlers.NewProjectsHandler(dbClient, storageClient)
	usersHandler := handlers.NewUsersHandler(dbClient, supabaseClient, storageClient)
	billingHandler := handlers.NewBillingHandler(dbClient, billingClient, billingBridge, cfg)
	webhookHandler := handlers.NewWebhookHandler(billingClient, billingBridge)

	// Setup router
	router := gin.Default()

	// Middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check (no auth)
	router.GET("/health", handlers.HealthHandler)

	// Account bootstrap (no auth; validated against Supabase auth admin)
	router.POST("/api/v1/create-user", usersHandler.CreateUser)

	// Stripe webhook (no auth, signature verified)
	router.POST("/api/v1/stripe/webhook", webhookHandler.HandleStripeWebhook)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))

	// Generation pipeline
	api.POST("/generate", generateHandler.Generate)
	api.POST("/generate/status", generateHandler.Status)
	api.POST("/edit", editHandler.Edit)

	// Projects
	api.GET("/projects", projectsHandler.ListProjects)
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.POST("/projects/:project_id/download", projectsHandler.Download)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)

	// Users
	api.POST("/users/update", usersHandler.UpdateUser)
	api.DELETE("/account", usersHandler.DeleteAccount)

	// Billing
	api.POST("/stripe/create-checkout-session", billingHandler.CreateCheckoutSession)
	api.POST("/stripe/create-portal-session", billingHandler.CreatePortalSession)
	api.GET("/stripe/customer", billingHandler.GetCustomer)
	api.POST("/stripe/sync-subscription", billingHandler.SyncSubscription)

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
