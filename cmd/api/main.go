package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/culturepass/eligibility-engine/internal/config"
	"github.com/culturepass/eligibility-engine/internal/handlers"
	"github.com/culturepass/eligibility-engine/internal/logging"
	"github.com/culturepass/eligibility-engine/internal/middleware"
	"github.com/culturepass/eligibility-engine/internal/observability"
	"github.com/culturepass/eligibility-engine/internal/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/culturepass/eligibility-engine/docs"
)

// @title           Eligibility Engine API
// @version         1.0
// @description     Identity and eligibility verification service. Records identity and anti-fraud checks in an append-only ledger, interprets third-party identity-check callbacks, and resolves age-window eligibility tiers with phone-number validation support.

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /v1

// @tag.name eligibility
// @tag.description Eligibility resolution and fraud ledger operations

// @tag.name identity
// @tag.description Identity-check callback ingestion

// @tag.name phone
// @tag.description Phone number validation

// @tag.name health
// @tag.description Health check operations

func main() {
	// Initialize logger first
	if err := logging.InitLogger(); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}

	// Load configuration
	if err := config.LoadConfig(); err != nil {
		logging.Logger.Fatal("failed to load config", zap.Error(err))
	}

	// Initialize observability
	observability.InitTracer()
	defer observability.ShutdownTracer()

	// Initialize database connections
	config.InitMongoDB()
	config.InitRedis()

	// Set Gin mode
	if config.AppConfig.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Wire services
	logger := logging.Logger
	ledger := services.NewFraudCheckLedger(logger)
	selector := services.NewRelevantCheckSelector(ledger, logger)
	resolver := services.NewEligibilityResolver(ledger, selector, logger)
	identityService := services.NewIdentityCheckService(ledger, resolver, logger)
	smsSender := services.NewHTTPSMSSender(logger)
	phoneService := services.NewPhoneValidationService(ledger, smsSender, logger)

	identityHandlers := handlers.NewIdentityHandlers(identityService)
	eligibilityHandlers := handlers.NewEligibilityHandlers(resolver, ledger)
	phoneHandlers := handlers.NewPhoneHandlers(phoneService)

	// Create router with middleware
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.RequestTracker(),
		middleware.RequestTiming(),
		cors.Default(),
	)

	// Metrics endpoint
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 routes
	v1 := router.Group("/v1")
	{
		// Health check endpoint
		v1.GET("/health", handlers.HealthCheck)

		v1.GET("/person/:id/eligibility", eligibilityHandlers.GetEligibility)
		v1.GET("/person/:id/fraud-checks", eligibilityHandlers.ListFraudChecks)
		v1.POST("/person/:id/review", eligibilityHandlers.PostReview)

		v1.POST("/person/:id/identity-check/callback", identityHandlers.PostIdentityCallback)

		v1.POST("/person/:id/phone/code", phoneHandlers.RequestPhoneCode)
		v1.POST("/person/:id/phone/validate", phoneHandlers.ValidatePhoneCode)
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Create server with timeouts
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.AppConfig.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logging.Logger.Info("starting server",
			zap.Int("port", config.AppConfig.Port),
			zap.String("environment", config.AppConfig.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	logging.Logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("server exited gracefully")
}
