package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.ApiService/controllers"
	"gitlab.com/hydrahome/hyd.control_server/src/production/HYD.ApiService/middleware"
	container "gitlab.com/hydrahome/hyd.control_server/src/production/HYD.Container"
)

func main() {
	// Initialize dependency injection container
	ctr, err := container.NewApiContainer()
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize container: %v", err))
	}
	defer ctr.Shutdown(context.Background())

	logger := ctr.GetLogger().WithService("api")
	logger.Info("Starting HydraHome API Service")

	config := ctr.GetConfig()

	// Initialize database
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := ctr.InitializeDatabase(ctx); err != nil {
		logger.FatalWithError(err, "Failed to initialize database")
	}

	// The bridge runs for the life of the process, not the init deadline
	runCtx, stopRun := context.WithCancel(context.Background())
	defer stopRun()
	if err := ctr.StartBridge(runCtx); err != nil {
		logger.FatalWithError(err, "Failed to start MQTT bridge")
	}

	ingest, err := ctr.GetIngestGateway(ctx)
	if err != nil {
		logger.FatalWithError(err, "Failed to build ingest gateway")
	}
	dispatch, err := ctr.GetDispatchGateway(ctx)
	if err != nil {
		logger.FatalWithError(err, "Failed to build dispatch gateway")
	}

	// Initialize Gin router
	if config.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(ctr.GetLogger()))

	// Configure CORS from config
	corsConfig := cors.Config{
		AllowOrigins:     config.CORS.AllowedOrigins,
		AllowMethods:     config.CORS.AllowedMethods,
		AllowHeaders:     config.CORS.AllowedHeaders,
		ExposeHeaders:    config.CORS.ExposedHeaders,
		AllowCredentials: config.CORS.AllowCredentials,
		MaxAge:           time.Duration(config.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.RequestTimeout(config.Server.RequestTimeout))

	// Create controllers and register routes
	metrics := ctr.GetMetrics()
	controllers.NewIngestController(ingest, ctr.GetLogger(), metrics).RegisterRoutes(router)
	controllers.NewDispatchController(dispatch, ctr.GetLogger(), metrics).RegisterRoutes(router)
	controllers.NewHealthController(ctr, ctr.GetRegistry(), ctr.GetHub()).RegisterRoutes(router)

	port := config.Server.Port

	// Create HTTP server with timeouts
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  config.Server.ReadTimeout,
		WriteTimeout: config.Server.WriteTimeout,
		IdleTimeout:  config.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP server starting on port " + port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalWithError(err, "Failed to start HTTP server")
		}
	}()

	logger.Info("API service running... press Ctrl+C to stop")

	// Wait for shutdown signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithError(err, "Server forced to shutdown")
	}
}
