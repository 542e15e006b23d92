// File: servly/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"servly/config"
	"servly/cron"
	"servly/database"
	assignmentRepoPkg "servly/database/repository/assignment"
	bookingRepoPkg "servly/database/repository/booking"
	contactRepoPkg "servly/database/repository/contact"
	incidentRepoPkg "servly/database/repository/incident"
	"servly/handlers"
	"servly/middleware"
	"servly/routes"
	"servly/services/dispatch"
	"servly/services/incident"
	"servly/services/notification"
	"servly/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.FirebaseInit()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	bookingRepo := bookingRepoPkg.NewMongoBookingRepo()
	assignmentRepo := assignmentRepoPkg.NewMongoAssignmentRepo()
	incidentRepo := incidentRepoPkg.NewMongoIncidentRepo()
	contactRepo := contactRepoPkg.NewMongoContactRepo()

	// notification queue.
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer asynqClient.Close()
	notifier, err := notification.NewAsynqNotifier(asynqClient, logger)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize notifier: %v", err)
	}

	// candidate source: matching service behind a per-round Redis cache.
	candidates := &dispatch.CachedCandidateSource{
		Inner:  dispatch.NewHTTPCandidateSource(config.AppConfig.MatchingURL),
		Cache:  utils.GetCacheClient(),
		TTL:    time.Duration(config.AppConfig.CandidateCacheTTLMin) * time.Minute,
		Logger: logger,
	}

	// escalation controller and deadline scheduler reference each other, so
	// the scheduler is bound after construction.
	deadlines := dispatch.NewDeadlineScheduler(assignmentRepo, bookingRepo, logger)
	dispatchService := dispatch.NewDispatchService(
		bookingRepo,
		assignmentRepo,
		candidates,
		deadlines,
		notifier,
		dispatch.Policy{
			StandardWindow:   config.AppConfig.ResponseWindow(false),
			UrgentWindow:     config.AppConfig.ResponseWindow(true),
			UrgencyThreshold: config.AppConfig.UrgencyThreshold(),
		},
		logger,
	)
	deadlines.Bind(dispatchService.RecordTimeout, dispatchService.RequestAssignment)

	incidentService := &incident.DefaultIncidentService{
		Repo:     incidentRepo,
		Dispatch: dispatchService,
		Notifier: notifier,
		Logger:   logger,
	}

	dispatchHandler := handlers.NewDispatchHandler(dispatchService, logger)
	incidentHandler := handlers.NewIncidentHandler(incidentService, logger)
	contactHandler := handlers.NewContactHandler(contactRepo, logger)

	// Register routes.
	routes.RegisterRoutes(router, dispatchHandler, incidentHandler)
	routes.RegisterContactRoutes(router, contactHandler)

	// Recovery sweep on startup, then periodic reconciliation.
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	go deadlines.Run(sweepCtx, time.Duration(config.AppConfig.SweepIntervalMin)*time.Minute)

	// Notification dispatch worker.
	cron.InitDispatchWorker(contactRepo)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	cancelSweep()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
