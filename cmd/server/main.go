package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"routinely/internal/config"
	"routinely/internal/database"
	"routinely/internal/handlers"
	"routinely/internal/repository"
	"routinely/internal/security"
	"routinely/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize database with config (supports sqlite, postgres, mysql)
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	childRepo := repository.NewChildRepository(db)
	pointsRepo := repository.NewPointsRepository(db)
	habitRepo := repository.NewHabitRepository(db)
	routineRepo := repository.NewRoutineRepository(db)
	rewardRepo := repository.NewRewardRepository(db)
	behaviorRepo := repository.NewBehaviorRepository(db)
	accessRepo := repository.NewAccessRepository(db)

	// Claim notifications are optional
	emailService, err := service.NewEmailService(ctx, cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Printf("Warning: Failed to initialize email service: %v", err)
	}
	var notifier service.ClaimNotifier
	if emailService != nil && emailService.IsEnabled() {
		notifier = emailService
		log.Println("Reward claim e-mails enabled")
	}

	// Initialize services
	authz := service.NewAuthorizer(childRepo, accessRepo)
	ledger := service.NewLedgerService(db, childRepo, pointsRepo, authz, cfg.HistoryMaxLimit)
	balances := service.NewBalanceService(db, childRepo, pointsRepo)
	routines := service.NewRoutineService(routineRepo, habitRepo, authz, cfg.Location())
	habits := service.NewHabitService(db, habitRepo, routineRepo, childRepo, ledger, routines, authz)
	rewards := service.NewRewardService(db, rewardRepo, childRepo, userRepo, ledger, authz, notifier)
	behaviors := service.NewBehaviorService(db, behaviorRepo, ledger, authz)
	access := service.NewAccessService(db, accessRepo, userRepo, authz, cfg.AccessCodeTTL)

	// Report ledger drift at startup without touching balances
	if reports, err := balances.ReconcileAll(ctx, false); err != nil {
		log.Printf("Warning: Failed to check balances: %v", err)
	} else {
		for _, report := range reports {
			if !report.InSync() {
				log.Printf("Warning: child %s balance drifted by %d; run `ledger repair`", report.ChildID, report.Drift)
			}
		}
	}

	// Initialize handlers
	limiter := security.NewRateLimiter(cfg.RateLimit, cfg.RateLimitWindow)
	middleware := handlers.NewMiddleware(security.NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer), limiter)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux, handlers.Handlers{
		Middleware: middleware,
		Points:     handlers.NewPointsHandler(ledger, balances, authz),
		Habits:     handlers.NewHabitHandler(habits, routines),
		Rewards:    handlers.NewRewardHandler(rewards, behaviors),
		Access:     handlers.NewAccessHandler(access),
		DB:         db,
	})

	// Wrap with CORS and logging middleware
	var handler http.Handler = mux
	if len(cfg.CORSAllowedOrigins) > 0 {
		handler = handlers.CORS(cfg.CORSAllowedOrigins, cfg.Debug)(handler)
	}
	handler = handlers.Logging(handler)

	// Start server
	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
	limiter.Stop()
}
