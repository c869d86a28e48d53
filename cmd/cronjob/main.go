package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"iotkit-lending-backend/internal/bootstrap"
	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/jobs"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/scheduler"
	"iotkit-lending-backend/internal/service"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	runOnce := flag.String("run-once", "", "Run a specific job once and exit (e.g., 'refund-deposits', 'all')")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting IoT Kit Lending Cronjob Runner...", "log_level", cfg.Log.Level)

	ctx := context.Background()

	// Initialize Database
	db, store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize Services
	notificationService := service.NewNotificationService(
		store.NotificationRepository,
		store.AccountRepository,
		bootstrap.Channels(ctx, cfg)...,
	)
	walletService := service.NewWalletService(store.WalletRepository, store.PenaltyRepository, store.BorrowingRequestRepository)

	// Initialize Job Runner
	jobRunner := jobs.NewJobRunner(jobs.Deps{
		Wallets:       store.WalletRepository,
		Fines:         store.FineRepository,
		Accounts:      store.AccountRepository,
		Wallet:        walletService,
		Notifications: notificationService,
	}, cfg)

	// Check if running a single job
	if *runOnce != "" {
		logger.Info("Running job once", "job", *runOnce)
		if !runJobOnce(jobRunner, *runOnce) {
			db.Close()
			os.Exit(1)
		}
		logger.Info("Job execution completed", "job", *runOnce)
		return
	}

	// Initialize Scheduler
	cronScheduler, err := scheduler.NewScheduler(jobRunner)
	if err != nil {
		log.Fatalf("Failed to schedule jobs: %v", err)
	}

	// Start scheduler
	cronScheduler.Start()
	logger.Info("Cronjob scheduler is running. Press Ctrl+C to stop.")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	// Graceful shutdown
	logger.Info("Shutting down cronjob scheduler...")
	cronScheduler.Stop()
	logger.Info("Cronjob scheduler stopped. Goodbye!")
}

// runJobOnce runs a specific job once and reports whether the name was known
func runJobOnce(jobRunner *jobs.JobRunner, jobName string) bool {
	switch jobName {
	case "refund-deposits":
		jobRunner.RefundReturnedDeposits()
	case "mark-overdue-fines":
		jobRunner.MarkOverdueFines()
	case "send-fine-reminders":
		jobRunner.SendFineDueReminders()
	case "all":
		jobRunner.RunAll()
	default:
		logger.Error("Unknown job name", "job", jobName)
		fmt.Printf("Available jobs:\n")
		fmt.Printf("  - refund-deposits\n")
		fmt.Printf("  - mark-overdue-fines\n")
		fmt.Printf("  - send-fine-reminders\n")
		fmt.Printf("  - all\n")
		return false
	}
	return true
}
