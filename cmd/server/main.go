package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apigrpc "iotkit-lending-backend/internal/api/grpc"
	httpapi "iotkit-lending-backend/internal/api/http"
	"iotkit-lending-backend/internal/bootstrap"
	"iotkit-lending-backend/internal/cache"
	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/imaging"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/realtime"
	"iotkit-lending-backend/internal/security"
	"iotkit-lending-backend/internal/service"
	"iotkit-lending-backend/internal/storage"
)

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "config/config.dev.yaml", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger.Initialize(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting IoT Kit Lending Admin Backend...", "log_level", cfg.Log.Level, "log_format", cfg.Log.Format)
	logger.Info("Server configuration", "http", cfg.GetHTTPAddress(), "grpc", cfg.GetGRPCAddress())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped. Goodbye!")
}

func run(ctx context.Context, cfg *config.Config) error {
	// Initialize Database
	db, store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// Realtime hub for admin consoles and student sessions
	hub := realtime.NewHub()
	go hub.Run(ctx)

	queues := service.NewRequestQueues(hub)
	if err := queues.Load(ctx, store.BorrowingRequestRepository); err != nil {
		return fmt.Errorf("failed to load request queues: %w", err)
	}

	// Inspection leases are shared through redis when several admin API
	// instances run, otherwise they are process-local.
	var lock service.InspectionLock = service.NewLocalInspectionLock()
	var redisClient *cache.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisConnection(cache.InfoFromConfig(cfg.Redis))
		if err != nil {
			return err
		}
		defer cache.Close(redisClient)
		lock = cache.NewRedisInspectionLock(redisClient, cfg.Redis.Prefix)
	}

	// Initialize Services
	notificationService := service.NewNotificationService(
		store.NotificationRepository,
		store.AccountRepository,
		bootstrap.Channels(ctx, cfg, hub)...,
	)
	walletService := service.NewWalletService(store.WalletRepository, store.PenaltyRepository, store.BorrowingRequestRepository)
	approvalService := service.NewApprovalService(store.BorrowingRequestRepository, store.KitRepository, store.AuditLogRepository, notificationService, queues)
	catalogService := service.NewCatalogService(store.KitRepository, store.PenaltyPolicyRepository, store.PenaltyRepository, store.HistoryRepository, store.FineRepository)
	returnService := service.NewReturnService(service.ReturnDeps{
		Requests:    store.BorrowingRequestRepository,
		Kits:        store.KitRepository,
		Policies:    store.PenaltyPolicyRepository,
		Accounts:    store.AccountRepository,
		Groups:      store.GroupRepository,
		Fines:       store.FineRepository,
		Audit:       store.AuditLogRepository,
		Recorder:    service.NewPenaltyRecorder(store.PenaltyRepository),
		Notifier:    notificationService,
		Wallet:      walletService,
		Queues:      queues,
		Lock:        lock,
		LeaseTTL:    cfg.LeaseTTL(),
		FineDueDays: cfg.Fines.DueDays,
	})

	// Evidence storage
	publicURL := cfg.Server.PublicURL
	if publicURL == "" {
		publicURL = "http://" + cfg.GetHTTPAddress()
	}
	evidenceStore, err := storage.New(ctx, storage.Config{
		Type:     cfg.Storage.Type,
		LocalDir: cfg.Storage.UploadDir,
		BaseURL:  publicURL,
		S3: storage.S3Config{
			Endpoint:        cfg.Storage.S3.Endpoint,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          cfg.Storage.S3.Region,
			UseSSL:          cfg.Storage.S3.UseSSL,
		},
		URLExpiry: time.Duration(cfg.Storage.S3.URLExpiryHours) * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	maxUpload := cfg.Storage.MaxFileSize << 20
	evidenceService := service.NewEvidenceService(evidenceStore, imaging.NewProcessor(), returnService, maxUpload,
		time.Duration(cfg.Storage.S3.URLExpiryHours)*time.Hour)

	// Borrowing requests created by the student app arrive over redis
	if redisClient != nil {
		feed := cache.NewRequestFeed(redisClient, cfg.Redis.FeedChannel, queues, store.AccountRepository, notificationService)
		go func() {
			if err := feed.Run(ctx); err != nil {
				logger.Error("Request feed stopped", "error", err)
			}
		}()
	}

	tokenManager := security.NewTokenManager(cfg.JWT.Secret)

	// HTTP admin API
	var files storage.StorageInterface
	if cfg.Storage.Type == "local" {
		files = evidenceStore
	}
	router := httpapi.NewRouter(httpapi.Deps{
		Approval:       approvalService,
		Returns:        returnService,
		Evidence:       evidenceService,
		Catalog:        catalogService,
		Wallet:         walletService,
		Notifications:  notificationService,
		Queues:         queues,
		Files:          files,
		Hub:            hub,
		Health:         store.Ping,
		Tokens:         tokenManager,
		MaxUploadBytes: maxUpload,
	})
	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// gRPC health and reflection
	reporter := apigrpc.NewHealthReporter(store.Ping, 15*time.Second)
	go reporter.Run(ctx)
	grpcServer := apigrpc.NewServer(tokenManager, reporter)
	lis, err := net.Listen("tcp", cfg.GetGRPCAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.GetGRPCAddress(), err)
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("HTTP admin API listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info("gRPC server listening", "address", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case runErr = <-errCh:
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	grpcServer.GracefulStop()
	return runErr
}
