package jobs

import (
	"context"
	"time"

	"iotkit-lending-backend/internal/config"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	deps   Deps
	config *config.Config
	now    func() time.Time
}

// Deps holds the repositories and services the jobs need
type Deps struct {
	Wallets       repository.WalletRepository
	Fines         repository.FineRepository
	Accounts      repository.AccountRepository
	Wallet        service.WalletService
	Notifications service.NotificationService
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(deps Deps, cfg *config.Config) *JobRunner {
	return &JobRunner{
		deps:   deps,
		config: cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context) (int, error)) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	start := time.Now()
	count, err := jobFunc(context.Background())
	if err != nil {
		logger.Error("Job failed", "job", jobName, "processed", count, "error", err)
		return
	}
	logger.Info("Job completed", "job", jobName, "processed", count, "duration", time.Since(start))
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.MarkOverdueFines()
	jr.SendFineDueReminders()
	jr.RefundReturnedDeposits()
}
