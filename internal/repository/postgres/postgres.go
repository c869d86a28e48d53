package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"iotkit-lending-backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sql.DB
	repository.BorrowingRequestRepository
	repository.KitRepository
	repository.PenaltyRepository
	repository.PenaltyPolicyRepository
	repository.AccountRepository
	repository.GroupRepository
	repository.NotificationRepository
	repository.WalletRepository
	repository.FineRepository
	repository.AuditLogRepository
	repository.HistoryRepository
}

func NewStore(db *sql.DB) *Store {
	// Both supported drivers speak postgres and use $n placeholders.
	xdb := sqlx.NewDb(db, "postgres")
	return &Store{
		db:                         db,
		BorrowingRequestRepository: NewBorrowingRequestRepository(db),
		KitRepository:              NewKitRepository(db),
		PenaltyRepository:          NewPenaltyRepository(db),
		PenaltyPolicyRepository:    NewPenaltyPolicyRepository(db),
		AccountRepository:          NewAccountRepository(db),
		GroupRepository:            NewGroupRepository(db),
		NotificationRepository:     NewNotificationRepository(db),
		WalletRepository:           NewWalletRepository(db),
		FineRepository:             NewFineRepository(xdb),
		AuditLogRepository:         NewAuditLogRepository(db),
		HistoryRepository:          NewHistoryRepository(xdb),
	}
}

// Open connects with the configured driver ("postgres" for lib/pq, "pgx" for pgx stdlib) and pings.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Ping reports database reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
