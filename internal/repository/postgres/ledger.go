package postgres

import (
	"context"
	"database/sql"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type walletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) repository.WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) CreateTransaction(ctx context.Context, wt *domain.WalletTransaction) error {
	logger.EnterMethod("walletRepository.CreateTransaction", "accountID", wt.AccountID, "type", wt.Type, "amount", wt.Amount)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("walletRepository.CreateTransaction", err, "reason", "begin transaction")
		return err
	}
	defer tx.Rollback()

	if wt.CreatedAt.IsZero() {
		wt.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO wallet_transactions (account_id, amount, type, borrow_request_id, description, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	logger.DatabaseCall("INSERT", "wallet_transactions", "accountID", wt.AccountID)
	if err := tx.QueryRowContext(ctx, query, wt.AccountID, wt.Amount, wt.Type, wt.BorrowRequestID, wt.Description, wt.CreatedAt).Scan(&wt.ID); err != nil {
		logger.ExitMethodWithError("walletRepository.CreateTransaction", err, "accountID", wt.AccountID)
		return err
	}

	logger.DatabaseCall("UPDATE", "accounts", "accountID", wt.AccountID)
	if _, err := tx.ExecContext(ctx, `UPDATE accounts SET balance = balance + $1 WHERE id = $2`, wt.Amount, wt.AccountID); err != nil {
		logger.ExitMethodWithError("walletRepository.CreateTransaction", err, "reason", "balance update")
		return err
	}

	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("walletRepository.CreateTransaction", err, "reason", "commit")
		return err
	}
	logger.ExitMethod("walletRepository.CreateTransaction", "transactionID", wt.ID)
	return nil
}

func (r *walletRepository) GetSummary(ctx context.Context, accountID int32) (*domain.WalletSummary, error) {
	summary := &domain.WalletSummary{}

	// Balance
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(balance, 0) FROM accounts WHERE id = $1`, accountID).Scan(&summary.Balance)
	if err != nil {
		return nil, err
	}

	// Deposits held by requests that have not been refunded yet
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(br.deposit_amount), 0)
		FROM borrowing_requests br
		WHERE br.account_id = $1
		  AND br.status IN ('APPROVED', 'BORROWED', 'RETURNED')
		  AND NOT EXISTS (
		      SELECT 1 FROM wallet_transactions wt
		      WHERE wt.borrow_request_id = br.id AND wt.type = 'DEPOSIT_REFUND')`, accountID).Scan(&summary.HeldDeposits)
	if err != nil {
		return nil, err
	}

	// Unresolved penalties
	err = r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(total_amount), 0) FROM penalties WHERE account_id = $1 AND resolved = FALSE`, accountID).Scan(&summary.UnresolvedPenalties)
	if err != nil {
		return nil, err
	}

	return summary, nil
}

func (r *walletRepository) ListTransactions(ctx context.Context, accountID int32, limit, offset int32) ([]domain.WalletTransaction, int32, error) {
	query := `SELECT id, account_id, amount, type, borrow_request_id, COALESCE(description, ''), created_at
	          FROM wallet_transactions WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.db.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var count int32
	countQuery := `SELECT count(*) FROM wallet_transactions WHERE account_id = $1`
	err = r.db.QueryRowContext(ctx, countQuery, accountID).Scan(&count)
	if err != nil {
		return nil, 0, err
	}

	var txs []domain.WalletTransaction
	for rows.Next() {
		var wt domain.WalletTransaction
		if err := rows.Scan(&wt.ID, &wt.AccountID, &wt.Amount, &wt.Type, &wt.BorrowRequestID, &wt.Description, &wt.CreatedAt); err != nil {
			return nil, 0, err
		}
		txs = append(txs, wt)
	}
	return txs, count, rows.Err()
}

func (r *walletRepository) HasRefund(ctx context.Context, borrowRequestID int32) (bool, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE borrow_request_id = $1 AND type = 'DEPOSIT_REFUND')`
	err := r.db.QueryRowContext(ctx, query, borrowRequestID).Scan(&exists)
	return exists, err
}

func (r *walletRepository) ListRefundCandidates(ctx context.Context, limit int32) ([]domain.BorrowingRequest, error) {
	query := `SELECT ` + borrowingRequestColumns + `
	          FROM borrowing_requests br
	          WHERE br.status = 'RETURNED'
	            AND br.deposit_amount > 0
	            AND NOT EXISTS (SELECT 1 FROM penalties p WHERE p.borrow_request_id = br.id AND p.resolved = FALSE)
	            AND NOT EXISTS (SELECT 1 FROM wallet_transactions wt WHERE wt.borrow_request_id = br.id AND wt.type = 'DEPOSIT_REFUND')
	          ORDER BY br.actual_return_date ASC
	          LIMIT $1`
	logger.DatabaseCall("SELECT", "borrowing_requests", "purpose", "refund candidates")
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []domain.BorrowingRequest
	for rows.Next() {
		req, err := scanBorrowingRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, *req)
	}
	return reqs, rows.Err()
}
