package postgres

import (
	"context"
	"database/sql"
	"errors"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

const borrowingRequestColumns = `id, kit_id, account_id, request_type, deposit_amount, status, COALESCE(reason, ''), created_at, approved_date, expect_return_date, actual_return_date, is_late`

type borrowingRequestRepository struct {
	db *sql.DB
}

func NewBorrowingRequestRepository(db *sql.DB) repository.BorrowingRequestRepository {
	return &borrowingRequestRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBorrowingRequest(s rowScanner) (*domain.BorrowingRequest, error) {
	req := &domain.BorrowingRequest{}
	err := s.Scan(&req.ID, &req.KitID, &req.RequesterID, &req.RequestType, &req.DepositAmount, &req.Status, &req.Reason,
		&req.CreatedAt, &req.ApprovedDate, &req.ExpectReturnDate, &req.ActualReturnDate, &req.IsLate)
	if err != nil {
		return nil, err
	}
	return req, nil
}

func (r *borrowingRequestRepository) GetByID(ctx context.Context, id int32) (*domain.BorrowingRequest, error) {
	query := `SELECT ` + borrowingRequestColumns + ` FROM borrowing_requests WHERE id = $1`
	logger.DatabaseCall("SELECT", "borrowing_requests", "id", id)
	req, err := scanBorrowingRequest(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return req, err
}

func (r *borrowingRequestRepository) ListByStatus(ctx context.Context, status domain.BorrowingStatus) ([]domain.BorrowingRequest, error) {
	query := `SELECT ` + borrowingRequestColumns + ` FROM borrowing_requests WHERE status = $1 ORDER BY created_at ASC`
	logger.DatabaseCall("SELECT", "borrowing_requests", "status", status)
	rows, err := r.db.QueryContext(ctx, query, status)
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

func (r *borrowingRequestRepository) UpdateStatus(ctx context.Context, req *domain.BorrowingRequest, expected domain.BorrowingStatus) error {
	logger.EnterMethod("borrowingRequestRepository.UpdateStatus", "id", req.ID, "from", expected, "to", req.Status)

	query := `UPDATE borrowing_requests
	          SET status = $1, approved_date = $2, actual_return_date = $3, is_late = $4, reason = $5
	          WHERE id = $6 AND status = $7`
	logger.DatabaseCall("UPDATE", "borrowing_requests", "id", req.ID)
	result, err := r.db.ExecContext(ctx, query, req.Status, req.ApprovedDate, req.ActualReturnDate, req.IsLate, req.Reason, req.ID, expected)
	if err != nil {
		logger.DatabaseResult("UPDATE", 0, err)
		logger.ExitMethodWithError("borrowingRequestRepository.UpdateStatus", err, "id", req.ID)
		return err
	}
	rows, err := result.RowsAffected()
	logger.DatabaseResult("UPDATE", rows, err)
	if err != nil {
		return err
	}
	if rows == 0 {
		logger.ExitMethodWithError("borrowingRequestRepository.UpdateStatus", repository.ErrConflict, "id", req.ID)
		return repository.ErrConflict
	}

	logger.ExitMethod("borrowingRequestRepository.UpdateStatus", "id", req.ID, "status", req.Status)
	return nil
}
