package postgres

import (
	"context"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"

	"github.com/jmoiron/sqlx"
)

const fineColumns = `id, rental_id, penalty_id, kit_id, student_email, leader_email, fine_amount, status, created_at, due_date`

type fineRepository struct {
	db *sqlx.DB
}

func NewFineRepository(db *sqlx.DB) repository.FineRepository {
	return &fineRepository{db: db}
}

func (r *fineRepository) Create(ctx context.Context, f *domain.Fine) error {
	logger.EnterMethod("fineRepository.Create", "rentalID", f.RentalID, "amount", f.FineAmount)

	query := `INSERT INTO fines (rental_id, penalty_id, kit_id, student_email, leader_email, fine_amount, status, created_at, due_date)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	logger.DatabaseCall("INSERT", "fines", "rentalID", f.RentalID)
	err := r.db.QueryRowxContext(ctx, query, f.RentalID, f.PenaltyID, f.KitID, f.StudentEmail, f.LeaderEmail, f.FineAmount, f.Status, f.CreatedAt, f.DueDate).Scan(&f.ID)
	logger.DatabaseResult("INSERT", 1, err, "fineID", f.ID)
	if err != nil {
		logger.ExitMethodWithError("fineRepository.Create", err, "rentalID", f.RentalID)
		return err
	}
	logger.ExitMethod("fineRepository.Create", "fineID", f.ID)
	return nil
}

func (r *fineRepository) ListByPayer(ctx context.Context, email string) ([]domain.Fine, error) {
	var fines []domain.Fine
	query := `SELECT ` + fineColumns + ` FROM fines
	          WHERE LOWER(COALESCE(leader_email, student_email)) = LOWER($1)
	          ORDER BY created_at DESC`
	logger.DatabaseCall("SELECT", "fines", "payer", email)
	err := r.db.SelectContext(ctx, &fines, query, email)
	return fines, err
}

func (r *fineRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]domain.Fine, error) {
	var fines []domain.Fine
	query := `SELECT ` + fineColumns + ` FROM fines
	          WHERE status = 'pending' AND due_date >= $1 AND due_date < $2
	          ORDER BY due_date`
	logger.DatabaseCall("SELECT", "fines", "from", from, "to", to)
	err := r.db.SelectContext(ctx, &fines, query, from, to)
	return fines, err
}

func (r *fineRepository) MarkOverdue(ctx context.Context, now time.Time) ([]domain.Fine, error) {
	var fines []domain.Fine
	query := `UPDATE fines SET status = 'overdue'
	          WHERE status = 'pending' AND due_date < $1
	          RETURNING ` + fineColumns
	logger.DatabaseCall("UPDATE", "fines", "now", now)
	err := r.db.SelectContext(ctx, &fines, query, now)
	logger.DatabaseResult("UPDATE", int64(len(fines)), err)
	return fines, err
}

type historyRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) repository.HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) ListHistory(ctx context.Context, limit int32) ([]domain.RequestHistoryEntry, error) {
	var entries []domain.RequestHistoryEntry
	query := `SELECT br.id, br.kit_id, k.kit_name, br.account_id AS requester_id, a.email AS requester_email,
	                 br.status, br.deposit_amount, br.actual_return_date, br.is_late,
	                 (SELECT SUM(p.total_amount) FROM penalties p WHERE p.borrow_request_id = br.id) AS penalty_total
	          FROM borrowing_requests br
	          JOIN kits k ON k.id = br.kit_id
	          JOIN accounts a ON a.id = br.account_id
	          WHERE br.status IN ('RETURNED', 'REJECTED')
	          ORDER BY COALESCE(br.actual_return_date, br.created_at) DESC
	          LIMIT $1`
	logger.DatabaseCall("SELECT", "borrowing_requests", "purpose", "history")
	err := r.db.SelectContext(ctx, &entries, query, limit)
	return entries, err
}
