package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"

	"github.com/lib/pq"
)

const penaltyColumns = `id, borrow_request_id, account_id, total_amount, resolved, take_effect_date, COALESCE(note, ''), created_at`

type penaltyRepository struct {
	db *sql.DB
}

func NewPenaltyRepository(db *sql.DB) repository.PenaltyRepository {
	return &penaltyRepository{db: db}
}

func (r *penaltyRepository) Create(ctx context.Context, p *domain.Penalty) error {
	logger.EnterMethod("penaltyRepository.Create", "borrowRequestID", p.BorrowRequestID, "total", p.TotalAmount)

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO penalties (borrow_request_id, account_id, total_amount, resolved, take_effect_date, note, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`
	logger.DatabaseCall("INSERT", "penalties", "borrowRequestID", p.BorrowRequestID)
	err := r.db.QueryRowContext(ctx, query, p.BorrowRequestID, p.AccountID, p.TotalAmount, p.Resolved, p.TakeEffectDate, p.Note, p.CreatedAt).Scan(&p.ID)
	logger.DatabaseResult("INSERT", 1, err, "penaltyID", p.ID)

	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.Create", err, "borrowRequestID", p.BorrowRequestID)
		return err
	}
	logger.ExitMethod("penaltyRepository.Create", "penaltyID", p.ID)
	return nil
}

func (r *penaltyRepository) CreateDetails(ctx context.Context, details []domain.PenaltyDetail) ([]int32, error) {
	logger.EnterMethod("penaltyRepository.CreateDetails", "count", len(details))
	if len(details) == 0 {
		logger.ExitMethod("penaltyRepository.CreateDetails", "count", 0)
		return nil, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.CreateDetails", err, "reason", "begin transaction")
		return nil, err
	}
	defer tx.Rollback()

	ids, err := insertDetails(ctx, tx, details)
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.CreateDetails", err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("penaltyRepository.CreateDetails", err, "reason", "commit")
		return nil, err
	}
	logger.ExitMethod("penaltyRepository.CreateDetails", "count", len(ids))
	return ids, nil
}

func (r *penaltyRepository) ReplaceDetails(ctx context.Context, penaltyID int32, total int64, note string, details []domain.PenaltyDetail) ([]int32, error) {
	logger.EnterMethod("penaltyRepository.ReplaceDetails", "penaltyID", penaltyID, "total", total, "count", len(details))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.ReplaceDetails", err, "reason", "begin transaction")
		return nil, err
	}
	defer tx.Rollback()

	logger.DatabaseCall("UPDATE", "penalties", "penaltyID", penaltyID, "total", total)
	result, err := tx.ExecContext(ctx, `UPDATE penalties SET total_amount = $1, note = $2 WHERE id = $3 AND resolved = FALSE`, total, note, penaltyID)
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.ReplaceDetails", err, "reason", "update penalty")
		return nil, err
	}
	if rows, err := result.RowsAffected(); err != nil || rows == 0 {
		if err == nil {
			err = repository.ErrConflict
		}
		logger.ExitMethodWithError("penaltyRepository.ReplaceDetails", err, "penaltyID", penaltyID)
		return nil, err
	}

	logger.DatabaseCall("DELETE", "penalty_details", "penaltyID", penaltyID)
	if _, err := tx.ExecContext(ctx, `DELETE FROM penalty_details WHERE penalty_id = $1`, penaltyID); err != nil {
		logger.ExitMethodWithError("penaltyRepository.ReplaceDetails", err, "reason", "delete details")
		return nil, err
	}

	ids, err := insertDetails(ctx, tx, details)
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.ReplaceDetails", err)
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("penaltyRepository.ReplaceDetails", err, "reason", "commit")
		return nil, err
	}
	logger.ExitMethod("penaltyRepository.ReplaceDetails", "penaltyID", penaltyID, "count", len(ids))
	return ids, nil
}

func (r *penaltyRepository) DeleteUnresolved(ctx context.Context, borrowRequestID int32) (int32, error) {
	logger.EnterMethod("penaltyRepository.DeleteUnresolved", "borrowRequestID", borrowRequestID)

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.DeleteUnresolved", err, "reason", "begin transaction")
		return 0, err
	}
	defer tx.Rollback()

	var id int32
	err = tx.QueryRowContext(ctx, `SELECT id FROM penalties WHERE borrow_request_id = $1 AND resolved = FALSE FOR UPDATE`, borrowRequestID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		logger.ExitMethod("penaltyRepository.DeleteUnresolved", "deleted", false)
		return 0, nil
	}
	if err != nil {
		logger.ExitMethodWithError("penaltyRepository.DeleteUnresolved", err, "reason", "select penalty")
		return 0, err
	}

	logger.DatabaseCall("DELETE", "penalties", "penaltyID", id)
	if _, err := tx.ExecContext(ctx, `DELETE FROM penalty_details WHERE penalty_id = $1`, id); err != nil {
		logger.ExitMethodWithError("penaltyRepository.DeleteUnresolved", err, "reason", "delete details")
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM penalties WHERE id = $1`, id); err != nil {
		logger.ExitMethodWithError("penaltyRepository.DeleteUnresolved", err, "reason", "delete penalty")
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		logger.ExitMethodWithError("penaltyRepository.DeleteUnresolved", err, "reason", "commit")
		return 0, err
	}
	logger.DatabaseResult("DELETE", 1, nil, "penaltyID", id)
	logger.ExitMethod("penaltyRepository.DeleteUnresolved", "penaltyID", id)
	return id, nil
}

// insertDetails writes the batch inside tx and returns the new ids in input order.
func insertDetails(ctx context.Context, tx *sql.Tx, details []domain.PenaltyDetail) ([]int32, error) {
	query := `INSERT INTO penalty_details (penalty_id, description, amount, image_url, policies_id, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	now := time.Now().UTC()
	ids := make([]int32, 0, len(details))
	for i := range details {
		d := &details[i]
		if d.CreatedAt.IsZero() {
			d.CreatedAt = now
		}
		logger.DatabaseCall("INSERT", "penalty_details", "penaltyID", d.PenaltyID, "description", d.Description)
		if err := tx.QueryRowContext(ctx, query, d.PenaltyID, d.Description, d.Amount, d.ImageURL, d.PoliciesID, d.CreatedAt).Scan(&d.ID); err != nil {
			logger.DatabaseResult("INSERT", 0, err)
			return nil, fmt.Errorf("insert penalty detail %d: %w", i, err)
		}
		ids = append(ids, d.ID)
	}
	logger.DatabaseResult("INSERT", int64(len(ids)), nil)
	return ids, nil
}

func (r *penaltyRepository) GetByBorrowRequest(ctx context.Context, borrowRequestID int32) (*domain.Penalty, error) {
	p := &domain.Penalty{}
	query := `SELECT ` + penaltyColumns + ` FROM penalties WHERE borrow_request_id = $1 ORDER BY id DESC LIMIT 1`
	logger.DatabaseCall("SELECT", "penalties", "borrowRequestID", borrowRequestID)
	err := r.db.QueryRowContext(ctx, query, borrowRequestID).Scan(&p.ID, &p.BorrowRequestID, &p.AccountID, &p.TotalAmount, &p.Resolved, &p.TakeEffectDate, &p.Note, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *penaltyRepository) ListUnresolved(ctx context.Context) ([]domain.Penalty, error) {
	query := `SELECT ` + penaltyColumns + ` FROM penalties WHERE resolved = FALSE ORDER BY created_at DESC`
	logger.DatabaseCall("SELECT", "penalties", "resolved", false)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var penalties []domain.Penalty
	for rows.Next() {
		var p domain.Penalty
		if err := rows.Scan(&p.ID, &p.BorrowRequestID, &p.AccountID, &p.TotalAmount, &p.Resolved, &p.TakeEffectDate, &p.Note, &p.CreatedAt); err != nil {
			return nil, err
		}
		penalties = append(penalties, p)
	}
	return penalties, rows.Err()
}

func (r *penaltyRepository) ListDetails(ctx context.Context, penaltyID int32) ([]domain.PenaltyDetail, error) {
	query := `SELECT id, penalty_id, description, amount, image_url, policies_id, created_at
	          FROM penalty_details WHERE penalty_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, penaltyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []domain.PenaltyDetail
	for rows.Next() {
		var d domain.PenaltyDetail
		if err := rows.Scan(&d.ID, &d.PenaltyID, &d.Description, &d.Amount, &d.ImageURL, &d.PoliciesID, &d.CreatedAt); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

type penaltyPolicyRepository struct {
	db *sql.DB
}

func NewPenaltyPolicyRepository(db *sql.DB) repository.PenaltyPolicyRepository {
	return &penaltyPolicyRepository{db: db}
}

func (r *penaltyPolicyRepository) List(ctx context.Context) ([]domain.PenaltyPolicy, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, policy_name, COALESCE(type, ''), amount FROM penalty_policies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func (r *penaltyPolicyRepository) GetByIDs(ctx context.Context, ids []int32) ([]domain.PenaltyPolicy, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT id, policy_name, COALESCE(type, ''), amount FROM penalty_policies WHERE id = ANY($1) ORDER BY id`
	logger.DatabaseCall("SELECT", "penalty_policies", "ids", ids)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPolicies(rows)
}

func scanPolicies(rows *sql.Rows) ([]domain.PenaltyPolicy, error) {
	var policies []domain.PenaltyPolicy
	for rows.Next() {
		var p domain.PenaltyPolicy
		if err := rows.Scan(&p.ID, &p.PolicyName, &p.Type, &p.Amount); err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	return policies, rows.Err()
}
