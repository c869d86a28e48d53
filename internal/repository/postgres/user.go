package postgres

import (
	"context"
	"database/sql"
	"errors"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) repository.AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id int32) (*domain.Account, error) {
	a := &domain.Account{}
	query := `SELECT id, email, COALESCE(full_name, ''), COALESCE(phone, ''), role, is_active FROM accounts WHERE id = $1`
	logger.DatabaseCall("SELECT", "accounts", "id", id)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.Email, &a.FullName, &a.Phone, &a.Role, &a.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	a := &domain.Account{}
	query := `SELECT id, email, COALESCE(full_name, ''), COALESCE(phone, ''), role, is_active FROM accounts WHERE LOWER(email) = LOWER($1)`
	logger.DatabaseCall("SELECT", "accounts", "email", email)
	err := r.db.QueryRowContext(ctx, query, email).Scan(&a.ID, &a.Email, &a.FullName, &a.Phone, &a.Role, &a.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) ListByRole(ctx context.Context, role domain.AccountRole) ([]domain.Account, error) {
	query := `SELECT id, email, COALESCE(full_name, ''), COALESCE(phone, ''), role, is_active
	          FROM accounts WHERE role = $1 AND is_active = TRUE ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.Email, &a.FullName, &a.Phone, &a.Role, &a.IsActive); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

type groupRepository struct {
	db *sql.DB
}

func NewGroupRepository(db *sql.DB) repository.GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) FindGroupFor(ctx context.Context, accountID int32) (*domain.Group, error) {
	g := &domain.Group{}
	query := `SELECT g.id, g.name, l.account_id, a.email
	          FROM group_members m
	          JOIN student_groups g ON g.id = m.group_id
	          JOIN group_members l ON l.group_id = g.id AND l.role = 'LEADER'
	          JOIN accounts a ON a.id = l.account_id
	          WHERE m.account_id = $1
	          ORDER BY g.id
	          LIMIT 1`
	logger.DatabaseCall("SELECT", "student_groups", "accountID", accountID)
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&g.ID, &g.Name, &g.LeaderID, &g.LeaderEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `SELECT account_id FROM group_members WHERE group_id = $1 ORDER BY account_id`, g.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int32
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		g.MemberIDs = append(g.MemberIDs, id)
	}
	return g, rows.Err()
}
