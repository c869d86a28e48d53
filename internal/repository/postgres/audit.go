package postgres

import (
	"context"
	"database/sql"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type auditLogRepository struct {
	db *sql.DB
}

func NewAuditLogRepository(db *sql.DB) repository.AuditLogRepository {
	return &auditLogRepository{db: db}
}

func (r *auditLogRepository) Create(ctx context.Context, e *domain.AuditLog) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO audit_logs (actor_id, action, entity_id, detail, created_at)
	          VALUES ($1, $2, $3, $4, $5) RETURNING id`
	logger.DatabaseCall("INSERT", "audit_logs", "action", e.Action, "entityID", e.EntityID)
	err := r.db.QueryRowContext(ctx, query, e.ActorID, e.Action, e.EntityID, e.Detail, e.CreatedAt).Scan(&e.ID)
	logger.DatabaseResult("INSERT", 1, err, "auditID", e.ID)
	return err
}
