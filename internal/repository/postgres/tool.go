package postgres

import (
	"context"
	"database/sql"
	"errors"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type kitRepository struct {
	db *sql.DB
}

func NewKitRepository(db *sql.DB) repository.KitRepository {
	return &kitRepository{db: db}
}

func (r *kitRepository) GetKit(ctx context.Context, id int32) (*domain.Kit, error) {
	k := &domain.Kit{}
	query := `SELECT id, kit_name, COALESCE(type, ''), COALESCE(description, ''), status, quantity, amount FROM kits WHERE id = $1`
	logger.DatabaseCall("SELECT", "kits", "id", id)
	err := r.db.QueryRowContext(ctx, query, id).Scan(&k.ID, &k.KitName, &k.Type, &k.Description, &k.Status, &k.Quantity, &k.Amount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (r *kitRepository) ListComponents(ctx context.Context, kitID int32) ([]domain.Component, error) {
	query := `SELECT id, kit_id, component_name, COALESCE(component_type, ''), quantity, price_per_com, COALESCE(image_url, '')
	          FROM kit_components WHERE kit_id = $1 ORDER BY component_name`
	logger.DatabaseCall("SELECT", "kit_components", "kitID", kitID)
	rows, err := r.db.QueryContext(ctx, query, kitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []domain.Component
	for rows.Next() {
		var c domain.Component
		if err := rows.Scan(&c.ID, &c.KitID, &c.ComponentName, &c.ComponentType, &c.Quantity, &c.PricePerCom, &c.ImageURL); err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}

// GetRequestComponents returns what was lent under a request. Whole-kit requests
// without explicit lines fall back to the kit's component list.
func (r *kitRepository) GetRequestComponents(ctx context.Context, requestID int32) ([]domain.RequestComponent, error) {
	query := `SELECT c.id, c.component_name, rc.quantity, c.price_per_com
	          FROM borrowing_request_components rc
	          JOIN kit_components c ON c.id = rc.kit_component_id
	          WHERE rc.borrowing_request_id = $1
	          UNION ALL
	          SELECT c.id, c.component_name, c.quantity, c.price_per_com
	          FROM borrowing_requests br
	          JOIN kit_components c ON c.kit_id = br.kit_id
	          WHERE br.id = $1
	            AND br.request_type = 'BORROW_KIT'
	            AND NOT EXISTS (SELECT 1 FROM borrowing_request_components x WHERE x.borrowing_request_id = br.id)
	          ORDER BY 2`
	logger.DatabaseCall("SELECT", "borrowing_request_components", "requestID", requestID)
	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comps []domain.RequestComponent
	for rows.Next() {
		var c domain.RequestComponent
		if err := rows.Scan(&c.ComponentID, &c.ComponentName, &c.Quantity, &c.ReferencePrice); err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
}
