package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/utils"
)

type penaltyRecorder struct {
	penaltyRepo repository.PenaltyRepository
}

func NewPenaltyRecorder(penaltyRepo repository.PenaltyRepository) PenaltyRecorder {
	return &penaltyRecorder{penaltyRepo: penaltyRepo}
}

func (r *penaltyRecorder) Create(ctx context.Context, p *domain.Penalty) (int32, error) {
	if p.BorrowRequestID <= 0 || p.AccountID <= 0 {
		return 0, fmt.Errorf("%w: penalty needs a borrowing request and an account", ErrValidation)
	}
	if p.TotalAmount <= 0 {
		return 0, fmt.Errorf("%w: penalty total must be positive, got %d", ErrValidation, p.TotalAmount)
	}
	if err := r.penaltyRepo.Create(ctx, p); err != nil {
		return 0, fmt.Errorf("failed to create penalty: %w", err)
	}
	return p.ID, nil
}

func (r *penaltyRecorder) CreateDetails(ctx context.Context, details []domain.PenaltyDetail) ([]int32, error) {
	if err := validateDetails(details); err != nil {
		return nil, err
	}
	ids, err := r.penaltyRepo.CreateDetails(ctx, details)
	if err != nil {
		return nil, fmt.Errorf("failed to create penalty details: %w", err)
	}
	return checkBatch(details, ids)
}

func validateDetails(details []domain.PenaltyDetail) error {
	if len(details) == 0 {
		return fmt.Errorf("%w: empty penalty detail batch", ErrValidation)
	}
	penaltyID := details[0].PenaltyID
	for _, d := range details {
		if d.PenaltyID <= 0 || d.PenaltyID != penaltyID {
			return fmt.Errorf("%w: every detail must reference the same penalty", ErrValidation)
		}
		if d.Amount < 0 {
			return fmt.Errorf("%w: negative amount on %q", ErrValidation, d.Description)
		}
	}
	return nil
}

func checkBatch(details []domain.PenaltyDetail, ids []int32) ([]int32, error) {
	if len(ids) != len(details) {
		return ids, &PartialDetailsError{PenaltyID: details[0].PenaltyID, Expected: len(details), Created: len(ids)}
	}
	return ids, nil
}

func (r *penaltyRecorder) Record(ctx context.Context, p *domain.Penalty, details []domain.PenaltyDetail) (*domain.Penalty, []domain.PenaltyDetail, error) {
	logger.EnterMethod("penaltyRecorder.Record", "requestID", p.BorrowRequestID, "total", p.TotalAmount, "details", len(details))

	if sum := utils.SumDetails(details); sum != p.TotalAmount {
		err := fmt.Errorf("%w: details sum to %d but penalty total is %d", ErrValidation, sum, p.TotalAmount)
		logger.ExitMethodWithError("penaltyRecorder.Record", err)
		return nil, nil, err
	}

	existing, err := r.penaltyRepo.GetByBorrowRequest(ctx, p.BorrowRequestID)
	switch {
	case err == nil:
		return r.rerecord(ctx, existing, p, details)
	case isNotFound(err):
		if _, err := r.Create(ctx, p); err != nil {
			logger.ExitMethodWithError("penaltyRecorder.Record", err)
			return nil, nil, err
		}
	default:
		logger.ExitMethodWithError("penaltyRecorder.Record", err)
		return nil, nil, err
	}

	batch := withPenaltyID(details, p.ID)
	ids, err := r.CreateDetails(ctx, batch)
	if err != nil {
		logger.ExitMethodWithError("penaltyRecorder.Record", err, "penaltyID", p.ID)
		return p, nil, err
	}
	for i, id := range ids {
		batch[i].ID = id
	}

	logger.ExitMethod("penaltyRecorder.Record", "penaltyID", p.ID, "details", len(ids))
	return p, batch, nil
}

// rerecord handles a penalty left by an earlier submission that never reached
// RETURNED. An identical recording is reused; anything else replaces it.
func (r *penaltyRecorder) rerecord(ctx context.Context, existing, p *domain.Penalty, details []domain.PenaltyDetail) (*domain.Penalty, []domain.PenaltyDetail, error) {
	if existing.Resolved {
		err := fmt.Errorf("%w: penalty %d for request %d is already resolved", ErrConflict, existing.ID, p.BorrowRequestID)
		logger.ExitMethodWithError("penaltyRecorder.Record", err)
		return nil, nil, err
	}

	recorded, err := r.penaltyRepo.ListDetails(ctx, existing.ID)
	if err != nil {
		logger.ExitMethodWithError("penaltyRecorder.Record", err)
		return nil, nil, err
	}
	if len(recorded) > 0 && existing.TotalAmount == p.TotalAmount && sameDetails(recorded, details) {
		logger.Info("Penalty already recorded by an earlier attempt", "penaltyID", existing.ID, "requestID", p.BorrowRequestID)
		logger.ExitMethod("penaltyRecorder.Record", "penaltyID", existing.ID, "reused", true)
		return existing, recorded, nil
	}

	batch := withPenaltyID(details, existing.ID)
	if err := validateDetails(batch); err != nil {
		logger.ExitMethodWithError("penaltyRecorder.Record", err)
		return nil, nil, err
	}
	ids, err := r.penaltyRepo.ReplaceDetails(ctx, existing.ID, p.TotalAmount, p.Note, batch)
	if err != nil {
		err = fmt.Errorf("failed to replace penalty %d: %w", existing.ID, err)
		logger.ExitMethodWithError("penaltyRecorder.Record", err)
		return nil, nil, err
	}
	if _, err := checkBatch(batch, ids); err != nil {
		logger.ExitMethodWithError("penaltyRecorder.Record", err, "penaltyID", existing.ID)
		return nil, nil, err
	}
	for i, id := range ids {
		batch[i].ID = id
	}

	logger.Info("Replaced penalty from an unfinished submission", "penaltyID", existing.ID, "requestID", p.BorrowRequestID,
		"previousTotal", existing.TotalAmount, "total", p.TotalAmount)
	p.ID = existing.ID
	p.CreatedAt = existing.CreatedAt
	logger.ExitMethod("penaltyRecorder.Record", "penaltyID", p.ID, "details", len(ids), "replaced", true)
	return p, batch, nil
}

func (r *penaltyRecorder) Discard(ctx context.Context, borrowRequestID int32) error {
	id, err := r.penaltyRepo.DeleteUnresolved(ctx, borrowRequestID)
	if err != nil {
		return fmt.Errorf("failed to discard penalty for request %d: %w", borrowRequestID, err)
	}
	if id != 0 {
		logger.Info("Discarded penalty from an unfinished submission", "penaltyID", id, "requestID", borrowRequestID)
	}
	return nil
}

func withPenaltyID(details []domain.PenaltyDetail, penaltyID int32) []domain.PenaltyDetail {
	batch := make([]domain.PenaltyDetail, len(details))
	copy(batch, details)
	for i := range batch {
		batch[i].PenaltyID = penaltyID
	}
	return batch
}

func sameDetails(recorded, wanted []domain.PenaltyDetail) bool {
	if len(recorded) != len(wanted) {
		return false
	}
	for i := range recorded {
		a, b := recorded[i], wanted[i]
		if a.Description != b.Description || a.Amount != b.Amount || a.Kind() != b.Kind() {
			return false
		}
		if a.PoliciesID != nil && *a.PoliciesID != *b.PoliciesID {
			return false
		}
	}
	return true
}

// DetailsFromBreakdown turns an evaluated breakdown into detail rows for one penalty.
func DetailsFromBreakdown(penaltyID int32, items []domain.BreakdownItem) []domain.PenaltyDetail {
	details := make([]domain.PenaltyDetail, 0, len(items))
	for _, it := range items {
		details = append(details, domain.PenaltyDetail{
			PenaltyID:   penaltyID,
			Description: it.Label,
			Amount:      it.Amount,
			ImageURL:    it.ImageURL,
			PoliciesID:  it.PolicyID,
		})
	}
	return details
}

// PenaltyNote summarises a breakdown for the penalty's note column.
func PenaltyNote(items []domain.BreakdownItem) string {
	var damaged, policies []string
	for _, it := range items {
		if it.Kind == domain.DetailKindPolicy {
			policies = append(policies, it.Label)
		} else {
			damaged = append(damaged, it.Label)
		}
	}
	var parts []string
	if len(damaged) > 0 {
		parts = append(parts, "Damaged components: "+strings.Join(damaged, ", "))
	}
	if len(policies) > 0 {
		parts = append(parts, "Policies: "+strings.Join(policies, ", "))
	}
	return strings.Join(parts, "; ")
}

// newPenalty builds the unpersisted penalty for a return inspection.
func newPenalty(req *domain.BorrowingRequest, total int64, items []domain.BreakdownItem, now time.Time) *domain.Penalty {
	return &domain.Penalty{
		BorrowRequestID: req.ID,
		AccountID:       req.RequesterID,
		TotalAmount:     total,
		Resolved:        false,
		TakeEffectDate:  now,
		Note:            PenaltyNote(items),
		CreatedAt:       now,
	}
}
