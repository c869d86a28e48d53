package service

import (
	"context"
	"fmt"
	"strings"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/repository"
)

type catalogService struct {
	kitRepo     repository.KitRepository
	policyRepo  repository.PenaltyPolicyRepository
	penaltyRepo repository.PenaltyRepository
	historyRepo repository.HistoryRepository
	fineRepo    repository.FineRepository
}

func NewCatalogService(
	kitRepo repository.KitRepository,
	policyRepo repository.PenaltyPolicyRepository,
	penaltyRepo repository.PenaltyRepository,
	historyRepo repository.HistoryRepository,
	fineRepo repository.FineRepository,
) CatalogService {
	return &catalogService{
		kitRepo:     kitRepo,
		policyRepo:  policyRepo,
		penaltyRepo: penaltyRepo,
		historyRepo: historyRepo,
		fineRepo:    fineRepo,
	}
}

func (s *catalogService) GetKit(ctx context.Context, kitID int32) (*domain.Kit, error) {
	kit, err := s.kitRepo.GetKit(ctx, kitID)
	if err != nil {
		return nil, err
	}
	components, err := s.kitRepo.ListComponents(ctx, kitID)
	if err != nil {
		return nil, err
	}
	kit.Components = components
	return kit, nil
}

func (s *catalogService) ListPenaltyPolicies(ctx context.Context) ([]domain.PenaltyPolicy, error) {
	return s.policyRepo.List(ctx)
}

func (s *catalogService) ListUnresolvedPenalties(ctx context.Context) ([]domain.Penalty, error) {
	return s.penaltyRepo.ListUnresolved(ctx)
}

func (s *catalogService) GetPenaltyDetails(ctx context.Context, penaltyID int32) ([]domain.PenaltyDetail, error) {
	return s.penaltyRepo.ListDetails(ctx, penaltyID)
}

func (s *catalogService) ListHistory(ctx context.Context, limit int32) ([]domain.RequestHistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.historyRepo.ListHistory(ctx, limit)
}

// ListFinesFor returns the fines filed against email, whether as student or as group leader.
func (s *catalogService) ListFinesFor(ctx context.Context, email string) ([]domain.Fine, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	return s.fineRepo.ListByPayer(ctx, email)
}
