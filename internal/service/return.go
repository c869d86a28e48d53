package service

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/utils"
)

// ReturnDeps are the collaborators of the return inspection workflow.
type ReturnDeps struct {
	Requests repository.BorrowingRequestRepository
	Kits     repository.KitRepository
	Policies repository.PenaltyPolicyRepository
	Accounts repository.AccountRepository
	Groups   repository.GroupRepository
	Fines    repository.FineRepository
	Audit    repository.AuditLogRepository
	Recorder PenaltyRecorder
	Notifier NotificationService
	Wallet   WalletService
	Queues   *RequestQueues
	Lock     InspectionLock

	LeaseTTL    time.Duration
	FineDueDays int
	Now         func() time.Time
}

type returnService struct {
	deps ReturnDeps

	mu         sync.Mutex
	sessions   map[int32]*domain.Inspection
	submitting map[int32]bool
}

func NewReturnService(deps ReturnDeps) ReturnService {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.LeaseTTL <= 0 {
		deps.LeaseTTL = 30 * time.Minute
	}
	if deps.FineDueDays <= 0 {
		deps.FineDueDays = utils.DefaultFineDueDays
	}
	if deps.Lock == nil {
		deps.Lock = NewLocalInspectionLock()
	}
	return &returnService{
		deps:       deps,
		sessions:   make(map[int32]*domain.Inspection),
		submitting: make(map[int32]bool),
	}
}

func (s *returnService) OpenInspection(ctx context.Context, adminID, requestID int32) (*domain.Inspection, error) {
	logger.EnterMethod("returnService.OpenInspection", "adminID", adminID, "requestID", requestID)

	req, err := s.deps.Requests.GetByID(ctx, requestID)
	if err != nil {
		logger.ExitMethodWithError("returnService.OpenInspection", err, "requestID", requestID)
		return nil, fmt.Errorf("borrowing request %d: %w", requestID, err)
	}
	if req.Status != domain.BorrowingStatusApproved {
		err := fmt.Errorf("%w: request %d is %s, only APPROVED requests can be inspected", ErrInvalidTransition, requestID, req.Status)
		logger.ExitMethodWithError("returnService.OpenInspection", err)
		return nil, err
	}

	ok, err := s.deps.Lock.Acquire(ctx, requestID, adminID, s.deps.LeaseTTL)
	if err != nil {
		logger.ExitMethodWithError("returnService.OpenInspection", err, "reason", "lease")
		return nil, fmt.Errorf("failed to acquire inspection lease: %w", err)
	}
	if !ok {
		err := fmt.Errorf("%w: request %d is being inspected by another admin", ErrConflict, requestID)
		logger.ExitMethodWithError("returnService.OpenInspection", err)
		return nil, err
	}

	s.mu.Lock()
	if existing, ok := s.sessions[requestID]; ok && existing.AdminID == adminID {
		out := cloneInspection(existing)
		s.mu.Unlock()
		logger.ExitMethod("returnService.OpenInspection", "requestID", requestID, "resumed", true)
		return out, nil
	}
	s.mu.Unlock()

	if _, err := s.deps.Kits.GetKit(ctx, req.KitID); err != nil {
		_ = s.deps.Lock.Release(ctx, requestID, adminID)
		logger.ExitMethodWithError("returnService.OpenInspection", err, "kitID", req.KitID)
		return nil, fmt.Errorf("kit %d: %w", req.KitID, err)
	}
	components, err := s.deps.Kits.GetRequestComponents(ctx, requestID)
	if err == nil && len(components) == 0 {
		err = fmt.Errorf("%w: request %d has no components", ErrNotFound, requestID)
	}
	if err != nil {
		_ = s.deps.Lock.Release(ctx, requestID, adminID)
		logger.ExitMethodWithError("returnService.OpenInspection", err, "requestID", requestID)
		return nil, err
	}

	insp := &domain.Inspection{
		RequestID:  requestID,
		AdminID:    adminID,
		Request:    *req,
		Components: components,
		Assessment: domain.DamageAssessment{},
		State:      domain.InspectionStateAwaiting,
		OpenedAt:   s.deps.Now(),
	}

	s.mu.Lock()
	s.sessions[requestID] = insp
	out := cloneInspection(insp)
	s.mu.Unlock()

	logger.ExitMethod("returnService.OpenInspection", "requestID", requestID, "components", len(components))
	return out, nil
}

func (s *returnService) GetInspection(ctx context.Context, adminID, requestID int32) (*domain.Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	insp, err := s.sessionLocked(adminID, requestID)
	if err != nil {
		return nil, err
	}
	return cloneInspection(insp), nil
}

func (s *returnService) SetComponentDamage(ctx context.Context, adminID, requestID int32, componentName string, damaged bool, value *int64) (*domain.Inspection, error) {
	if value != nil && *value < 0 {
		return nil, fmt.Errorf("%w: damage value must not be negative", ErrValidation)
	}
	return s.mutate(adminID, requestID, func(insp *domain.Inspection) error {
		comp, ok := findComponent(insp.Components, componentName)
		if !ok {
			return fmt.Errorf("%w: component %q is not part of request %d", ErrNotFound, componentName, requestID)
		}
		entry := insp.Assessment[componentName]
		entry.ComponentID = comp.ComponentID
		switch {
		case value != nil:
			entry.Value = *value
		case damaged && !entry.Damaged && entry.Value == 0:
			entry.Value = comp.ReferencePrice
		}
		entry.Damaged = damaged
		insp.Assessment[componentName] = entry
		return nil
	})
}

func (s *returnService) AttachEvidence(ctx context.Context, adminID, requestID int32, componentName, imageURL string) (*domain.Inspection, error) {
	if imageURL == "" {
		return nil, fmt.Errorf("%w: evidence image url is required", ErrValidation)
	}
	return s.mutate(adminID, requestID, func(insp *domain.Inspection) error {
		comp, ok := findComponent(insp.Components, componentName)
		if !ok {
			return fmt.Errorf("%w: component %q is not part of request %d", ErrNotFound, componentName, requestID)
		}
		entry := insp.Assessment[componentName]
		entry.ComponentID = comp.ComponentID
		url := imageURL
		entry.EvidenceImageURL = &url
		insp.Assessment[componentName] = entry
		return nil
	})
}

func (s *returnService) SelectPolicies(ctx context.Context, adminID, requestID int32, policyIDs []int32) (*domain.Inspection, error) {
	ids := slices.Clone(policyIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var policies []domain.PenaltyPolicy
	if len(ids) > 0 {
		found, err := s.deps.Policies.GetByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load penalty policies: %w", err)
		}
		if len(found) != len(ids) {
			return nil, fmt.Errorf("%w: %d of %d penalty policies exist", ErrNotFound, len(found), len(ids))
		}
		policies = found
	}

	return s.mutate(adminID, requestID, func(insp *domain.Inspection) error {
		insp.Policies = policies
		return nil
	})
}

func (s *returnService) CancelInspection(ctx context.Context, adminID, requestID int32) error {
	s.mu.Lock()
	if _, err := s.sessionLocked(adminID, requestID); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.submitting[requestID] {
		s.mu.Unlock()
		return fmt.Errorf("%w: inspection of request %d is being submitted", ErrConflict, requestID)
	}
	delete(s.sessions, requestID)
	s.mu.Unlock()

	if err := s.deps.Lock.Release(ctx, requestID, adminID); err != nil {
		logger.Warn("Failed to release inspection lease", "requestID", requestID, "error", err)
	}
	logger.Info("Inspection cancelled", "requestID", requestID, "adminID", adminID)
	return nil
}

// mutate applies fn to the open session and re-evaluates the fine.
func (s *returnService) mutate(adminID, requestID int32, fn func(*domain.Inspection) error) (*domain.Inspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	insp, err := s.sessionLocked(adminID, requestID)
	if err != nil {
		return nil, err
	}
	if s.submitting[requestID] {
		return nil, fmt.Errorf("%w: inspection of request %d is being submitted", ErrConflict, requestID)
	}
	if err := fn(insp); err != nil {
		return nil, err
	}

	b := utils.EvaluateFine(insp.Assessment, insp.Policies)
	insp.Total = b.Total
	insp.Breakdown = b.Items
	insp.State = domain.InspectionStateFineComputed
	return cloneInspection(insp), nil
}

func (s *returnService) sessionLocked(adminID, requestID int32) (*domain.Inspection, error) {
	insp, ok := s.sessions[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: no open inspection for request %d", ErrNotFound, requestID)
	}
	if insp.AdminID != adminID {
		return nil, fmt.Errorf("%w: inspection of request %d belongs to admin %d", ErrConflict, requestID, insp.AdminID)
	}
	return insp, nil
}

func (s *returnService) setState(requestID int32, state domain.InspectionState) {
	s.mu.Lock()
	if insp, ok := s.sessions[requestID]; ok {
		insp.State = state
	}
	s.mu.Unlock()
}

// returnRun carries the state of one submission through the pipeline.
type returnRun struct {
	adminID  int32
	insp     *domain.Inspection
	req      domain.BorrowingRequest
	now      time.Time
	items    []domain.BreakdownItem
	account  *domain.Account
	group    *domain.Group
	returned bool
	outcome  domain.ReturnOutcome
}

func (r *returnRun) penaltyPath() bool { return r.outcome.Path == domain.ReturnPathPenalty }

type returnStep struct {
	name string
	kind ErrorKind
	// fatal steps run before the RETURNED write and abort the submission.
	fatal bool
	run   func(ctx context.Context, r *returnRun) error
}

func (s *returnService) steps() []returnStep {
	return []returnStep{
		{name: "validate", kind: KindDependency, fatal: true, run: s.stepValidate},
		{name: "evaluate", kind: KindDependency, fatal: true, run: s.stepEvaluate},
		{name: "resolve_account", kind: KindDependency, fatal: true, run: s.stepResolveAccount},
		{name: "record_penalty", kind: KindDependency, fatal: true, run: s.stepRecordPenalty},
		{name: "mark_returned", kind: KindDependency, fatal: true, run: s.stepMarkReturned},
		{name: "issue_fine", kind: KindDependency, run: s.stepIssueFine},
		{name: "audit", kind: KindDependency, run: s.stepAudit},
		{name: "notify", kind: KindNotification, run: s.stepNotify},
	}
}

func (s *returnService) SubmitInspection(ctx context.Context, adminID, requestID int32) (*domain.ReturnOutcome, error) {
	logger.EnterMethod("returnService.SubmitInspection", "adminID", adminID, "requestID", requestID)

	s.mu.Lock()
	insp, err := s.sessionLocked(adminID, requestID)
	if err != nil {
		s.mu.Unlock()
		logger.ExitMethodWithError("returnService.SubmitInspection", err)
		return nil, err
	}
	if s.submitting[requestID] {
		s.mu.Unlock()
		err := fmt.Errorf("%w: inspection of request %d is already being submitted", ErrConflict, requestID)
		logger.ExitMethodWithError("returnService.SubmitInspection", err)
		return nil, err
	}
	s.submitting[requestID] = true
	run := &returnRun{adminID: adminID, insp: cloneInspection(insp), now: s.deps.Now()}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.submitting, requestID)
		s.mu.Unlock()
	}()

	for _, step := range s.steps() {
		err := step.run(ctx, run)
		if err == nil {
			logger.PipelineStep(step.name, requestID, "path", run.outcome.Path, "total", run.outcome.Total)
			continue
		}

		kind := KindOf(err)
		if kind == KindDependency {
			kind = step.kind
		}
		if step.fatal {
			stepErr := &StepError{Step: step.name, Kind: kind, RequestID: requestID, Amount: run.outcome.Total, Err: err}
			logger.PipelineAbort(step.name, requestID, err, "kind", kind, "amount", run.outcome.Total)
			s.setState(requestID, domain.InspectionStateFineComputed)
			logger.ExitMethodWithError("returnService.SubmitInspection", stepErr)
			return nil, stepErr
		}

		warning := fmt.Sprintf("%s (%s): %v", step.name, kind, err)
		run.outcome.Warnings = append(run.outcome.Warnings, warning)
		logger.Warn("Return pipeline step failed after RETURNED", "step", step.name, "request_id", requestID, "kind", kind, "amount", run.outcome.Total, "error", err)
	}

	s.complete(ctx, run)

	logger.ExitMethod("returnService.SubmitInspection", "requestID", requestID, "path", run.outcome.Path, "total", run.outcome.Total, "warnings", len(run.outcome.Warnings))
	out := run.outcome
	return &out, nil
}

func (s *returnService) stepValidate(ctx context.Context, r *returnRun) error {
	req, err := s.deps.Requests.GetByID(ctx, r.insp.RequestID)
	if err != nil {
		return err
	}
	if !req.Status.CanTransitionTo(domain.BorrowingStatusReturned) {
		return fmt.Errorf("%w: request %d is %s", ErrInvalidTransition, req.ID, req.Status)
	}
	// Renew the lease before the first write; it may have expired while the inspection sat open.
	ok, err := s.deps.Lock.Acquire(ctx, req.ID, r.adminID, s.deps.LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to renew inspection lease: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: inspection lease on request %d expired and is held by another admin", ErrConflict, req.ID)
	}
	for name, entry := range r.insp.Assessment {
		if entry.Value < 0 {
			return fmt.Errorf("%w: negative value for %q", ErrValidation, name)
		}
	}
	r.req = *req
	r.outcome.Request = *req
	return nil
}

func (s *returnService) stepEvaluate(ctx context.Context, r *returnRun) error {
	b := utils.EvaluateFine(r.insp.Assessment, r.insp.Policies)
	r.items = b.Items
	r.outcome.Total = b.Total
	if b.Total > 0 {
		r.outcome.Path = domain.ReturnPathPenalty
		s.setState(r.insp.RequestID, domain.InspectionStatePenaltyPath)
	} else {
		r.outcome.Path = domain.ReturnPathClean
		s.setState(r.insp.RequestID, domain.InspectionStateCleanPath)
	}
	return nil
}

func (s *returnService) stepResolveAccount(ctx context.Context, r *returnRun) error {
	if !r.penaltyPath() {
		return nil
	}
	account, err := s.deps.Accounts.GetByID(ctx, r.req.RequesterID)
	if err != nil {
		return fmt.Errorf("requester %d: %w", r.req.RequesterID, err)
	}
	r.account = account
	return nil
}

func (s *returnService) stepRecordPenalty(ctx context.Context, r *returnRun) error {
	if !r.penaltyPath() {
		return s.deps.Recorder.Discard(ctx, r.req.ID)
	}
	p := newPenalty(&r.req, r.outcome.Total, r.items, r.now)
	p.AccountID = r.account.ID
	penalty, details, err := s.deps.Recorder.Record(ctx, p, DetailsFromBreakdown(0, r.items))
	if err != nil {
		return err
	}
	r.outcome.Penalty = penalty
	r.outcome.Details = details
	return nil
}

func (s *returnService) stepMarkReturned(ctx context.Context, r *returnRun) error {
	updated := r.req
	returnedAt := r.now
	updated.Status = domain.BorrowingStatusReturned
	updated.ActualReturnDate = &returnedAt
	updated.IsLate = utils.IsLate(returnedAt, r.req.ExpectReturnDate)

	if err := s.deps.Requests.UpdateStatus(ctx, &updated, domain.BorrowingStatusApproved); err != nil {
		return err
	}
	r.req = updated
	r.returned = true
	r.outcome.Request = updated
	return nil
}

func (s *returnService) stepIssueFine(ctx context.Context, r *returnRun) error {
	if !r.penaltyPath() || r.outcome.Penalty == nil {
		return nil
	}
	group, err := s.deps.Groups.FindGroupFor(ctx, r.req.RequesterID)
	if err != nil {
		return fmt.Errorf("group lookup for requester %d: %w", r.req.RequesterID, err)
	}
	r.group = group

	fine := &domain.Fine{
		RentalID:     r.req.ID,
		PenaltyID:    r.outcome.Penalty.ID,
		KitID:        r.req.KitID,
		StudentEmail: r.account.Email,
		FineAmount:   r.outcome.Total,
		Status:       domain.FineStatusPending,
		CreatedAt:    r.now,
		DueDate:      utils.FineDueDate(r.now, s.deps.FineDueDays),
	}
	if group != nil && group.LeaderEmail != "" {
		leader := group.LeaderEmail
		fine.LeaderEmail = &leader
	}
	if err := s.deps.Fines.Create(ctx, fine); err != nil {
		logger.Error("Fine not issued, re-issue manually", "requestID", r.req.ID, "penaltyID", fine.PenaltyID,
			"amount", fine.FineAmount, "payer", fine.PayerEmail(), "dueDate", fine.DueDate.Format(time.DateOnly), "error", err)
		return err
	}
	r.outcome.Fine = fine
	return nil
}

func (s *returnService) stepAudit(ctx context.Context, r *returnRun) error {
	return s.deps.Audit.Create(ctx, &domain.AuditLog{
		ActorID:  r.adminID,
		Action:   domain.AuditActionReturn,
		EntityID: r.req.ID,
		Detail:   fmt.Sprintf("path=%s total=%d late=%t", r.outcome.Path, r.outcome.Total, r.req.IsLate),
	})
}

func (s *returnService) stepNotify(ctx context.Context, r *returnRun) error {
	attrs := map[string]string{"request_id": strconv.Itoa(int(r.req.ID))}
	var reqs []domain.NotificationRequest

	if r.penaltyPath() {
		due := utils.FineDueDate(r.now, s.deps.FineDueDays)
		if r.outcome.Fine != nil {
			due = r.outcome.Fine.DueDate
		}
		msg := fmt.Sprintf("Your return for borrowing request #%d was inspected. A penalty of %s has been issued and is due by %s.",
			r.req.ID, utils.FormatVND(r.outcome.Total), due.Format("2006-01-02"))
		if r.req.IsLate {
			days := utils.DaysLate(*r.req.ActualReturnDate, r.req.ExpectReturnDate)
			msg += fmt.Sprintf(" The kit was returned %d day(s) late.", days)
		}
		reqs = append(reqs, domain.NotificationRequest{
			UserID:     r.req.RequesterID,
			SubType:    domain.NotificationSubTypePenaltyIssued,
			Title:      "Penalty issued for your kit return",
			Message:    msg,
			Attributes: attrs,
		})
		if r.group != nil && r.group.LeaderID != 0 && r.group.LeaderID != r.req.RequesterID {
			reqs = append(reqs, domain.NotificationRequest{
				UserID:  r.group.LeaderID,
				SubType: domain.NotificationSubTypeGroupPenalty,
				Title:   "Penalty issued to your group",
				Message: fmt.Sprintf("A member of %s was fined %s for borrowing request #%d. The fine is filed against you as group leader.",
					r.group.Name, utils.FormatVND(r.outcome.Total), r.req.ID),
				Attributes: attrs,
			})
		}
		return s.deps.Notifier.Send(ctx, reqs)
	}

	unresolved, err := s.deps.Wallet.HasUnresolvedPenalty(ctx, r.req.ID)
	if err != nil {
		return err
	}
	if unresolved {
		reqs = append(reqs, domain.NotificationRequest{
			UserID:     r.req.RequesterID,
			SubType:    domain.NotificationSubTypeReturnCompleted,
			Title:      "Kit return completed",
			Message:    fmt.Sprintf("Your return for borrowing request #%d is complete.", r.req.ID),
			Attributes: attrs,
		})
	} else {
		reqs = append(reqs, domain.NotificationRequest{
			UserID:     r.req.RequesterID,
			SubType:    domain.NotificationSubTypeDepositRefund,
			Title:      "Deposit refund confirmed",
			Message:    fmt.Sprintf("Your return for borrowing request #%d is complete with no damage. Your deposit of %s will be refunded to your wallet.", r.req.ID, utils.FormatVND(r.req.DepositAmount)),
			Attributes: attrs,
		})
	}
	return s.deps.Notifier.Send(ctx, reqs)
}

// complete clears the session and moves the request to history.
func (s *returnService) complete(ctx context.Context, r *returnRun) {
	requestID := r.insp.RequestID
	if s.deps.Queues != nil {
		s.deps.Queues.Upsert(r.req)
	}

	s.mu.Lock()
	delete(s.sessions, requestID)
	s.mu.Unlock()

	if err := s.deps.Lock.Release(ctx, requestID, r.adminID); err != nil {
		r.outcome.Warnings = append(r.outcome.Warnings, fmt.Sprintf("complete (%s): %v", KindDependency, err))
		logger.Warn("Failed to release inspection lease", "requestID", requestID, "error", err)
	}
	logger.PipelineStep("complete", requestID, "state", domain.InspectionStateCompleted)
}

func findComponent(components []domain.RequestComponent, name string) (domain.RequestComponent, bool) {
	for _, c := range components {
		if c.ComponentName == name {
			return c, true
		}
	}
	return domain.RequestComponent{}, false
}

func cloneInspection(in *domain.Inspection) *domain.Inspection {
	out := *in
	out.Components = slices.Clone(in.Components)
	out.Assessment = maps.Clone(in.Assessment)
	if out.Assessment == nil {
		out.Assessment = domain.DamageAssessment{}
	}
	out.Policies = slices.Clone(in.Policies)
	out.Breakdown = slices.Clone(in.Breakdown)
	return &out
}
