package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/service"
	"iotkit-lending-backend/internal/utils"
)

type returnFixture struct {
	requests  *MockBorrowingRequestRepo
	kits      *MockKitRepo
	policies  *MockPolicyRepo
	accounts  *MockAccountRepo
	groups    *MockGroupRepo
	fines     *MockFineRepo
	audit     *MockAuditRepo
	penalties *MockPenaltyRepo
	notifier  *MockNotificationService
	wallet    *MockWalletService
	queues    *service.RequestQueues
	lock      *service.LocalInspectionLock
	now       time.Time
	svc       service.ReturnService
}

func newReturnFixture(now time.Time) *returnFixture {
	f := &returnFixture{
		requests:  new(MockBorrowingRequestRepo),
		kits:      new(MockKitRepo),
		policies:  new(MockPolicyRepo),
		accounts:  new(MockAccountRepo),
		groups:    new(MockGroupRepo),
		fines:     new(MockFineRepo),
		audit:     new(MockAuditRepo),
		penalties: new(MockPenaltyRepo),
		notifier:  new(MockNotificationService),
		wallet:    new(MockWalletService),
		queues:    service.NewRequestQueues(nil),
		lock:      service.NewLocalInspectionLock(),
		now:       now,
	}
	f.svc = service.NewReturnService(service.ReturnDeps{
		Requests:    f.requests,
		Kits:        f.kits,
		Policies:    f.policies,
		Accounts:    f.accounts,
		Groups:      f.groups,
		Fines:       f.fines,
		Audit:       f.audit,
		Recorder:    service.NewPenaltyRecorder(f.penalties),
		Notifier:    f.notifier,
		Wallet:      f.wallet,
		Queues:      f.queues,
		Lock:        f.lock,
		LeaseTTL:    time.Hour,
		FineDueDays: 7,
		Now:         func() time.Time { return now },
	})
	return f
}

func approvedRequest() *domain.BorrowingRequest {
	expect := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	approved := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	return &domain.BorrowingRequest{
		ID:               7,
		KitID:            3,
		RequesterID:      21,
		RequestType:      domain.RequestTypeBorrowKit,
		DepositAmount:    200000,
		Status:           domain.BorrowingStatusApproved,
		CreatedAt:        time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC),
		ApprovedDate:     &approved,
		ExpectReturnDate: &expect,
	}
}

func (f *returnFixture) expectOpen(req *domain.BorrowingRequest) {
	f.requests.On("GetByID", mock.Anything, req.ID).Return(req, nil)
	f.kits.On("GetKit", mock.Anything, req.KitID).Return(&domain.Kit{ID: req.KitID, KitName: "IoT Starter Kit"}, nil)
	f.kits.On("GetRequestComponents", mock.Anything, req.ID).Return([]domain.RequestComponent{
		{ComponentID: 11, ComponentName: "Arduino Uno", Quantity: 1, ReferencePrice: 150000},
		{ComponentID: 12, ComponentName: "DHT22 Sensor", Quantity: 2, ReferencePrice: 40000},
	}, nil)
}

func TestReturnService_ArduinoDamage(t *testing.T) {
	now := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	f := newReturnFixture(now)
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	insp, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InspectionStateAwaiting, insp.State)
	assert.Len(t, insp.Components, 2)

	insp, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), insp.Assessment["Arduino Uno"].Value)
	assert.Equal(t, int64(150000), insp.Total)
	assert.Equal(t, domain.InspectionStateFineComputed, insp.State)

	var calls []string
	f.accounts.On("GetByID", mock.Anything, int32(21)).Return(&domain.Account{ID: 21, Email: "student@uni.edu"}, nil)
	f.penalties.On("GetByBorrowRequest", mock.Anything, int32(7)).Return(nil, repository.ErrNotFound)
	f.penalties.On("Create", mock.Anything, mock.MatchedBy(func(p *domain.Penalty) bool {
		return p.TotalAmount == 150000 && p.BorrowRequestID == 7 && p.AccountID == 21 && !p.Resolved
	})).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Penalty).ID = 5
		calls = append(calls, "createPenalty")
	}).Return(nil).Once()
	f.penalties.On("CreateDetails", mock.Anything, mock.MatchedBy(func(d []domain.PenaltyDetail) bool {
		return len(d) == 1 && d[0].PenaltyID == 5 && d[0].Amount == 150000 && d[0].PoliciesID == nil && d[0].Description == "Arduino Uno"
	})).Run(func(args mock.Arguments) {
		calls = append(calls, "createPenaltyDetails")
	}).Return([]int32{9}, nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(r *domain.BorrowingRequest) bool {
		return r.Status == domain.BorrowingStatusReturned && r.IsLate && r.ActualReturnDate != nil && r.ActualReturnDate.Equal(now)
	}), domain.BorrowingStatusApproved).Run(func(args mock.Arguments) {
		calls = append(calls, "updateStatus")
	}).Return(nil).Once()
	f.groups.On("FindGroupFor", mock.Anything, int32(21)).Return(&domain.Group{ID: 2, Name: "Team A", LeaderID: 30, LeaderEmail: "leader@uni.edu"}, nil)
	f.fines.On("Create", mock.Anything, mock.MatchedBy(func(fine *domain.Fine) bool {
		return fine.FineAmount == 150000 && fine.PenaltyID == 5 && fine.StudentEmail == "student@uni.edu" &&
			fine.LeaderEmail != nil && *fine.LeaderEmail == "leader@uni.edu" &&
			fine.DueDate.Equal(utils.FineDueDate(now, 7))
	})).Return(nil).Once()
	f.audit.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.AuditLog) bool {
		return e.Action == domain.AuditActionReturn && e.EntityID == 7 && e.ActorID == 1
	})).Return(nil).Once()
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(reqs []domain.NotificationRequest) bool {
		return len(reqs) == 2 &&
			reqs[0].UserID == 21 && reqs[0].SubType == domain.NotificationSubTypePenaltyIssued &&
			strings.Contains(reqs[0].Message, "returned 1 day(s) late") &&
			reqs[1].UserID == 30 && reqs[1].SubType == domain.NotificationSubTypeGroupPenalty
	})).Return(nil).Once()

	out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnPathPenalty, out.Path)
	assert.Equal(t, int64(150000), out.Total)
	require.Len(t, out.Details, 1)
	assert.Equal(t, int32(9), out.Details[0].ID)
	assert.Nil(t, out.Details[0].PoliciesID)
	assert.Equal(t, utils.SumDetails(out.Details), out.Penalty.TotalAmount)
	require.NotNil(t, out.Fine)
	assert.Equal(t, "leader@uni.edu", out.Fine.PayerEmail())
	assert.Empty(t, out.Warnings)
	assert.Equal(t, domain.BorrowingStatusReturned, out.Request.Status)
	assert.True(t, out.Request.IsLate)

	assert.Equal(t, []string{"createPenalty", "createPenaltyDetails", "updateStatus"}, calls)

	_, queue, ok := f.queues.Get(req.ID)
	assert.True(t, ok)
	assert.Equal(t, service.QueueHistory, queue)

	_, err = f.svc.GetInspection(ctx, 1, req.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	f.penalties.AssertExpectations(t)
	f.requests.AssertExpectations(t)
	f.fines.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestReturnService_LateReturnPolicy(t *testing.T) {
	now := time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC)
	f := newReturnFixture(now)
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)

	f.policies.On("GetByIDs", mock.Anything, []int32{4}).Return([]domain.PenaltyPolicy{
		{ID: 4, PolicyName: "Late Return", Type: "LATE", Amount: 50000},
	}, nil).Once()
	insp, err := f.svc.SelectPolicies(ctx, 1, req.ID, []int32{4, 4})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), insp.Total)
	require.Len(t, insp.Breakdown, 1)

	f.accounts.On("GetByID", mock.Anything, int32(21)).Return(&domain.Account{ID: 21, Email: "student@uni.edu"}, nil)
	f.penalties.On("GetByBorrowRequest", mock.Anything, int32(7)).Return(nil, repository.ErrNotFound)
	f.penalties.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Penalty).ID = 6
	}).Return(nil).Once()
	f.penalties.On("CreateDetails", mock.Anything, mock.MatchedBy(func(d []domain.PenaltyDetail) bool {
		return len(d) == 1 && d[0].Amount == 50000 && d[0].PoliciesID != nil && *d[0].PoliciesID == 4
	})).Return([]int32{10}, nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Return(nil).Once()
	f.groups.On("FindGroupFor", mock.Anything, int32(21)).Return(nil, nil)
	f.fines.On("Create", mock.Anything, mock.MatchedBy(func(fine *domain.Fine) bool {
		return fine.LeaderEmail == nil && fine.PayerEmail() == "student@uni.edu"
	})).Return(nil).Once()
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(reqs []domain.NotificationRequest) bool {
		return len(reqs) == 1 && reqs[0].SubType == domain.NotificationSubTypePenaltyIssued
	})).Return(nil).Once()

	out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), out.Total)
	require.Len(t, out.Details, 1)
	require.NotNil(t, out.Details[0].PoliciesID)
	assert.Equal(t, int32(4), *out.Details[0].PoliciesID)
	f.penalties.AssertExpectations(t)
}

func TestReturnService_CleanReturn(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	f := newReturnFixture(now)
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)

	f.penalties.On("DeleteUnresolved", mock.Anything, int32(7)).Return(int32(0), nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(r *domain.BorrowingRequest) bool {
		// returned exactly at the expected date is on time
		return r.Status == domain.BorrowingStatusReturned && !r.IsLate
	}), domain.BorrowingStatusApproved).Return(nil).Once()
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.wallet.On("HasUnresolvedPenalty", mock.Anything, int32(7)).Return(false, nil).Once()
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(reqs []domain.NotificationRequest) bool {
		return len(reqs) == 1 && reqs[0].SubType == domain.NotificationSubTypeDepositRefund && reqs[0].UserID == 21
	})).Return(nil).Once()

	out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReturnPathClean, out.Path)
	assert.Zero(t, out.Total)
	assert.Nil(t, out.Penalty)
	assert.Nil(t, out.Fine)

	f.penalties.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.penalties.AssertNotCalled(t, "CreateDetails", mock.Anything, mock.Anything)
	f.fines.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.wallet.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestReturnService_PenaltyFailureKeepsRequestApproved(t *testing.T) {
	f := newReturnFixture(time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, nil)
	require.NoError(t, err)

	f.accounts.On("GetByID", mock.Anything, int32(21)).Return(&domain.Account{ID: 21, Email: "student@uni.edu"}, nil)
	f.penalties.On("GetByBorrowRequest", mock.Anything, int32(7)).Return(nil, repository.ErrNotFound)
	f.penalties.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset")).Once()

	out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
	assert.Nil(t, out)
	var stepErr *service.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "record_penalty", stepErr.Step)
	assert.Equal(t, service.KindDependency, stepErr.Kind)
	assert.Equal(t, int64(150000), stepErr.Amount)
	assert.Equal(t, int32(7), stepErr.RequestID)

	f.requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)

	// The session survives so the inspector can retry.
	insp, err := f.svc.GetInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150000), insp.Total)
}

// submitUntilMarkReturnedFails records the 150000 Arduino penalty as id 5 and
// then fails the RETURNED write, leaving the request APPROVED.
func (f *returnFixture) submitUntilMarkReturnedFails(t *testing.T, ctx context.Context) {
	t.Helper()
	f.accounts.On("GetByID", mock.Anything, int32(21)).Return(&domain.Account{ID: 21, Email: "student@uni.edu"}, nil)
	f.penalties.On("GetByBorrowRequest", mock.Anything, int32(7)).Return(nil, repository.ErrNotFound).Once()
	f.penalties.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Penalty).ID = 5
	}).Return(nil).Once()
	f.penalties.On("CreateDetails", mock.Anything, mock.Anything).Return([]int32{9}, nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Return(errors.New("connection reset")).Once()

	_, err := f.svc.SubmitInspection(ctx, 1, 7)
	var stepErr *service.StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "mark_returned", stepErr.Step)
}

func TestReturnService_RetryAfterMarkReturnedFailure(t *testing.T) {
	now := time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC)
	stored := &domain.Penalty{ID: 5, BorrowRequestID: 7, AccountID: 21, TotalAmount: 150000, Note: "Damaged components: Arduino Uno"}
	storedDetails := []domain.PenaltyDetail{{ID: 9, PenaltyID: 5, Description: "Arduino Uno", Amount: 150000}}

	t.Run("CorrectedAssessmentReplacesPenalty", func(t *testing.T) {
		f := newReturnFixture(now)
		ctx := context.Background()
		req := approvedRequest()
		f.expectOpen(req)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, nil)
		require.NoError(t, err)
		f.submitUntilMarkReturnedFails(t, ctx)

		corrected := int64(120000)
		insp, err := f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, &corrected)
		require.NoError(t, err)
		assert.Equal(t, int64(120000), insp.Total)

		f.penalties.On("GetByBorrowRequest", mock.Anything, int32(7)).Return(stored, nil).Once()
		f.penalties.On("ListDetails", mock.Anything, int32(5)).Return(storedDetails, nil).Once()
		f.penalties.On("ReplaceDetails", mock.Anything, int32(5), int64(120000), "Damaged components: Arduino Uno",
			mock.MatchedBy(func(d []domain.PenaltyDetail) bool {
				return len(d) == 1 && d[0].PenaltyID == 5 && d[0].Amount == 120000
			})).Return([]int32{10}, nil).Once()
		f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Return(nil).Once()
		f.groups.On("FindGroupFor", mock.Anything, int32(21)).Return(nil, nil)
		f.fines.On("Create", mock.Anything, mock.MatchedBy(func(fine *domain.Fine) bool {
			return fine.PenaltyID == 5 && fine.FineAmount == 120000
		})).Return(nil).Once()
		f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

		out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnPathPenalty, out.Path)
		assert.Equal(t, domain.BorrowingStatusReturned, out.Request.Status)
		assert.Equal(t, int32(5), out.Penalty.ID)
		assert.Equal(t, int64(120000), out.Penalty.TotalAmount)
		assert.Equal(t, utils.SumDetails(out.Details), out.Penalty.TotalAmount)
		assert.Equal(t, int64(120000), out.Fine.FineAmount)
		assert.Empty(t, out.Warnings)
		f.penalties.AssertExpectations(t)
		f.fines.AssertExpectations(t)
	})

	t.Run("ClearedAssessmentDiscardsPenalty", func(t *testing.T) {
		f := newReturnFixture(now)
		ctx := context.Background()
		req := approvedRequest()
		f.expectOpen(req)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, nil)
		require.NoError(t, err)
		f.submitUntilMarkReturnedFails(t, ctx)

		insp, err := f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", false, nil)
		require.NoError(t, err)
		assert.Zero(t, insp.Total)

		var calls []string
		f.penalties.On("DeleteUnresolved", mock.Anything, int32(7)).Run(func(mock.Arguments) {
			calls = append(calls, "discardPenalty")
		}).Return(int32(5), nil).Once()
		f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Run(func(mock.Arguments) {
			calls = append(calls, "updateStatus")
		}).Return(nil).Once()
		f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
		f.wallet.On("HasUnresolvedPenalty", mock.Anything, int32(7)).Return(false, nil).Once()
		f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(reqs []domain.NotificationRequest) bool {
			return len(reqs) == 1 && reqs[0].SubType == domain.NotificationSubTypeDepositRefund
		})).Return(nil).Once()

		out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReturnPathClean, out.Path)
		assert.Equal(t, domain.BorrowingStatusReturned, out.Request.Status)
		assert.Nil(t, out.Penalty)
		assert.Equal(t, []string{"discardPenalty", "updateStatus"}, calls)
		f.fines.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.penalties.AssertExpectations(t)
		f.notifier.AssertExpectations(t)
	})

	t.Run("DiscardFailureKeepsRequestApproved", func(t *testing.T) {
		f := newReturnFixture(now)
		ctx := context.Background()
		req := approvedRequest()
		f.expectOpen(req)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		f.penalties.On("DeleteUnresolved", mock.Anything, int32(7)).Return(int32(0), errors.New("connection reset")).Once()

		_, err = f.svc.SubmitInspection(ctx, 1, req.ID)
		var stepErr *service.StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, "record_penalty", stepErr.Step)
		f.requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestReturnService_FineFailureIsLoggedForReissue(t *testing.T) {
	var buf bytes.Buffer
	logger.InitializeWithWriter(&buf, "info", "json")
	defer logger.Initialize("info", "text")

	f := newReturnFixture(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, nil)
	require.NoError(t, err)

	f.accounts.On("GetByID", mock.Anything, int32(21)).Return(&domain.Account{ID: 21, Email: "student@uni.edu"}, nil)
	f.penalties.On("GetByBorrowRequest", mock.Anything, int32(7)).Return(nil, repository.ErrNotFound).Once()
	f.penalties.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		args.Get(1).(*domain.Penalty).ID = 5
	}).Return(nil).Once()
	f.penalties.On("CreateDetails", mock.Anything, mock.Anything).Return([]int32{9}, nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Return(nil).Once()
	f.groups.On("FindGroupFor", mock.Anything, int32(21)).Return(&domain.Group{ID: 2, LeaderID: 30, LeaderEmail: "leader@uni.edu"}, nil)
	f.fines.On("Create", mock.Anything, mock.Anything).Return(errors.New("fines table locked")).Once()
	f.audit.On("Create", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowingStatusReturned, out.Request.Status)
	assert.Nil(t, out.Fine)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "issue_fine")

	logged := buf.String()
	assert.Contains(t, logged, `"msg":"Fine not issued, re-issue manually"`)
	assert.Contains(t, logged, `"penaltyID":5`)
	assert.Contains(t, logged, `"amount":150000`)
	assert.Contains(t, logged, `"payer":"leader@uni.edu"`)
	assert.Contains(t, logged, `"dueDate":"2024-01-16"`)
}

func TestReturnService_SubmitRenewsLease(t *testing.T) {
	f := newReturnFixture(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)

	// the lease lapsed and another admin picked the request up
	require.NoError(t, f.lock.Release(ctx, req.ID, 1))
	ok, err := f.lock.Acquire(ctx, req.ID, 2, time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.svc.SubmitInspection(ctx, 1, req.ID)
	var stepErr *service.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "validate", stepErr.Step)
	assert.ErrorIs(t, err, service.ErrConflict)
	f.penalties.AssertNotCalled(t, "DeleteUnresolved", mock.Anything, mock.Anything)
	f.requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestReturnService_StatusConflictAborts(t *testing.T) {
	f := newReturnFixture(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)

	f.penalties.On("DeleteUnresolved", mock.Anything, int32(7)).Return(int32(0), nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Return(repository.ErrConflict).Once()

	_, err = f.svc.SubmitInspection(ctx, 1, req.ID)
	var stepErr *service.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "mark_returned", stepErr.Step)
	assert.Equal(t, service.KindConflict, service.KindOf(err))
	assert.ErrorIs(t, err, service.ErrConflict)
	f.audit.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestReturnService_NotificationFailureIsWarning(t *testing.T) {
	f := newReturnFixture(time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)

	f.penalties.On("DeleteUnresolved", mock.Anything, int32(7)).Return(int32(0), nil).Once()
	f.requests.On("UpdateStatus", mock.Anything, mock.Anything, domain.BorrowingStatusApproved).Return(nil).Once()
	f.audit.On("Create", mock.Anything, mock.Anything).Return(errors.New("audit table locked"))
	f.wallet.On("HasUnresolvedPenalty", mock.Anything, int32(7)).Return(false, nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp timeout")).Once()

	out, err := f.svc.SubmitInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowingStatusReturned, out.Request.Status)
	require.Len(t, out.Warnings, 2)
	assert.Contains(t, out.Warnings[0], "audit")
	assert.Contains(t, out.Warnings[1], "notify (notification)")
}

func TestReturnService_OpenInspection(t *testing.T) {
	ctx := context.Background()

	t.Run("RejectsNonApproved", func(t *testing.T) {
		f := newReturnFixture(time.Now())
		req := approvedRequest()
		req.Status = domain.BorrowingStatusBorrowed
		f.requests.On("GetByID", mock.Anything, req.ID).Return(req, nil)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		assert.ErrorIs(t, err, service.ErrInvalidTransition)
	})

	t.Run("SecondInspectorIsRefused", func(t *testing.T) {
		f := newReturnFixture(time.Now())
		req := approvedRequest()
		f.expectOpen(req)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		_, err = f.svc.OpenInspection(ctx, 2, req.ID)
		assert.ErrorIs(t, err, service.ErrConflict)

		// the holder resumes its own session
		insp, err := f.svc.OpenInspection(ctx, 1, req.ID)
		require.NoError(t, err)
		assert.Equal(t, int32(1), insp.AdminID)
	})

	t.Run("MissingComponentsReleaseLease", func(t *testing.T) {
		f := newReturnFixture(time.Now())
		req := approvedRequest()
		f.requests.On("GetByID", mock.Anything, req.ID).Return(req, nil)
		f.kits.On("GetKit", mock.Anything, req.KitID).Return(&domain.Kit{ID: req.KitID}, nil)
		f.kits.On("GetRequestComponents", mock.Anything, req.ID).Return([]domain.RequestComponent{}, nil)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		assert.ErrorIs(t, err, service.ErrNotFound)

		ok, err := f.lock.Acquire(ctx, req.ID, 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("MissingKit", func(t *testing.T) {
		f := newReturnFixture(time.Now())
		req := approvedRequest()
		f.requests.On("GetByID", mock.Anything, req.ID).Return(req, nil)
		f.kits.On("GetKit", mock.Anything, req.KitID).Return(nil, repository.ErrNotFound)

		_, err := f.svc.OpenInspection(ctx, 1, req.ID)
		assert.Equal(t, service.KindNotFound, service.KindOf(err))
	})
}

func TestReturnService_Assessment(t *testing.T) {
	ctx := context.Background()
	f := newReturnFixture(time.Now())
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)

	value := int64(25000)
	insp, err := f.svc.SetComponentDamage(ctx, 1, req.ID, "DHT22 Sensor", true, &value)
	require.NoError(t, err)
	assert.Equal(t, int64(25000), insp.Total)

	insp, err = f.svc.AttachEvidence(ctx, 1, req.ID, "DHT22 Sensor", "http://files/evidence/7/a.jpg")
	require.NoError(t, err)
	require.NotNil(t, insp.Breakdown[0].ImageURL)
	assert.Equal(t, "http://files/evidence/7/a.jpg", *insp.Breakdown[0].ImageURL)

	// switching damage off keeps the value but drops it from the total
	insp, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "DHT22 Sensor", false, nil)
	require.NoError(t, err)
	assert.Zero(t, insp.Total)
	assert.Equal(t, int64(25000), insp.Assessment["DHT22 Sensor"].Value)

	negative := int64(-1)
	_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "DHT22 Sensor", true, &negative)
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Raspberry Pi", true, nil)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = f.svc.SetComponentDamage(ctx, 2, req.ID, "DHT22 Sensor", true, nil)
	assert.ErrorIs(t, err, service.ErrConflict)

	f.policies.On("GetByIDs", mock.Anything, []int32{8, 99}).Return([]domain.PenaltyPolicy{{ID: 8, Amount: 10000}}, nil).Once()
	_, err = f.svc.SelectPolicies(ctx, 1, req.ID, []int32{99, 8})
	assert.ErrorIs(t, err, service.ErrNotFound)

	// mutations on the returned copy never leak into the session
	insp.Assessment["Arduino Uno"] = domain.ComponentDamage{Damaged: true, Value: 1}
	again, err := f.svc.GetInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	_, leaked := again.Assessment["Arduino Uno"]
	assert.False(t, leaked)
}

func TestReturnService_CancelDiscardsState(t *testing.T) {
	ctx := context.Background()
	f := newReturnFixture(time.Now())
	req := approvedRequest()
	f.expectOpen(req)

	_, err := f.svc.OpenInspection(ctx, 1, req.ID)
	require.NoError(t, err)
	_, err = f.svc.SetComponentDamage(ctx, 1, req.ID, "Arduino Uno", true, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.CancelInspection(ctx, 1, req.ID))

	// another admin can now take it over with a clean slate
	insp, err := f.svc.OpenInspection(ctx, 2, req.ID)
	require.NoError(t, err)
	assert.Empty(t, insp.Assessment)
	assert.Zero(t, insp.Total)

	f.penalties.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.requests.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}
