package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apihttp "iotkit-lending-backend/internal/api/http"
	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/security"
	"iotkit-lending-backend/internal/service"
	"iotkit-lending-backend/internal/storage"
)

type fixture struct {
	router   http.Handler
	tokens   security.TokenManager
	approval *MockApprovalService
	returns  *MockReturnService
	wallet   *MockWalletService
	queues   *service.RequestQueues
}

func newFixture(t *testing.T, files storage.StorageInterface) *fixture {
	t.Helper()
	f := &fixture{
		tokens:   security.NewTokenManager("test-secret"),
		approval: new(MockApprovalService),
		returns:  new(MockReturnService),
		wallet:   new(MockWalletService),
		queues:   service.NewRequestQueues(nil),
	}
	f.router = apihttp.NewRouter(apihttp.Deps{
		Approval: f.approval,
		Returns:  f.returns,
		Wallet:   f.wallet,
		Queues:   f.queues,
		Files:    files,
		Tokens:   f.tokens,
		Health:   func(ctx context.Context) error { return nil },
	})
	return f
}

func (f *fixture) token(t *testing.T, userID int32, roles ...string) string {
	t.Helper()
	tok, err := f.tokens.GenerateAccessToken(userID, "user@uni.edu", roles, time.Hour)
	require.NoError(t, err)
	return tok
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

type errorEnvelope struct {
	Error struct {
		Kind      string `json:"kind"`
		Step      string `json:"step"`
		RequestID int32  `json:"request_id"`
		Amount    int64  `json:"amount"`
	} `json:"error"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestRouter_Auth(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/queues/approval", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/queues/approval", "not-a-jwt", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/queues/approval", f.token(t, 21), "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.queues.Upsert(domain.BorrowingRequest{ID: 3, Status: domain.BorrowingStatusPending})
	rec = f.do(t, http.MethodGet, "/api/v1/queues/approval", f.token(t, 1, security.RoleAdmin), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data []domain.BorrowingRequest `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.Len(t, env.Data, 1)
	assert.Equal(t, int32(3), env.Data[0].ID)
}

func TestRouter_AccessRoutesAcceptStudents(t *testing.T) {
	f := newFixture(t, nil)
	f.wallet.On("GetSummary", mock.Anything, int32(21)).Return(&domain.WalletSummary{Balance: 5000}, nil).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/me/wallet", f.token(t, 21), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"balance":5000`)
	f.wallet.AssertExpectations(t)
}

func TestRouter_ApproveAndReject(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.token(t, 1, security.RoleAdmin)

	f.approval.On("Approve", mock.Anything, int32(1), int32(3)).
		Return(&domain.BorrowingRequest{ID: 3, Status: domain.BorrowingStatusApproved}, nil).Once()
	rec := f.do(t, http.MethodPost, "/api/v1/requests/3/approve", admin, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.approval.On("Approve", mock.Anything, int32(1), int32(4)).
		Return(nil, service.ErrInvalidTransition).Once()
	rec = f.do(t, http.MethodPost, "/api/v1/requests/4/approve", admin, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation", decodeError(t, rec).Error.Kind)

	f.approval.On("Reject", mock.Anything, int32(1), int32(3), "kit reserved").
		Return(nil, service.ErrConflict).Once()
	rec = f.do(t, http.MethodPost, "/api/v1/requests/3/reject", admin, `{"reason":"kit reserved"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/requests/3/reject", admin, `{`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.approval.AssertExpectations(t)
}

func TestRouter_Inspection(t *testing.T) {
	f := newFixture(t, nil)
	admin := f.token(t, 1, security.RoleAdmin)

	t.Run("DamageWithValue", func(t *testing.T) {
		f.returns.On("SetComponentDamage", mock.Anything, int32(1), int32(7), "Arduino Uno", true,
			mock.MatchedBy(func(v *int64) bool { return v != nil && *v == 120000 })).
			Return(&domain.Inspection{RequestID: 7, Total: 120000}, nil).Once()

		rec := f.do(t, http.MethodPut, "/api/v1/inspections/7/damage", admin, `{"component_name":"Arduino Uno","damaged":true,"value":120000}`)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"total":120000`)
	})

	t.Run("DamageDefaultValue", func(t *testing.T) {
		f.returns.On("SetComponentDamage", mock.Anything, int32(1), int32(7), "DHT22 Sensor", true, (*int64)(nil)).
			Return(&domain.Inspection{RequestID: 7}, nil).Once()

		rec := f.do(t, http.MethodPut, "/api/v1/inspections/7/damage", admin, `{"component_name":"DHT22 Sensor","damaged":true}`)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("SubmitStepFailure", func(t *testing.T) {
		stepErr := &service.StepError{Step: "record_penalty", Kind: service.KindDependency, RequestID: 7, Amount: 200000, Err: errors.New("db down")}
		f.returns.On("SubmitInspection", mock.Anything, int32(1), int32(7)).Return(nil, stepErr).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/inspections/7/submit", admin, "")
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		env := decodeError(t, rec)
		assert.Equal(t, "record_penalty", env.Error.Step)
		assert.Equal(t, int32(7), env.Error.RequestID)
		assert.Equal(t, int64(200000), env.Error.Amount)
	})

	t.Run("HeldByAnotherAdmin", func(t *testing.T) {
		f.returns.On("OpenInspection", mock.Anything, int32(1), int32(8)).Return(nil, service.ErrConflict).Once()

		rec := f.do(t, http.MethodPost, "/api/v1/inspections/8", admin, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("Cancel", func(t *testing.T) {
		f.returns.On("CancelInspection", mock.Anything, int32(1), int32(7)).Return(nil).Once()

		rec := f.do(t, http.MethodDelete, "/api/v1/inspections/7", admin, "")
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	f.returns.AssertExpectations(t)
}

func TestRouter_UnknownErrorIsInternal(t *testing.T) {
	f := newFixture(t, nil)
	f.approval.On("GetRequest", mock.Anything, int32(3)).Return(nil, errors.New("connection reset")).Once()

	rec := f.do(t, http.MethodGet, "/api/v1/requests/3", f.token(t, 1, security.RoleAdmin), "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestRouter_Files(t *testing.T) {
	store, err := storage.NewLocalStorage("http://localhost:8080", t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.PutObject(context.Background(), "evidence/7/a.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"), 10))

	f := newFixture(t, store)

	rec := f.do(t, http.MethodGet, "/files/evidence/7/a.jpg", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg-bytes", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/files/evidence/7/missing.jpg", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
