package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	"iotkit-lending-backend/internal/realtime"
	"iotkit-lending-backend/internal/security"
	"iotkit-lending-backend/internal/service"
	"iotkit-lending-backend/internal/storage"
)

// Deps are the collaborators of the admin API. Files and Hub may be nil.
type Deps struct {
	Approval      service.ApprovalService
	Returns       service.ReturnService
	Evidence      service.EvidenceService
	Catalog       service.CatalogService
	Wallet        service.WalletService
	Notifications service.NotificationService
	Queues        *service.RequestQueues
	Files         storage.StorageInterface
	Hub           *realtime.Hub
	Health        func(ctx context.Context) error
	Tokens        security.TokenManager

	MaxUploadBytes int64
	Timeout        time.Duration
}

type handler struct {
	deps Deps
}

// NewRouter builds the admin API.
func NewRouter(deps Deps) *mux.Router {
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 10 << 20
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 60 * time.Second
	}
	h := &handler{deps: deps}
	auth := NewAuthMiddleware(deps.Tokens)

	router := mux.NewRouter()
	router.Use(middleware.RequestID, middleware.RealIP, requestLogger, middleware.Recoverer)
	router.Use(auth.Handler)

	router.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if deps.Files != nil {
		router.HandleFunc("/files/{key:.+}", NewFileHandler(deps.Files).HandleDownload).Methods(http.MethodGet)
	}
	if deps.Hub != nil {
		router.HandleFunc("/ws", h.websocket).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Timeout(deps.Timeout))

	api.HandleFunc("/queues/approval", h.listQueue(service.QueueApproval)).Methods(http.MethodGet)
	api.HandleFunc("/queues/returns", h.listQueue(service.QueueReturns)).Methods(http.MethodGet)
	api.HandleFunc("/queues/history", h.listHistory).Methods(http.MethodGet)

	api.HandleFunc("/requests/{id:[0-9]+}", h.getRequest).Methods(http.MethodGet)
	api.HandleFunc("/requests/{id:[0-9]+}/approve", h.approve).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id:[0-9]+}/reject", h.reject).Methods(http.MethodPost)
	api.HandleFunc("/requests/{id:[0-9]+}/refund-status", h.refundStatus).Methods(http.MethodGet)

	api.HandleFunc("/inspections/{id:[0-9]+}", h.openInspection).Methods(http.MethodPost)
	api.HandleFunc("/inspections/{id:[0-9]+}", h.getInspection).Methods(http.MethodGet)
	api.HandleFunc("/inspections/{id:[0-9]+}", h.cancelInspection).Methods(http.MethodDelete)
	api.HandleFunc("/inspections/{id:[0-9]+}/damage", h.setDamage).Methods(http.MethodPut)
	api.HandleFunc("/inspections/{id:[0-9]+}/evidence", h.uploadEvidence).Methods(http.MethodPost)
	api.HandleFunc("/inspections/{id:[0-9]+}/policies", h.selectPolicies).Methods(http.MethodPut)
	api.HandleFunc("/inspections/{id:[0-9]+}/submit", h.submitInspection).Methods(http.MethodPost)

	api.HandleFunc("/kits/{id:[0-9]+}", h.getKit).Methods(http.MethodGet)
	api.HandleFunc("/penalty-policies", h.listPolicies).Methods(http.MethodGet)
	api.HandleFunc("/penalties/unresolved", h.listUnresolved).Methods(http.MethodGet)
	api.HandleFunc("/penalties/{id:[0-9]+}/details", h.penaltyDetails).Methods(http.MethodGet)

	api.HandleFunc("/me/fines", h.myFines).Methods(http.MethodGet)
	api.HandleFunc("/me/notifications", h.myNotifications).Methods(http.MethodGet)
	api.HandleFunc("/me/notifications/{id:[0-9]+}/read", h.markRead).Methods(http.MethodPost)
	api.HandleFunc("/me/wallet", h.myWallet).Methods(http.MethodGet)
	api.HandleFunc("/me/transactions", h.myTransactions).Methods(http.MethodGet)

	return router
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if h.deps.Health != nil {
		if err := h.deps.Health(r.Context()); err != nil {
			writeStatusError(w, r, http.StatusServiceUnavailable, "unavailable", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) websocket(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	h.deps.Hub.HandleWebSocket(w, r, claims.UserID, claims.IsAdmin())
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (int32, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 32)
	if err != nil || id <= 0 {
		return 0, false
	}
	return int32(id), true
}

func queryInt32(r *http.Request, name string) int32 {
	v, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 32)
	if err != nil {
		return 0
	}
	return int32(v)
}

// caller returns the authenticated user. Routes behind the auth middleware always have one.
func caller(r *http.Request) *security.UserClaims {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		return &security.UserClaims{}
	}
	return claims
}

func badID(w http.ResponseWriter, r *http.Request) {
	writeStatusError(w, r, http.StatusBadRequest, string(service.KindValidation), "invalid id")
}
