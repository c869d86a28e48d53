package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/service"
)

// envelope is the body of every JSON response.
type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Step      string `json:"step,omitempty"`
	RequestID int32  `json:"request_id,omitempty"`
	Amount    int64  `json:"amount,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(envelope{Data: data}); err != nil {
		logger.Warn("Failed to encode response", "error", err)
	}
}

// statusFor maps an error onto its HTTP status and kind.
func statusFor(err error) (int, service.ErrorKind) {
	if errors.Is(err, service.ErrUnauthorized) {
		return http.StatusForbidden, service.KindValidation
	}
	kind := service.KindOf(err)
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest, kind
	case service.KindNotFound:
		return http.StatusNotFound, kind
	case service.KindConflict:
		return http.StatusConflict, kind
	case service.KindNotification:
		return http.StatusBadGateway, kind
	}
	var stepErr *service.StepError
	if errors.As(err, &stepErr) {
		return http.StatusBadGateway, kind
	}
	return http.StatusInternalServerError, kind
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	body := &errorBody{Kind: string(kind), Message: err.Error(), TraceID: middleware.GetReqID(r.Context())}

	var stepErr *service.StepError
	if errors.As(err, &stepErr) {
		body.Step = stepErr.Step
		body.RequestID = stepErr.RequestID
		body.Amount = stepErr.Amount
	}
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
		if status == http.StatusInternalServerError {
			body.Message = "internal error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: body})
}

func writeStatusError(w http.ResponseWriter, r *http.Request, status int, kind, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &errorBody{Kind: kind, Message: msg, TraceID: middleware.GetReqID(r.Context())}})
}
