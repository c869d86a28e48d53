package http

import (
	"encoding/json"
	"net/http"

	"iotkit-lending-backend/internal/service"
)

func (h *handler) listQueue(name service.QueueName) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.deps.Queues.List(name))
	}
}

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Catalog.ListHistory(r.Context(), queryInt32(r, "limit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) getRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	req, err := h.deps.Approval.GetRequest(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) approve(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	req, err := h.deps.Approval.Approve(r.Context(), caller(r).UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type rejectBody struct {
	Reason string `json:"reason"`
}

func (h *handler) reject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	var body rejectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStatusError(w, r, http.StatusBadRequest, string(service.KindValidation), "invalid JSON body")
		return
	}
	req, err := h.deps.Approval.Reject(r.Context(), caller(r).UserID, id, body.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *handler) refundStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	status, err := h.deps.Wallet.RefundStatus(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handler) getKit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	kit, err := h.deps.Catalog.GetKit(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, kit)
}

func (h *handler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.deps.Catalog.ListPenaltyPolicies(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, policies)
}

func (h *handler) listUnresolved(w http.ResponseWriter, r *http.Request) {
	penalties, err := h.deps.Catalog.ListUnresolvedPenalties(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, penalties)
}

func (h *handler) penaltyDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	details, err := h.deps.Catalog.GetPenaltyDetails(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, details)
}
