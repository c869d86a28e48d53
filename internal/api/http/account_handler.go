package http

import (
	"net/http"

	"iotkit-lending-backend/internal/domain"
)

type page[T any] struct {
	Items []T   `json:"items"`
	Total int32 `json:"total"`
}

func (h *handler) myFines(w http.ResponseWriter, r *http.Request) {
	fines, err := h.deps.Catalog.ListFinesFor(r.Context(), caller(r).Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fines)
}

func (h *handler) myNotifications(w http.ResponseWriter, r *http.Request) {
	notes, total, err := h.deps.Notifications.GetNotifications(r.Context(), caller(r).UserID, queryInt32(r, "page"), queryInt32(r, "page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.Notification]{Items: notes, Total: total})
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	if err := h.deps.Notifications.MarkAsRead(r.Context(), caller(r).UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) myWallet(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Wallet.GetSummary(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *handler) myTransactions(w http.ResponseWriter, r *http.Request) {
	txs, total, err := h.deps.Wallet.GetTransactions(r.Context(), caller(r).UserID, queryInt32(r, "page"), queryInt32(r, "page_size"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page[domain.WalletTransaction]{Items: txs, Total: total})
}
