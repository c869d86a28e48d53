package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/service"
)

type damageBody struct {
	ComponentName string `json:"component_name"`
	Damaged       bool   `json:"damaged"`
	Value         *int64 `json:"value,omitempty"`
}

type policiesBody struct {
	PolicyIDs []int32 `json:"policy_ids"`
}

type evidenceResponse struct {
	URL        string             `json:"url"`
	Inspection *domain.Inspection `json:"inspection,omitempty"`
}

func (h *handler) openInspection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	insp, err := h.deps.Returns.OpenInspection(r.Context(), caller(r).UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *handler) getInspection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	insp, err := h.deps.Returns.GetInspection(r.Context(), caller(r).UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *handler) cancelInspection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	if err := h.deps.Returns.CancelInspection(r.Context(), caller(r).UserID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) setDamage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	var body damageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStatusError(w, r, http.StatusBadRequest, string(service.KindValidation), "invalid JSON body")
		return
	}
	insp, err := h.deps.Returns.SetComponentDamage(r.Context(), caller(r).UserID, id, body.ComponentName, body.Damaged, body.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

func (h *handler) selectPolicies(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	var body policiesBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeStatusError(w, r, http.StatusBadRequest, string(service.KindValidation), "invalid JSON body")
		return
	}
	insp, err := h.deps.Returns.SelectPolicies(r.Context(), caller(r).UserID, id, body.PolicyIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, insp)
}

// uploadEvidence stores the multipart "file" part. When component_name is
// given the resulting URL is attached to that component.
func (h *handler) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.deps.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeStatusError(w, r, http.StatusRequestEntityTooLarge, string(service.KindValidation), "upload too large")
			return
		}
		writeStatusError(w, r, http.StatusBadRequest, string(service.KindValidation), "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeStatusError(w, r, http.StatusBadRequest, string(service.KindValidation), "missing file part")
		return
	}
	defer file.Close()

	adminID := caller(r).UserID
	url, err := h.deps.Evidence.Upload(r.Context(), adminID, id, header.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := evidenceResponse{URL: url}
	if component := r.FormValue("component_name"); component != "" {
		insp, err := h.deps.Returns.AttachEvidence(r.Context(), adminID, id, component, url)
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.Inspection = insp
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *handler) submitInspection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		badID(w, r)
		return
	}
	outcome, err := h.deps.Returns.SubmitInspection(r.Context(), caller(r).UserID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}
