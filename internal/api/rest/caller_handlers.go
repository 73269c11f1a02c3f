package rest

import (
	"net/http"

	"github.com/fairdial/leadline-backend/internal/domain/caller"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	callersvc "github.com/fairdial/leadline-backend/internal/service/callers"
)

func (h *Handler) handleCreateCaller(w http.ResponseWriter, r *http.Request) {
	var req CallerCreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.validate(req); err != nil {
		respondError(w, r, err)
		return
	}

	input := callersvc.CreateInput{
		Name:       req.Name,
		Role:       req.Role,
		Languages:  req.Languages,
		DailyLimit: req.DailyLimit,
		States:     req.AssignedStates,
		Paused:     req.Status != nil && *req.Status == "paused",
	}

	summary, err := h.callers.Create(r.Context(), input)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, newCallerResponse(summary))
}

func (h *Handler) handleListCallers(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.callers.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]CallerResponse, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, newCallerResponse(s))
	}
	respond(w, r, http.StatusOK, out)
}

func (h *Handler) handleGetCaller(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	summary, err := h.callers.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, newCallerResponse(summary))
}

func (h *Handler) handleUpdateCaller(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req CallerUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.validate(req); err != nil {
		respondError(w, r, err)
		return
	}

	input := callersvc.UpdateInput{
		Name:       req.Name,
		Role:       req.Role,
		Languages:  req.Languages,
		DailyLimit: req.DailyLimit,
		States:     req.AssignedStates,
	}
	if req.Status != nil {
		status, err := caller.ParseStatus(*req.Status)
		if err != nil {
			respondError(w, r, errors.NewValidationError("INVALID_STATUS", err.Error()))
			return
		}
		input.Status = &status
	}

	summary, err := h.callers.Update(r.Context(), id, input)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, newCallerResponse(summary))
}

// handleSetCallerStatus flips a caller between active and paused without
// touching the rest of the profile.
func (h *Handler) handleSetCallerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req CallerStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.validate(req); err != nil {
		respondError(w, r, err)
		return
	}

	status, err := caller.ParseStatus(req.Status)
	if err != nil {
		respondError(w, r, errors.NewValidationError("INVALID_STATUS", err.Error()))
		return
	}

	summary, err := h.callers.SetStatus(r.Context(), id, status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, newCallerResponse(summary))
}

// handleDeactivateCaller pauses the caller. Rows are never deleted; paused
// callers keep their history and can be reactivated later.
func (h *Handler) handleDeactivateCaller(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.callers.Deactivate(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
