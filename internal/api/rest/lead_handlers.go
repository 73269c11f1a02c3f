package rest

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	domassign "github.com/fairdial/leadline-backend/internal/domain/assignment"
	"github.com/fairdial/leadline-backend/internal/domain/errors"
	"github.com/fairdial/leadline-backend/internal/infrastructure/telemetry"
	leadsvc "github.com/fairdial/leadline-backend/internal/service/leads"
)

func (h *Handler) handleListLeads(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	details, err := h.leads.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]LeadListItem, 0, len(details))
	for _, d := range details {
		out = append(out, newLeadListItem(d))
	}
	respond(w, r, http.StatusOK, out)
}

func (h *Handler) handleGetLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	detail, err := h.leads.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, newLeadDetailResponse(detail))
}

// handleReassignLead moves a lead to a specific caller, or back through
// automatic selection when no caller is named.
func (h *Handler) handleReassignLead(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req LeadReassignRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	ctx, span := h.tracer.Start(r.Context(), "api.reassign_lead")
	outcome, err := h.assignments.ReassignLead(ctx, id, req.CallerID)
	telemetry.WithSpanError(span, err)
	span.End()
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, newLeadResponse(outcome))
}

func parseListFilter(r *http.Request) (leadsvc.ListFilter, error) {
	q := r.URL.Query()
	var f leadsvc.ListFilter

	if s := q.Get("state"); s != "" {
		f.State = &s
	}
	if c := q.Get("caller_id"); c != "" {
		id, err := uuid.Parse(c)
		if err != nil {
			return f, errors.NewValidationError("INVALID_FILTER", "caller_id must be a UUID")
		}
		f.CallerID = &id
	}
	if s := q.Get("status"); s != "" {
		status, err := domassign.ParseStatus(s)
		if err != nil {
			return f, errors.NewValidationError("INVALID_FILTER", err.Error())
		}
		f.Status = &status
	}
	if s := q.Get("search"); s != "" {
		f.Search = &s
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 0 {
			return f, errors.NewValidationError("INVALID_FILTER", "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if o := q.Get("offset"); o != "" {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 {
			return f, errors.NewValidationError("INVALID_FILTER", "offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}
