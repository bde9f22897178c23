package httpx

import (
	"encoding/json"
	"net/http"
	"strings"
)

func (r *Router) handleApprovals(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		DeploymentID string `json:"deployment_id"`
		Requester    string `json:"requester"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if payload.Requester == "" {
		payload.Requester = actorDisplay(actorFromRequest(req))
	}
	approval, err := r.approvals.Request(req.Context(), payload.DeploymentID, payload.Requester)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, approval)
}

func (r *Router) handleApprovalSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/approvals/"), "/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 1 {
		if req.Method != http.MethodGet {
			r.methodNotAllowed(w)
			return
		}
		approval, err := r.approvals.Get(req.Context(), id)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, approval)
		return
	}
	switch parts[1] {
	case "approve":
		r.handleApprove(w, req, id)
	case "reject":
		r.handleReject(w, req, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (r *Router) handleApprove(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Comments string `json:"comments"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reviewer := actorDisplay(actorFromRequest(req))
	approval, err := r.approvals.Approve(req.Context(), id, reviewer, payload.Comments)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}

func (r *Router) handleReject(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	reviewer := actorDisplay(actorFromRequest(req))
	approval, err := r.approvals.Reject(req.Context(), id, reviewer, payload.Reason)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approval)
}
