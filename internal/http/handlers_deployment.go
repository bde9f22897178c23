package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/service/deployment"
)

func (r *Router) handleDeployments(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		query := req.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		filter := domain.DeploymentFilter{
			ProductID: query.Get("product_id"),
			ClientID:  query.Get("client_id"),
			Status:    query.Get("status"),
			Limit:     limit,
		}
		deployments, err := r.deploy.List(req.Context(), filter)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, deployments)
	case http.MethodPost:
		var input deployment.CreateInput
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		dep, items, err := r.deploy.Create(req.Context(), input, actorFromRequest(req), requestMetadata(req))
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"deployment": dep,
			"checklist":  items,
		})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDeploymentSubroutes(w http.ResponseWriter, req *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/deployments/"), "/")
	parts := strings.SplitN(rest, "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if len(parts) == 1 {
		r.handleDeploymentByID(w, req, id)
		return
	}
	switch parts[1] {
	case "status":
		r.handleDeploymentStatus(w, req, id)
	case "comments":
		r.handleDeploymentComments(w, req, id)
	case "checklist":
		r.handleDeploymentChecklist(w, req, id)
	case "approvals":
		r.handleDeploymentApprovals(w, req, id)
	case "restore":
		r.handleDeploymentRestore(w, req, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (r *Router) handleDeploymentByID(w http.ResponseWriter, req *http.Request, id string) {
	switch req.Method {
	case http.MethodGet:
		dep, err := r.deploy.Get(req.Context(), id)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dep)
	case http.MethodPatch:
		var input deployment.UpdateInput
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		dep, err := r.deploy.Update(req.Context(), id, input, actorFromRequest(req), requestMetadata(req))
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dep)
	case http.MethodDelete:
		if err := r.deploy.Delete(req.Context(), id, actorFromRequest(req), requestMetadata(req)); err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleDeploymentStatus(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	author := actorDisplay(actorFromRequest(req))
	dep, err := r.deploy.TransitionStatus(req.Context(), id, payload.Status, author, payload.Note)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (r *Router) handleDeploymentComments(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	var payload struct {
		Text     string  `json:"text"`
		ParentID *string `json:"parent_id,omitempty"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	author := actorDisplay(actorFromRequest(req))
	dep, err := r.deploy.AddBlockedComment(req.Context(), id, payload.Text, author, payload.ParentID)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (r *Router) handleDeploymentChecklist(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	items, err := r.checklist.Items(req.Context(), id)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (r *Router) handleDeploymentApprovals(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	approvals, err := r.approvals.ListByDeployment(req.Context(), id)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, approvals)
}

func (r *Router) handleDeploymentRestore(w http.ResponseWriter, req *http.Request, id string) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w)
		return
	}
	if err := r.deploy.Restore(req.Context(), id); err != nil {
		r.respondError(w, err)
		return
	}
	dep, err := r.deploy.Get(req.Context(), id)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dep)
}

func (r *Router) handleChecklistTemplates(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		templates, err := r.checklist.Templates(req.Context())
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	case http.MethodPut:
		var payload struct {
			Labels []string `json:"labels"`
		}
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		templates, err := r.checklist.ReplaceTemplates(req.Context(), payload.Labels)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, templates)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleChecklistItem(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPatch {
		r.methodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/checklist/items/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	var payload struct {
		IsCompleted bool `json:"is_completed"`
	}
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	item, err := r.checklist.SetItemCompleted(req.Context(), id, payload.IsCompleted)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
