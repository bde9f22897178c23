package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/imatefx/control-tower/internal/service/catalog"
)

func (r *Router) handleProducts(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		products, err := r.catalog.ListProducts(req.Context())
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, products)
	case http.MethodPost:
		var input catalog.ProductInput
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		product, err := r.catalog.CreateProduct(req.Context(), input, actorFromRequest(req), requestMetadata(req))
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, product)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleProductByID(w http.ResponseWriter, req *http.Request) {
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/products/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch req.Method {
	case http.MethodGet:
		product, err := r.catalog.GetProduct(req.Context(), id)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodPut:
		var input catalog.ProductInput
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		product, err := r.catalog.UpdateProduct(req.Context(), id, input, actorFromRequest(req), requestMetadata(req))
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, product)
	case http.MethodDelete:
		if err := r.catalog.DeleteProduct(req.Context(), id, actorFromRequest(req), requestMetadata(req)); err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleClients(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		clients, err := r.catalog.ListClients(req.Context())
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, clients)
	case http.MethodPost:
		var input catalog.ClientInput
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		client, err := r.catalog.CreateClient(req.Context(), input, actorFromRequest(req), requestMetadata(req))
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, client)
	default:
		r.methodNotAllowed(w)
	}
}

func (r *Router) handleClientByID(w http.ResponseWriter, req *http.Request) {
	id := strings.Trim(strings.TrimPrefix(req.URL.Path, "/clients/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	switch req.Method {
	case http.MethodGet:
		client, err := r.catalog.GetClient(req.Context(), id)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, client)
	case http.MethodPut:
		var input catalog.ClientInput
		if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
			writeError(w, http.StatusBadRequest, "invalid payload")
			return
		}
		client, err := r.catalog.UpdateClient(req.Context(), id, input, actorFromRequest(req), requestMetadata(req))
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, client)
	case http.MethodDelete:
		if err := r.catalog.DeleteClient(req.Context(), id, actorFromRequest(req), requestMetadata(req)); err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		r.methodNotAllowed(w)
	}
}
