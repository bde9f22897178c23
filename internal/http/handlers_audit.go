package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/imatefx/control-tower/internal/domain"
	"github.com/imatefx/control-tower/internal/events"
)

func (r *Router) handleAuditSearch(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	query := req.URL.Query()
	filter := domain.AuditFilter{
		ActorID:      query.Get("actor_id"),
		Action:       query.Get("action"),
		ResourceType: query.Get("resource_type"),
		Query:        query.Get("q"),
	}
	if raw := query.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from timestamp")
			return
		}
		filter.From = &ts
	}
	if raw := query.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to timestamp")
			return
		}
		filter.To = &ts
	}
	filter.Limit, _ = strconv.Atoi(query.Get("limit"))
	filter.Offset, _ = strconv.Atoi(query.Get("offset"))

	entries, err := r.recorder.Search(req.Context(), filter)
	if err != nil {
		r.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) handleAuditSubroutes(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(req.URL.Path, "/audit/"), "/")
	parts := strings.Split(rest, "/")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	switch {
	case len(parts) == 3 && parts[0] == "resource":
		entries, err := r.recorder.ByResource(req.Context(), parts[1], parts[2], limit)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	case len(parts) == 2 && parts[0] == "actor":
		entries, err := r.recorder.ByActor(req.Context(), parts[1], limit)
		if err != nil {
			r.respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (r *Router) handleEventsWS(w http.ResponseWriter, req *http.Request) {
	if r.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}
	topic := req.URL.Query().Get("topic")
	if topic == "" {
		topic = events.TopicAll
	}
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := events.NewClient(conn, r.logger)
	r.hub.Register(topic, client)
	defer r.hub.Unregister(topic, client)

	// Hold the connection open; client messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
