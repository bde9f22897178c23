package httpx

import (
	"context"
	"net/http"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/imatefx/control-tower/internal/audit"
	"github.com/imatefx/control-tower/internal/events"
	"github.com/imatefx/control-tower/internal/service/approval"
	"github.com/imatefx/control-tower/internal/service/catalog"
	"github.com/imatefx/control-tower/internal/service/checklist"
	"github.com/imatefx/control-tower/internal/service/deployment"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux        *http.ServeMux
	logger     *slog.Logger
	catalog    catalog.Service
	deploy     deployment.Service
	checklist  checklist.Service
	approvals  approval.Service
	recorder   *audit.Recorder
	hub        *events.Hub
	upgrader   websocket.Upgrader
	limiter    RateLimiter
	dbHealth   func(context.Context) error
}

const (
	rateWindowDefault  = time.Minute
	rateWindowRealtime = 30 * time.Second
	rateLimitWrite     = 60
	rateLimitRead      = 120
	rateLimitWebsocket = 30
	healthCheckTimeout = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(
	logger *slog.Logger,
	catalogSvc catalog.Service,
	deploySvc deployment.Service,
	checklistSvc checklist.Service,
	approvalSvc approval.Service,
	recorder *audit.Recorder,
	hub *events.Hub,
	limiter RateLimiter,
	dbHealth func(context.Context) error,
) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		logger:    logger,
		catalog:   catalogSvc,
		deploy:    deploySvc,
		checklist: checklistSvc,
		approvals: approvalSvc,
		recorder:  recorder,
		hub:       hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		limiter:  limiter,
		dbHealth: dbHealth,
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r
}

// ServeHTTP delegates to underlying mux.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/healthz", r.logRequest(r.handleHealthz))
	r.mux.HandleFunc("/products", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleProducts)))
	r.mux.HandleFunc("/products/", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleProductByID)))
	r.mux.HandleFunc("/clients", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleClients)))
	r.mux.HandleFunc("/clients/", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleClientByID)))
	r.mux.HandleFunc("/deployments", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleDeployments)))
	r.mux.HandleFunc("/deployments/", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleDeploymentSubroutes)))
	r.mux.HandleFunc("/checklist/templates", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleChecklistTemplates)))
	r.mux.HandleFunc("/checklist/items/", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleChecklistItem)))
	r.mux.HandleFunc("/approvals", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleApprovals)))
	r.mux.HandleFunc("/approvals/", r.logRequest(r.withRateLimit(rateLimitWrite, rateWindowDefault, r.handleApprovalSubroutes)))
	r.mux.HandleFunc("/audit", r.logRequest(r.withRateLimit(rateLimitRead, rateWindowDefault, r.handleAuditSearch)))
	r.mux.HandleFunc("/audit/", r.logRequest(r.withRateLimit(rateLimitRead, rateWindowDefault, r.handleAuditSubroutes)))
	r.mux.HandleFunc("/ws/events", r.logRequest(r.withRateLimit(rateLimitWebsocket, rateWindowRealtime, r.handleEventsWS)))
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w)
		return
	}
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			r.logger.Error("health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
