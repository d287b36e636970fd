package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/channel-token-service/secrets"
	"github.com/upb/channel-token-service/services/audit"
	"github.com/upb/channel-token-service/utils"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// DatabaseChecker reports audit database health
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) error
}

// CredentialReporter reports which environments have signing credentials
type CredentialReporter interface {
	Configured() map[secrets.Environment]bool
}

// AuditReporter reports the state of the audit writer
type AuditReporter interface {
	GetStats() audit.Stats
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	db      DatabaseChecker
	secrets CredentialReporter
	audit   AuditReporter
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and auditor may be nil
// when the audit log is disabled.
func NewHealthHandler(db DatabaseChecker, store CredentialReporter, auditor AuditReporter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		db:      db,
		secrets: store,
		audit:   auditor,
		logger:  logger,
	}
}

// HandleHealth handles GET /healthz
// Basic health check - always returns 200 if service is running
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz. The service is ready when at least
// one environment has credentials and the audit database and writer, if
// any, are up.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	anyConfigured := false
	if h.secrets != nil {
		for env, ok := range h.secrets.Configured() {
			key := "credentials_" + string(env)
			if ok {
				checks[key] = "configured"
				anyConfigured = true
			} else {
				checks[key] = "missing"
			}
		}
	}
	if !anyConfigured {
		h.logger.Warn("no signing credentials configured")
		allHealthy = false
	}

	if h.db == nil {
		checks["database"] = "disabled"
	} else if err := h.db.HealthCheck(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unhealthy"
		allHealthy = false
	} else {
		checks["database"] = "healthy"
	}

	if h.audit == nil {
		checks["audit"] = "disabled"
	} else {
		stats := h.audit.GetStats()
		checks["audit_pending"] = fmt.Sprintf("%d/%d", stats.PendingEvents, stats.BufferSize)
		if stats.Started {
			checks["audit"] = "running"
		} else {
			checks["audit"] = "stopped"
			allHealthy = false
		}
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if !allHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
