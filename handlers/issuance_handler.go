package handlers

import (
	"net/http"
	"strconv"

	"github.com/upb/channel-token-service/middleware"
	"github.com/upb/channel-token-service/models"
	"github.com/upb/channel-token-service/repositories"
	"github.com/upb/channel-token-service/services"
	"github.com/upb/channel-token-service/utils"
	"go.uber.org/zap"
)

// Limits for GET /api/v1/issuances
const (
	DefaultIssuanceLimit = 50
	MaxIssuanceLimit     = 500
)

var errInvalidLimit = services.NewDomainError(services.ErrorTypeInvalidArgument, "limit must be an integer between 1 and 500", nil)

// IssuanceListResponse is the body of GET /api/v1/issuances
type IssuanceListResponse struct {
	Events []*models.IssuanceEvent `json:"events"`
	Count  int                     `json:"count"`
}

// IssuanceHandler serves the issuance audit log to operators
type IssuanceHandler struct {
	repo   repositories.IssuanceRepository
	logger *zap.Logger
}

// NewIssuanceHandler creates a new IssuanceHandler
func NewIssuanceHandler(repo repositories.IssuanceRepository, logger *zap.Logger) *IssuanceHandler {
	return &IssuanceHandler{
		repo:   repo,
		logger: logger,
	}
}

// HandleListRecent handles GET /api/v1/issuances?limit=N, newest first
func (h *IssuanceHandler) HandleListRecent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit := DefaultIssuanceLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err == nil {
			err = utils.ValidateVar(n, "limit", "min=1,max=500")
		}
		if err != nil {
			HandleServiceError(w, errInvalidLimit, ProtocolREST, h.logger)
			return
		}
		limit = n
	}

	events, err := h.repo.ListRecent(ctx, limit)
	if err != nil {
		h.logger.Error("failed to list issuance events",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "failed to list issuance events")
		return
	}
	if events == nil {
		events = []*models.IssuanceEvent{}
	}

	caller := middleware.GetIdentityFromContext(ctx)
	if caller != nil {
		h.logger.Info("issuance events listed",
			zap.String("request_id", middleware.GetRequestIDFromContext(ctx)),
			zap.String("caller", caller.Subject),
			zap.Int("count", len(events)))
	}

	if err := utils.WriteOK(w, IssuanceListResponse{Events: events, Count: len(events)}); err != nil {
		h.logger.Error("failed to write issuance list", zap.Error(err))
	}
}
