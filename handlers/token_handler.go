package handlers

import (
	"context"
	"net/http"

	"github.com/upb/channel-token-service/identity"
	"github.com/upb/channel-token-service/middleware"
	"github.com/upb/channel-token-service/services"
	"github.com/upb/channel-token-service/services/token"
	"github.com/upb/channel-token-service/utils"
	"go.uber.org/zap"
)

// TokenGenerator is the issuance operation the handlers expose
type TokenGenerator interface {
	GenerateToken(ctx context.Context, raw token.RawRequest, caller *identity.Identity) (*token.IssuedTokenSet, error)
}

// callableRequest is the callable-function request envelope
type callableRequest struct {
	Data token.RawRequest `json:"data"`
}

// TokenHandler serves token issuance over REST and the callable protocol
type TokenHandler struct {
	service TokenGenerator
	logger  *zap.Logger
}

// NewTokenHandler creates a new TokenHandler
func NewTokenHandler(service TokenGenerator, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		logger:  logger,
	}
}

// HandleGenerate handles POST /api/v1/tokens
func (h *TokenHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var raw token.RawRequest
	if err := utils.DecodeJSON(w, r, &raw); err != nil {
		h.malformed(w, r, err, ProtocolREST)
		return
	}

	set, err := h.service.GenerateToken(r.Context(), raw, middleware.GetIdentityFromContext(r.Context()))
	if err != nil {
		HandleServiceError(w, err, ProtocolREST, h.logger)
		return
	}

	if err := utils.WriteOK(w, set); err != nil {
		h.logger.Error("failed to write token response", zap.Error(err))
	}
}

// HandleCallable handles POST /callable/generateToken. The payload is read
// from "data" and the token set is returned under "result".
func (h *TokenHandler) HandleCallable(w http.ResponseWriter, r *http.Request) {
	var req callableRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		h.malformed(w, r, err, ProtocolCallable)
		return
	}

	set, err := h.service.GenerateToken(r.Context(), req.Data, middleware.GetIdentityFromContext(r.Context()))
	if err != nil {
		HandleServiceError(w, err, ProtocolCallable, h.logger)
		return
	}

	if err := utils.WriteOK(w, utils.CallableResponse{Result: set}); err != nil {
		h.logger.Error("failed to write token response", zap.Error(err))
	}
}

func (h *TokenHandler) malformed(w http.ResponseWriter, r *http.Request, err error, protocol Protocol) {
	h.logger.Debug("malformed token request",
		zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
		zap.Error(err))
	HandleServiceError(w, services.ErrMalformedRequest, protocol, h.logger)
}
