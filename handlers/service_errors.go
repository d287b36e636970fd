package handlers

import (
	"net/http"

	"github.com/upb/channel-token-service/services"
	"github.com/upb/channel-token-service/utils"
	"go.uber.org/zap"
)

// Protocol selects the status code table used for error responses
type Protocol int

const (
	// ProtocolREST uses 412 for failed preconditions
	ProtocolREST Protocol = iota
	// ProtocolCallable follows the callable-function convention where
	// FAILED_PRECONDITION is reported as 400
	ProtocolCallable
)

// HTTPStatus maps an error kind to an HTTP status code
func HTTPStatus(errType services.ErrorType, protocol Protocol) int {
	switch errType {
	case services.ErrorTypeInvalidArgument:
		return http.StatusBadRequest
	case services.ErrorTypeUnauthenticated:
		return http.StatusUnauthorized
	case services.ErrorTypeFailedPrecondition:
		if protocol == ProtocolCallable {
			return http.StatusBadRequest
		}
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// HandleServiceError maps domain errors to HTTP responses. Only the
// caller-safe message is written; internal causes go to the log.
func HandleServiceError(w http.ResponseWriter, err error, protocol Protocol, logger *zap.Logger) {
	if err == nil {
		return
	}

	errType := services.GetErrorType(err)
	var details map[string]interface{}

	switch {
	case services.IsInvalidArgumentError(err), services.IsFailedPreconditionError(err):
		details = services.GetErrorDetails(err)
	case services.IsUnauthenticatedError(err):
	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
	default:
		logger.Error("unhandled error type", zap.Error(err))
		errType = services.ErrorTypeInternal
	}

	if werr := utils.WriteError(w, HTTPStatus(errType, protocol), errType.Status(), services.PublicMessage(err), details); werr != nil {
		logger.Error("failed to write error response", zap.Error(werr))
	}
}
