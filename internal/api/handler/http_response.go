package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/labs-ledger-transfer-engine/internal/api/middleware"
	"github.com/labs-ledger-transfer-engine/internal/domain/shared"
)

// Error codes that do not come from a business error kind.
const (
	CodeTimeout        = "TIMEOUT"
	CodeLockConflict   = "OPTIMISTIC_LOCK_FAILED"
	CodeInternalError  = "INTERNAL_SERVER_ERROR"
	CodeInvalidRequest = string(shared.ErrorKindInvalidRequest)
)

// Response is the envelope of every API response. Exactly one of Data or Error is set.
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// ErrorInfo carries a machine-readable code and a message. For business errors the code is the error kind.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByKind = map[shared.ErrorKind]int{
	shared.ErrorKindAccountNotFound:                 http.StatusNotFound,
	shared.ErrorKindInsufficientBalance:             http.StatusBadRequest,
	shared.ErrorKindInvalidAccountStatus:            http.StatusBadRequest,
	shared.ErrorKindInvalidAmount:                   http.StatusBadRequest,
	shared.ErrorKindInvalidRequest:                  http.StatusBadRequest,
	shared.ErrorKindDuplicateTransfer:               http.StatusConflict,
	shared.ErrorKindInvalidTransferStatusTransition: http.StatusConflict,
}

// errorResponse classifies a service error into a status code and error body.
// ok is false for errors that are not part of the API contract.
func errorResponse(err error) (status int, info ErrorInfo, ok bool) {
	switch {
	case errors.Is(err, shared.ErrTransferTimeout):
		return http.StatusGatewayTimeout, ErrorInfo{CodeTimeout, "The request timed out, retry with the same idempotency key"}, true
	case shared.IsOptimisticLockConflict(err):
		return http.StatusConflict, ErrorInfo{CodeLockConflict, "The account was modified concurrently, please retry"}, true
	}

	be, isBusiness := shared.AsBusinessError(err)
	if !isBusiness {
		return http.StatusInternalServerError, ErrorInfo{CodeInternalError, "An internal server error occurred"}, false
	}
	status, known := statusByKind[be.Kind]
	if !known {
		status = http.StatusBadRequest
	}
	return status, ErrorInfo{string(be.Kind), be.Message}, true
}

// respondWithServiceError writes the envelope for err, logging at a level that matches its class.
func respondWithServiceError(c *gin.Context, logger *slog.Logger, err error) {
	status, info, ok := errorResponse(err)
	switch {
	case !ok:
		logger.Error("Request failed", "error", err)
	case status == http.StatusGatewayTimeout || info.Code == CodeLockConflict:
		logger.Warn("Request aborted", "code", info.Code, "error", err)
	default:
		logger.Info("Request rejected", "code", info.Code, "message", info.Message)
	}
	RespondWithError(c, status, info.Code, info.Message)
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, &Response{
		Data:          data,
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, &Response{
		Error:         &ErrorInfo{Code: code, Message: message},
		CorrelationID: middleware.GetCorrelationID(c),
	})
}

func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest rejects a malformed request before it reaches a service.
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, CodeInvalidRequest, message)
}
