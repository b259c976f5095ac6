package handler

import (
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/labs-ledger-transfer-engine/internal/api/middleware"
	"github.com/labs-ledger-transfer-engine/internal/domain/account"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/service"
)

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	deposits service.DepositExecutor
	statuses service.AccountStatusUpdater
	logger   *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, deposits service.DepositExecutor, statuses service.AccountStatusUpdater) *AccountHandler {
	return &AccountHandler{
		deposits: deposits,
		statuses: statuses,
		logger:   logger,
	}
}

// Deposit credits the account named in the path.
func (h *AccountHandler) Deposit(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	id, ok := h.accountID(c, logger)
	if !ok {
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.deposits.Execute(c.Request.Context(), id, *req.Amount, req.Description)
	if err != nil {
		respondWithServiceError(c, logger.With("account_id", id), err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// UpdateStatus suspends, activates or closes the account named in the path.
func (h *AccountHandler) UpdateStatus(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	id, ok := h.accountID(c, logger)
	if !ok {
		return
	}

	var req UpdateAccountStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	target, valid := account.ParseStatus(req.Status)
	if !valid {
		RespondBadRequest(c, "Invalid account status: "+req.Status)
		return
	}

	acc, err := h.statuses.Execute(c.Request.Context(), id, target)
	if err != nil {
		respondWithServiceError(c, logger.With("account_id", id), err)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

func (h *AccountHandler) accountID(c *gin.Context, logger *slog.Logger) (int64, bool) {
	idParam := c.Param("id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil || id <= 0 {
		logger.Error("Invalid account ID", "id", idParam)
		RespondBadRequest(c, "Invalid account ID")
		return 0, false
	}
	return id, true
}
