package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/labs-ledger-transfer-engine/internal/api/middleware"
	"github.com/labs-ledger-transfer-engine/internal/domain/transfer"
	"github.com/labs-ledger-transfer-engine/internal/transfer_processor/service"
)

// TransferHandler handles HTTP requests for transfer operations
type TransferHandler struct {
	transfers service.TransferExecutor
	logger    *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transfers service.TransferExecutor) *TransferHandler {
	return &TransferHandler{
		transfers: transfers,
		logger:    logger,
	}
}

// Create executes a transfer. Replays of a known key, FAILED ones included, answer 201 with the stored result.
func (h *TransferHandler) Create(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		RespondBadRequest(c, "Idempotency-Key header is required")
		return
	}

	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.transfers.Execute(c.Request.Context(), transfer.Command{
		IdempotencyKey: key,
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         *req.Amount,
		Description:    req.Description,
	})
	if err != nil {
		respondWithServiceError(c, logger.With("idempotency_key", key), err)
		return
	}

	RespondCreated(c, mapTransferToResponse(result))
}
