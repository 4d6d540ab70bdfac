package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/yape-transaction-pipeline/internal/domain/shared"
	"github.com/yape-transaction-pipeline/internal/domain/transaction"
	"github.com/yape-transaction-pipeline/internal/platform/middleware"
	"github.com/yape-transaction-pipeline/internal/transaction_api/service"
)

// TransactionHandler handles HTTP requests for transaction operations
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// Create records a pending transaction and hands it to the fraud check
func (h *TransactionHandler) Create(c *gin.Context) {
	logger := h.logger.With("correlation_id", middleware.GetCorrelationID(c))

	var req CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transferTypeID, ok := req.transferType()
	if !ok {
		RespondBadRequest(c, "tranferTypeId is required")
		return
	}

	txn, err := h.transactionService.CreateTransaction(c.Request.Context(), service.CreateTransactionCommand{
		DebitAccountID:  req.AccountExternalIDDebit,
		CreditAccountID: req.AccountExternalIDCredit,
		TransferTypeID:  transferTypeID,
		Value:           *req.Value,
		CorrelationID:   middleware.GetCorrelationID(c),
	})
	switch {
	case err == nil:
		RespondCreated(c, mapTransactionToResponse(txn))
	case errors.Is(err, shared.ErrPublish) && txn != nil:
		logger.Warn("Transaction stored but not yet published", "transaction_external_id", txn.ExternalID.String(), "error", err)
		RespondAccepted(c, mapTransactionToResponse(txn), "PUBLISH_DEFERRED",
			"Transaction stored; the fraud check has not been requested yet")
	case errors.Is(err, shared.ErrInvalidInput):
		RespondBadRequest(c, err.Error())
	default:
		logger.Error("Failed to create transaction", "error", err)
		RespondInternalError(c)
	}
}

// GetByID retrieves a transaction by its external id, returns 404 if not found
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, ok := h.parseExternalID(c)
	if !ok {
		return
	}

	txn, err := h.transactionService.GetTransaction(c.Request.Context(), id)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

// ListEvents returns the fraud decisions applied to a transaction
func (h *TransactionHandler) ListEvents(c *gin.Context) {
	id, ok := h.parseExternalID(c)
	if !ok {
		return
	}

	var query EventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters")
		return
	}

	entries, err := h.transactionService.ListValidations(c.Request.Context(), id, query.Limit)
	if err != nil {
		h.respondLookupError(c, id, err)
		return
	}

	events := make([]ValidationEventResponse, 0, len(entries))
	for _, entry := range entries {
		events = append(events, mapJournalEntryToResponse(entry))
	}
	RespondOK(c, events)
}

func (h *TransactionHandler) parseExternalID(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("transactionExternalId")
	id, err := uuid.Parse(idParam)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction external id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *TransactionHandler) respondLookupError(c *gin.Context, id uuid.UUID, err error) {
	if errors.Is(err, transaction.ErrTransactionNotFound{}) {
		RespondNotFound(c, "Transaction not found")
		return
	}
	h.logger.Error("Failed to read transaction",
		"transaction_external_id", id.String(),
		"correlation_id", middleware.GetCorrelationID(c),
		"error", err,
	)
	RespondInternalError(c)
}
