package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

// IdempotencyHeader lets clients retry a transaction safely.
const IdempotencyHeader = "Idempotency-Key"

// TransactionHandler serves the ledger, history and statements.
type TransactionHandler struct {
	ledger     *services.LedgerService
	history    *services.HistoryService
	statements *services.StatementService
	logger     log.Logger
}

func NewTransactionHandler(
	ledger *services.LedgerService,
	history *services.HistoryService,
	statements *services.StatementService,
	logger log.Logger,
) *TransactionHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &TransactionHandler{ledger: ledger, history: history, statements: statements, logger: logger}
}

// TransactionRouter registers transaction routes. All of them require auth.
func TransactionRouter(r chi.Router, h *TransactionHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Post("/", h.SubmitTransaction)
	r.Get("/history", h.History)
	r.Post("/statements", h.ArchiveStatement)
	r.Get("/statements/{name}", h.GetStatement)
}

type TransactionRequest struct {
	AccountID       string          `json:"accountId"`
	TransactionType string          `json:"transactionType"`
	Amount          decimal.Decimal `json:"amount"`
	Description     string          `json:"description"`
	IdempotencyKey  string          `json:"idempotencyKey"`
}

type TransactionResponse struct {
	Success     bool              `json:"success"`
	Transaction types.Transaction `json:"transaction"`
	Balance     decimal.Decimal   `json:"balance"`
	Replayed    bool              `json:"replayed,omitempty"`
}

type HistoryResponse struct {
	Success      bool                 `json:"success"`
	Transactions []types.HistoryEntry `json:"transactions"`
	Total        int                  `json:"total"`
	Page         int                  `json:"page,omitempty"`
	Limit        int                  `json:"limit,omitempty"`
}

type StatementResponse struct {
	Success   bool                      `json:"success"`
	Statement services.StatementReceipt `json:"statement"`
}

type StatementDocumentResponse struct {
	Success   bool               `json:"success"`
	Statement services.Statement `json:"statement"`
}

// SubmitTransaction applies a deposit or withdrawal. The Idempotency-Key
// header takes precedence over the body field.
func (h *TransactionHandler) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	// amount is decoded on its own so that a bad amount and a bad body
	// get different messages.
	var body struct {
		TransactionRequest
		Amount json.RawMessage `json:"amount"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}
	req := body.TransactionRequest
	if len(body.Amount) > 0 {
		if err := req.Amount.UnmarshalJSON(body.Amount); err != nil {
			writeError(w, http.StatusBadRequest, "Amount must be positive")
			return
		}
	}

	key := req.IdempotencyKey
	if header := strings.TrimSpace(r.Header.Get(IdempotencyHeader)); header != "" {
		key = header
	}

	receipt, err := h.ledger.Apply(r.Context(), services.EntryRequest{
		AccountID:      req.AccountID,
		UserID:         user.ID,
		Type:           req.TransactionType,
		Amount:         req.Amount,
		Description:    req.Description,
		IdempotencyKey: key,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if receipt.Replayed {
		status = http.StatusOK
	}
	writeJSON(w, status, TransactionResponse{
		Success:     true,
		Transaction: receipt.Transaction,
		Balance:     receipt.Balance,
		Replayed:    receipt.Replayed,
	})
}

// History returns the caller's full history, or one page of it when page
// or limit is given.
func (h *TransactionHandler) History(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	entries, err := h.history.HistoryFor(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := HistoryResponse{Success: true, Transactions: entries, Total: len(entries)}
	q := r.URL.Query()
	if q.Has("page") || q.Has("limit") {
		page, limit, offset, err := parsePagination(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, capitalize(err.Error()))
			return
		}
		offset = min(offset, len(entries))
		resp.Transactions = entries[offset : offset+min(limit, len(entries)-offset)]
		resp.Page = page
		resp.Limit = limit
	}
	writeJSON(w, http.StatusOK, resp)
}

// ArchiveStatement writes the caller's accounts and history to object storage.
func (h *TransactionHandler) ArchiveStatement(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	receipt, err := h.statements.Archive(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, StatementResponse{Success: true, Statement: receipt})
}

// GetStatement returns one of the caller's archived statements by name.
func (h *TransactionHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	stmt, err := h.statements.Fetch(r.Context(), user.ID, chi.URLParam(r, "name"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, StatementDocumentResponse{Success: true, Statement: stmt})
}
