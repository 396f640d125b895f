package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

// AccountHandler serves the account registry.
type AccountHandler struct {
	accounts *services.AccountService
	logger   log.Logger
}

func NewAccountHandler(accounts *services.AccountService, logger log.Logger) *AccountHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &AccountHandler{accounts: accounts, logger: logger}
}

// AccountRouter registers account routes. All of them require auth.
func AccountRouter(r chi.Router, h *AccountHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", h.ListAccounts)
	r.Post("/", h.CreateAccount)
	r.Get("/{accountID}", h.GetAccount)
}

type CreateAccountRequest struct {
	AccountType    string          `json:"accountType"`
	InitialDeposit decimal.Decimal `json:"initialDeposit"`
}

type AccountResponse struct {
	Success bool          `json:"success"`
	Account types.Account `json:"account"`
}

type AccountListResponse struct {
	Success  bool            `json:"success"`
	Accounts []types.Account `json:"accounts"`
}

func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	accounts, err := h.accounts.ListByOwner(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountListResponse{Success: true, Accounts: accounts})
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Initial deposit must be a positive number")
		return
	}

	account, err := h.accounts.Create(r.Context(), user.ID, req.AccountType, req.InitialDeposit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, AccountResponse{Success: true, Account: account})
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	account, err := h.accounts.Get(r.Context(), chi.URLParam(r, "accountID"), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, AccountResponse{Success: true, Account: account})
}
