package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

type InvestmentHandler struct {
	investments *services.InvestmentService
	logger      log.Logger
}

func NewInvestmentHandler(investments *services.InvestmentService, logger log.Logger) *InvestmentHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &InvestmentHandler{investments: investments, logger: logger}
}

func InvestmentRouter(r chi.Router, h *InvestmentHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", h.ListInvestments)
	r.Post("/", h.CreateInvestment)
	r.Put("/{investmentID}", h.UpdateInvestment)
}

type InvestmentRequest struct {
	Symbol        *string          `json:"symbol"`
	Name          *string          `json:"name"`
	Sector        *string          `json:"sector"`
	Quantity      *decimal.Decimal `json:"quantity"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice"`
	CurrentPrice  *decimal.Decimal `json:"currentPrice"`
	PurchaseDate  *time.Time       `json:"purchaseDate"`
}

func (req InvestmentRequest) input() services.InvestmentInput {
	return services.InvestmentInput{
		Symbol:        req.Symbol,
		Name:          req.Name,
		Sector:        req.Sector,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		CurrentPrice:  req.CurrentPrice,
		PurchaseDate:  req.PurchaseDate,
	}
}

type InvestmentResponse struct {
	Success    bool             `json:"success"`
	Investment types.Investment `json:"investment"`
}

type PortfolioResponse struct {
	Success bool `json:"success"`
	services.Portfolio
}

func (h *InvestmentHandler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	portfolio, err := h.investments.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, PortfolioResponse{Success: true, Portfolio: portfolio})
}

func (h *InvestmentHandler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req InvestmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	inv, err := h.investments.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, InvestmentResponse{Success: true, Investment: inv})
}

func (h *InvestmentHandler) UpdateInvestment(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req InvestmentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	inv, err := h.investments.Update(r.Context(), user.ID, chi.URLParam(r, "investmentID"), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, InvestmentResponse{Success: true, Investment: inv})
}
