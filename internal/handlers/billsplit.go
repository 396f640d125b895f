package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-kit/kit/log"
	"github.com/lumenbank/apiserver/internal/services"
	"github.com/lumenbank/apiserver/types"
	"github.com/shopspring/decimal"
)

type BillSplitHandler struct {
	splits *services.BillSplitService
	logger log.Logger
}

func NewBillSplitHandler(splits *services.BillSplitService, logger log.Logger) *BillSplitHandler {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &BillSplitHandler{splits: splits, logger: logger}
}

func BillSplitRouter(r chi.Router, h *BillSplitHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", h.ListBillSplits)
	r.Post("/", h.CreateBillSplit)
	r.Put("/{billSplitID}", h.UpdateBillSplit)
}

// BillSplitRequest is used for both create and update; omitted fields are
// left unchanged on update.
type BillSplitRequest struct {
	Title        *string             `json:"title"`
	Amount       *decimal.Decimal    `json:"amount"`
	Category     *string             `json:"category"`
	Status       *string             `json:"status"`
	Participants []types.Participant `json:"participants"`
}

func (req BillSplitRequest) input() services.BillSplitInput {
	return services.BillSplitInput{
		Title:        req.Title,
		Amount:       req.Amount,
		Category:     req.Category,
		Status:       req.Status,
		Participants: req.Participants,
	}
}

type BillSplitResponse struct {
	Success   bool            `json:"success"`
	BillSplit types.BillSplit `json:"billSplit"`
}

type BillSplitListResponse struct {
	Success    bool              `json:"success"`
	BillSplits []types.BillSplit `json:"billSplits"`
}

func (h *BillSplitHandler) ListBillSplits(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	items, err := h.splits.List(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BillSplitListResponse{Success: true, BillSplits: items})
}

func (h *BillSplitHandler) CreateBillSplit(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req BillSplitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	split, err := h.splits.Create(r.Context(), user.ID, req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, BillSplitResponse{Success: true, BillSplit: split})
}

func (h *BillSplitHandler) UpdateBillSplit(w http.ResponseWriter, r *http.Request) {
	user, _ := userFromContext(r.Context())

	var req BillSplitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	split, err := h.splits.Update(r.Context(), user.ID, chi.URLParam(r, "billSplitID"), req.input())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, BillSplitResponse{Success: true, BillSplit: split})
}
